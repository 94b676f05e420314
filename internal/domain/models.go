package domain

import (
	"encoding/json"
	"time"
)

// Question names are fixed across every show.
const (
	Q1 = "q1"
	Q2 = "q2"
	Q3 = "q3"
	Q4 = "q4"
	Q5 = "q5"
	Q6 = "q6"
	Q7 = "q7"
)

// SingleChoiceQuestions are scored by exact match, one point each.
var SingleChoiceQuestions = []string{Q1, Q2, Q6, Q7}

// SurpriseQuestions hold free-text surprise song guesses, in scoring order.
var SurpriseQuestions = []string{Q3, Q4, Q5}

// QuizConfig describes one show.
type QuizConfig struct {
	Slug           string
	QuizID         int64
	Start          time.Time // carried in Location
	Timezone       string
	Location       *time.Location
	ScoringDelay   time.Duration
	ScoringEnabled bool
}

// OpensAt is two calendar days before the show starts, in the show's zone.
func (c QuizConfig) OpensAt() time.Time {
	return c.Start.AddDate(0, 0, -2)
}

// ClosesAt is the show start.
func (c QuizConfig) ClosesAt() time.Time {
	return c.Start
}

// ScoringOpensAt is the earliest instant a non-forced batch run may score.
func (c QuizConfig) ScoringOpensAt() time.Time {
	return c.Start.Add(c.ScoringDelay)
}

// Choice is a single-choice answer: one canonical string or a set of accepted strings.
type Choice struct {
	Values []string
}

// MarshalJSON renders a single accepted value as a plain string.
func (c Choice) MarshalJSON() ([]byte, error) {
	if len(c.Values) == 1 {
		return json.Marshal(c.Values[0])
	}
	if c.Values == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Values)
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		c.Values = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	c.Values = many
	return nil
}

// AnswerKey holds the canonical answers for a graded show.
type AnswerKey struct {
	SingleChoice map[string]Choice `json:"singleChoice"`
	Surprise     SongTitles        `json:"surprise"`
}

// SongTitles decodes a JSON list of titles. Any other value decodes as empty, so
// a malformed surprise block scores zero instead of rejecting the whole key.
type SongTitles []string

func (t *SongTitles) UnmarshalJSON(data []byte) error {
	var titles []string
	if err := json.Unmarshal(data, &titles); err != nil || titles == nil {
		*t = SongTitles{}
		return nil
	}
	*t = titles
	return nil
}

// Answers are the seven raw guesses; absent values are empty strings.
type Answers struct {
	Q1 string `json:"q1"`
	Q2 string `json:"q2"`
	Q3 string `json:"q3"`
	Q4 string `json:"q4"`
	Q5 string `json:"q5"`
	Q6 string `json:"q6"`
	Q7 string `json:"q7"`
}

// Value returns the answer for a question name, or "" for an unknown name.
func (a Answers) Value(question string) string {
	switch question {
	case Q1:
		return a.Q1
	case Q2:
		return a.Q2
	case Q3:
		return a.Q3
	case Q4:
		return a.Q4
	case Q5:
		return a.Q5
	case Q6:
		return a.Q6
	case Q7:
		return a.Q7
	}
	return ""
}

// Submission is a user's stored guesses for one show.
type Submission struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	QuizID      int64     `json:"quizId"`
	Answers     Answers   `json:"answers"`
	SubmittedAt time.Time `json:"timestamp"`
	Score       *int      `json:"score"`
}

// Grade is the per-question breakdown of a scored submission.
type Grade struct {
	Points map[string]int `json:"points"`
	Total  int            `json:"total"`
}

// ScoreDetail is reported per row by a batch scoring run.
type ScoreDetail struct {
	UserID       int64 `json:"user_id"`
	SubmissionID int64 `json:"submission_id"`
	Score        int   `json:"score"`
}

// ScoringReport summarizes a batch scoring run.
type ScoringReport struct {
	Scored  int           `json:"scored"`
	Details []ScoreDetail `json:"details"`
}

// LeaderboardEntry is one scored submission joined with its username.
type LeaderboardEntry struct {
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// QuizSummary is the list view of a show.
type QuizSummary struct {
	Slug        string             `json:"shortId"`
	QuizID      int64              `json:"quizId"`
	Name        string             `json:"name"`
	Date        string             `json:"date"`
	Scored      bool               `json:"scored"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// Session is the identity bound to a login token.
type Session struct {
	Token    string `json:"-"`
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

// OptionCount is how often an option was chosen for a single-choice question.
type OptionCount struct {
	Option string `json:"option_chosen"`
	Count  int    `json:"option_count"`
}

// SongCount is a guessed song with its frequency.
type SongCount struct {
	Song  string `json:"song"`
	Count int    `json:"count"`
}

// Song is a catalog entry.
type Song struct {
	Title string `json:"title"`
	Album string `json:"album"`
}

// SongPlays is a catalog song with its surprise-set play count.
type SongPlays struct {
	Title     string `json:"title"`
	Album     string `json:"album"`
	PlayCount int    `json:"play_count"`
}

// AlbumPlays is the number of surprise plays drawn from an album.
type AlbumPlays struct {
	Album     string `json:"album_name"`
	PlayCount int    `json:"play_count"`
}

// QuizResults is a user's own submission next to the canonical answers.
type QuizResults struct {
	Submission *Answers   `json:"submission"`
	Answers    *AnswerKey `json:"answers"`
	Grade      *Grade     `json:"grade,omitempty"`
}
