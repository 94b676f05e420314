package memory

import (
	"context"
	"sort"
	"sync"

	"setlist-quiz-service/internal/domain"
)

// Store keeps users and submissions in process memory. It implements
// app.SubmissionRepository, app.UserRepository and app.StatsRepository.
type Store struct {
	mu          sync.RWMutex
	nextSubID   int64
	nextUserID  int64
	submissions map[int64]*domain.Submission
	byUserQuiz  map[userQuiz]int64
	users       map[string]domain.User
	usernames   map[int64]string
}

type userQuiz struct {
	userID int64
	quizID int64
}

func NewStore() *Store {
	return &Store{
		submissions: make(map[int64]*domain.Submission),
		byUserQuiz:  make(map[userQuiz]int64),
		users:       make(map[string]domain.User),
		usernames:   make(map[int64]string),
	}
}

func (s *Store) Exists(_ context.Context, quizID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUserQuiz[userQuiz{userID: userID, quizID: quizID}]
	return ok, nil
}

func (s *Store) Insert(_ context.Context, sub domain.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userQuiz{userID: sub.UserID, quizID: sub.QuizID}
	if _, ok := s.byUserQuiz[k]; ok {
		return 0, domain.ErrAlreadySubmitted
	}
	s.nextSubID++
	sub.ID = s.nextSubID
	sub.Score = nil
	s.submissions[sub.ID] = &sub
	s.byUserQuiz[k] = sub.ID
	return sub.ID, nil
}

func (s *Store) FetchUnscored(_ context.Context, quizID int64) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Submission{}
	for _, sub := range s.submissions {
		if sub.QuizID == quizID && sub.Score == nil {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetScore(_ context.Context, submissionID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	sub.Score = &score
	return nil
}

func (s *Store) Get(_ context.Context, quizID, userID int64) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUserQuiz[userQuiz{userID: userID, quizID: quizID}]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return copySubmission(s.submissions[id]), nil
}

// Leaderboard orders by score desc then earliest submission; limit <= 0 means all rows.
func (s *Store) Leaderboard(_ context.Context, quizID int64, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var scored []*domain.Submission
	for _, sub := range s.submissions {
		if sub.QuizID == quizID && sub.Score != nil {
			scored = append(scored, sub)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if *scored[i].Score != *scored[j].Score {
			return *scored[i].Score > *scored[j].Score
		}
		if !scored[i].SubmittedAt.Equal(scored[j].SubmittedAt) {
			return scored[i].SubmittedAt.Before(scored[j].SubmittedAt)
		}
		return scored[i].ID < scored[j].ID
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]domain.LeaderboardEntry, 0, len(scored))
	for _, sub := range scored {
		out = append(out, domain.LeaderboardEntry{
			Username:  s.usernames[sub.UserID],
			Score:     *sub.Score,
			Timestamp: sub.SubmittedAt,
		})
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return 0, domain.ErrUsernameTaken
	}
	s.nextUserID++
	s.users[username] = domain.User{ID: s.nextUserID, Username: username, PasswordHash: passwordHash}
	s.usernames[s.nextUserID] = username
	return s.nextUserID, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) AnswerDistribution(_ context.Context, question string) ([]domain.OptionCount, error) {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, sub := range s.submissions {
		if v := sub.Answers.Value(question); v != "" {
			counts[v]++
		}
	}
	s.mu.RUnlock()

	out := make([]domain.OptionCount, 0, len(counts))
	for option, n := range counts {
		out = append(out, domain.OptionCount{Option: option, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Option < out[j].Option
	})
	return out, nil
}

func (s *Store) TopGuessedSongs(_ context.Context, limit int) ([]domain.SongCount, error) {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, sub := range s.submissions {
		for _, q := range domain.SurpriseQuestions {
			if v := sub.Answers.Value(q); v != "" {
				counts[v]++
			}
		}
	}
	s.mu.RUnlock()

	out := make([]domain.SongCount, 0, len(counts))
	for song, n := range counts {
		out = append(out, domain.SongCount{Song: song, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Song < out[j].Song
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copySubmission(sub *domain.Submission) domain.Submission {
	out := *sub
	if sub.Score != nil {
		score := *sub.Score
		out.Score = &score
	}
	return out
}
