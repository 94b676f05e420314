package app

import (
	"strings"

	"setlist-quiz-service/internal/domain"
)

const (
	singleChoicePoints = 1
	surprisePoints     = 2
)

// Score maps a submission to its total. ok is false when there is no answer key,
// which callers must treat as "skip" rather than zero.
func Score(key *domain.AnswerKey, answers domain.Answers) (score int, ok bool) {
	if key == nil {
		return 0, false
	}
	return GradeAnswers(*key, answers).Total, true
}

// GradeAnswers scores every question and returns the breakdown.
//
// Single-choice questions award a point on a case- and whitespace-insensitive match.
// Surprise guesses are matched greedily in q3, q4, q5 order against the remaining
// canonical songs: the first entry where either string contains the other wins and
// is consumed, so one played song is never credited twice.
func GradeAnswers(key domain.AnswerKey, answers domain.Answers) domain.Grade {
	grade := domain.Grade{Points: make(map[string]int, 7)}

	for _, q := range domain.SingleChoiceQuestions {
		pts := 0
		if choiceMatches(key.SingleChoice[q], answers.Value(q)) {
			pts = singleChoicePoints
		}
		grade.Points[q] = pts
		grade.Total += pts
	}

	available := make([]string, 0, len(key.Surprise))
	for _, song := range key.Surprise {
		available = append(available, normalize(song))
	}
	for _, q := range domain.SurpriseQuestions {
		grade.Points[q] = 0
		guess := normalize(answers.Value(q))
		if guess == "" {
			continue
		}
		for i, canonical := range available {
			if strings.Contains(canonical, guess) || strings.Contains(guess, canonical) {
				grade.Points[q] = surprisePoints
				grade.Total += surprisePoints
				available = append(available[:i], available[i+1:]...)
				break
			}
		}
	}
	return grade
}

func choiceMatches(choice domain.Choice, raw string) bool {
	if raw == "" || len(choice.Values) == 0 {
		return false
	}
	if len(choice.Values) == 1 && choice.Values[0] == "" {
		return false
	}
	guess := normalize(raw)
	for _, accepted := range choice.Values {
		if normalize(accepted) == guess {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
