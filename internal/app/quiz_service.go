package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"setlist-quiz-service/internal/domain"
)

const (
	leaderboardSize = 5
	statusDBError   = "DB error"
)

// SubmissionRepository abstracts where submissions live (memory, Postgres, SQLite).
// Insert must be insert-if-absent on (user, quiz) and report a conflict as
// domain.ErrAlreadySubmitted.
type SubmissionRepository interface {
	Exists(ctx context.Context, quizID, userID int64) (bool, error)
	Insert(ctx context.Context, sub domain.Submission) (int64, error)
	FetchUnscored(ctx context.Context, quizID int64) ([]domain.Submission, error)
	SetScore(ctx context.Context, submissionID int64, score int) error
	Get(ctx context.Context, quizID, userID int64) (domain.Submission, error)
	Leaderboard(ctx context.Context, quizID int64, limit int) ([]domain.LeaderboardEntry, error)
}

// AnswerKeyRepository loads answer keys (from cache/backing store).
type AnswerKeyRepository interface {
	GetAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error)
}

// QuizService contains the quiz lifecycle and scoring use cases.
type QuizService struct {
	registry    *Registry
	submissions SubmissionRepository
	answerKeys  AnswerKeyRepository
	now         func() time.Time
	log         *slog.Logger
}

func NewQuizService(registry *Registry, submissions SubmissionRepository, answerKeys AnswerKeyRepository) *QuizService {
	return NewQuizServiceWithClock(registry, submissions, answerKeys, time.Now)
}

// NewQuizServiceWithClock lets tests pin "now" around window edges.
func NewQuizServiceWithClock(registry *Registry, submissions SubmissionRepository, answerKeys AnswerKeyRepository, now func() time.Time) *QuizService {
	return &QuizService{
		registry:    registry,
		submissions: submissions,
		answerKeys:  answerKeys,
		now:         now,
		log:         slog.Default().With("component", "quiz"),
	}
}

// ResolveStatus reports where the quiz stands for this user. A failed existence
// check yields StateUnknown and an ErrStoreFailure, never an open or closed guess.
func (s *QuizService) ResolveStatus(ctx context.Context, slug string, userID int64) (domain.QuizStatus, error) {
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return domain.QuizStatus{}, domain.ErrQuizNotFound
	}
	return s.resolve(ctx, cfg, userID)
}

func (s *QuizService) resolve(ctx context.Context, cfg domain.QuizConfig, userID int64) (domain.QuizStatus, error) {
	// Runs before the window checks: a submitted user stays submitted even if
	// the registry times are off.
	exists, err := s.submissions.Exists(ctx, cfg.QuizID, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreFailure) {
			err = domain.StoreError("check submission", err)
		}
		s.log.Error("checking submission failed", "quiz", cfg.Slug, "user", userID, "error", err)
		return domain.QuizStatus{State: domain.StateUnknown, Reason: statusDBError}, err
	}
	if exists {
		return domain.QuizStatus{State: domain.StateSubmitted}, nil
	}

	now := s.now().In(cfg.Location)
	opensAt := cfg.OpensAt()
	switch {
	case now.Before(opensAt):
		return domain.QuizStatus{State: domain.StateNotOpenYet, OpensOn: opensAt}, nil
	case !now.Before(cfg.ClosesAt()):
		return domain.QuizStatus{State: domain.StateClosed}, nil
	default:
		return domain.QuizStatus{State: domain.StateOpen}, nil
	}
}

// Submit stores the user's guesses if the quiz is open and they have not submitted yet.
func (s *QuizService) Submit(ctx context.Context, slug string, userID int64, answers domain.Answers) (int64, error) {
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return 0, domain.ErrQuizNotFound
	}

	status, err := s.resolve(ctx, cfg, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrFormNotOpen, err)
	}
	switch status.State {
	case domain.StateOpen:
	case domain.StateSubmitted:
		return 0, domain.ErrAlreadySubmitted
	default:
		return 0, domain.ErrFormNotOpen
	}

	// The existence check above is only a fast path; the store's insert-if-absent
	// decides races between concurrent submits.
	id, err := s.submissions.Insert(ctx, domain.Submission{
		UserID:      userID,
		QuizID:      cfg.QuizID,
		Answers:     answers,
		SubmittedAt: s.now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadySubmitted) {
			s.log.Error("insert submission failed", "quiz", slug, "user", userID, "error", err)
		}
		return 0, err
	}
	s.log.Info("submission received", "quiz", slug, "user", userID, "submission", id)
	return id, nil
}

// ComputeScores scores every unscored submission of a show. It is not atomic:
// each row is written independently, and a rerun only touches rows still missing
// a score, so an interrupted run can simply be repeated.
func (s *QuizService) ComputeScores(ctx context.Context, slug string, force bool) (domain.ScoringReport, error) {
	report := domain.ScoringReport{Details: []domain.ScoreDetail{}}

	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return report, domain.ErrQuizNotFound
	}
	if !cfg.ScoringEnabled && !force {
		return report, domain.ErrScoringDisabled
	}
	opensAt := cfg.ScoringOpensAt()
	if !force && s.now().Before(opensAt) {
		return report, &domain.ScoringWindowError{OpensAt: opensAt}
	}

	key, err := s.answerKeys.GetAnswerKey(ctx, slug)
	if err != nil {
		return report, err
	}

	rows, err := s.submissions.FetchUnscored(ctx, cfg.QuizID)
	if err != nil {
		return report, err
	}

	for _, sub := range rows {
		score, ok := Score(&key, sub.Answers)
		if !ok {
			continue
		}
		if err := s.submissions.SetScore(ctx, sub.ID, score); err != nil {
			s.log.Error("persist score failed", "quiz", slug, "submission", sub.ID, "scored_so_far", report.Scored, "error", err)
			return report, err
		}
		report.Details = append(report.Details, domain.ScoreDetail{
			UserID:       sub.UserID,
			SubmissionID: sub.ID,
			Score:        score,
		})
		report.Scored++
	}
	s.log.Info("scores computed", "quiz", slug, "scored", report.Scored, "forced", force)
	return report, nil
}

// UserScore returns the caller's score, or nil while scoring is disabled or the
// submission is missing or not yet scored.
func (s *QuizService) UserScore(ctx context.Context, slug string, userID int64) (*int, error) {
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	if !cfg.ScoringEnabled {
		return nil, nil
	}
	sub, err := s.submissions.Get(ctx, cfg.QuizID, userID)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub.Score, nil
}

// Results returns the caller's submission and the answer key; either may be nil.
func (s *QuizService) Results(ctx context.Context, slug string, userID int64) (domain.QuizResults, error) {
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return domain.QuizResults{}, domain.ErrQuizNotFound
	}

	var results domain.QuizResults
	sub, err := s.submissions.Get(ctx, cfg.QuizID, userID)
	switch {
	case err == nil:
		results.Submission = &sub.Answers
	case !errors.Is(err, domain.ErrSubmissionNotFound):
		return domain.QuizResults{}, err
	}

	key, err := s.answerKeys.GetAnswerKey(ctx, slug)
	switch {
	case err == nil:
		results.Answers = &key
	case !errors.Is(err, domain.ErrNoAnswerKey):
		return domain.QuizResults{}, err
	}

	if results.Submission != nil && results.Answers != nil {
		grade := GradeAnswers(key, sub.Answers)
		results.Grade = &grade
	}
	return results, nil
}

// Leaderboard returns the top scored submissions of a show.
func (s *QuizService) Leaderboard(ctx context.Context, slug string) (domain.QuizConfig, []domain.LeaderboardEntry, error) {
	return s.leaderboard(ctx, slug, leaderboardSize)
}

// FullLeaderboard returns every scored submission of a show, for exports.
func (s *QuizService) FullLeaderboard(ctx context.Context, slug string) (domain.QuizConfig, []domain.LeaderboardEntry, error) {
	return s.leaderboard(ctx, slug, 0)
}

func (s *QuizService) leaderboard(ctx context.Context, slug string, limit int) (domain.QuizConfig, []domain.LeaderboardEntry, error) {
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return domain.QuizConfig{}, nil, domain.ErrQuizNotFound
	}
	entries, err := s.submissions.Leaderboard(ctx, cfg.QuizID, limit)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, entries, nil
}

// ListQuizzes summarizes every show; scored shows carry their leaderboard.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	shows := s.registry.All()
	list := make([]domain.QuizSummary, 0, len(shows))
	for _, cfg := range shows {
		leaderboard := []domain.LeaderboardEntry{}
		if cfg.ScoringEnabled {
			entries, err := s.submissions.Leaderboard(ctx, cfg.QuizID, leaderboardSize)
			if err != nil {
				return nil, err
			}
			leaderboard = entries
		}
		list = append(list, domain.QuizSummary{
			Slug:        cfg.Slug,
			QuizID:      cfg.QuizID,
			Name:        displayName(cfg.Slug),
			Date:        cfg.Start.Format("1/2"),
			Scored:      cfg.ScoringEnabled,
			Leaderboard: leaderboard,
		})
	}
	return list, nil
}

// Registry exposes the show registry to other layers.
func (s *QuizService) Registry() *Registry {
	return s.registry
}

func displayName(slug string) string {
	if slug == "" {
		return ""
	}
	return strings.ToUpper(slug[:1]) + slug[1:]
}
