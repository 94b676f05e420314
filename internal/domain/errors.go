package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuizNotFound is returned for an unknown show slug.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotAuthenticated indicates the caller has no session.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrStoreFailure wraps I/O errors from the persistence layer.
	ErrStoreFailure = errors.New("store failure")

	ErrAlreadySubmitted = errors.New("already submitted")
	ErrFormNotOpen      = errors.New("form not open")

	// ErrScoringDisabled is returned when scoring is turned off for the show and not forced.
	ErrScoringDisabled = errors.New("scoring not enabled for this quiz yet")
	// ErrScoringWindowNotOpen matches *ScoringWindowError.
	ErrScoringWindowNotOpen = errors.New("scoring window not open yet")
	// ErrNoAnswerKey means the show has no canonical answers, which is not the same as a zero score.
	ErrNoAnswerKey = errors.New("no answer key defined for this quiz")

	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidQuestion    = errors.New("invalid question")

	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("missing username/password")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrSessionNotFound    = errors.New("session not found")
)

// ScoringWindowError carries the instant at which batch scoring becomes allowed.
type ScoringWindowError struct {
	OpensAt time.Time
}

func (e *ScoringWindowError) Error() string {
	return fmt.Sprintf("%s (opens at %s)", ErrScoringWindowNotOpen, e.OpensAt.UTC().Format(time.RFC3339))
}

func (e *ScoringWindowError) Is(target error) bool {
	return target == ErrScoringWindowNotOpen
}

// StoreError wraps a persistence error so that it matches ErrStoreFailure.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}
