package domain

import "time"

// State is the lifecycle position of a quiz for one user.
type State string

const (
	StateUnknown    State = "unknown"
	StateNotOpenYet State = "not-open-yet"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateSubmitted  State = "submitted"
)

// QuizStatus is the resolved state plus the details that go with it.
type QuizStatus struct {
	State   State     `json:"status"`
	OpensOn time.Time `json:"-"`
	Reason  string    `json:"-"`
}
