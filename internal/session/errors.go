package session

import (
	"errors"
	"fmt"
)

// PreconditionError marks an operation attempted in a state that forbids it.
// It is always raised client-side, before any network call, and is recoverable
// by correcting the state.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsPrecondition reports whether the error is a client-side precondition
// rejection.
func IsPrecondition(err error) bool {
	var precondErr *PreconditionError
	return errors.As(err, &precondErr)
}

// ProgressRegressionError is returned when the server reports a progress value
// lower than one it reported earlier in the same session. Progress must be
// monotonically non-decreasing; a regression means a server defect or a session
// reset and is surfaced rather than smoothed over. The store still adopts the
// server's values, since the server log is the source of truth.
type ProgressRegressionError struct {
	From int
	To   int
}

func (e *ProgressRegressionError) Error() string {
	return fmt.Sprintf("session progress went backwards: %d%% -> %d%%", e.From, e.To)
}
