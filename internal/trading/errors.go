package trading

import (
	"errors"
)

// Unmet preconditions for opening a trade.
var (
	ErrInsufficientBalance = errors.New("stake amount is not fulfilled")
	ErrNoCandidates        = errors.New("no pair in whitelist")
)

// DependencyError reports that a trade cannot be created right now.
// It is expected and recovered by logging; the cycle continues.
type DependencyError struct {
	Err    error
	Detail string
}

func (e *DependencyError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + e.Detail + ")"
}

func (e *DependencyError) Unwrap() error { return e.Err }

// IsDependency reports whether err is a *DependencyError.
func IsDependency(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}
