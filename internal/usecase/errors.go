package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrNetwork covers transport failures and non-success statuses.
	ErrNetwork = errors.New("ladder api unreachable")
	// ErrMalformedResponse means the payload did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed ladder api response")
	// ErrRejected matches any *RejectedError.
	ErrRejected = errors.New("rejected by ladder api")
	// ErrStorage wraps local persistence failures. The service absorbs them.
	ErrStorage = errors.New("local storage failure")
	// ErrSyncInProgress is returned when a drain is already running.
	ErrSyncInProgress = errors.New("pending sync already in progress")
)

// RejectedError is an explicit refusal from the server, e.g. an illegal
// challenge or a wrong PIN.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRejected.Error(), e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
