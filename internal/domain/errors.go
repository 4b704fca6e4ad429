package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier = errors.New("invalid asset identifier")
	ErrEmptyPayload      = errors.New("empty payload")
	ErrMissingResult     = errors.New("completed task has no output url")
)

// RemoteServiceError covers any transport failure or non-success status while
// talking to the enhancement service.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("remini: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("remini: %s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("remini: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("remini: %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// PollTimeoutError is returned when the poll ceiling is exhausted before the
// task reports completion.
type PollTimeoutError struct {
	TaskID     string
	Attempts   int
	LastStatus string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("remini: task %s not completed after %d status checks (last status %q)", e.TaskID, e.Attempts, e.LastStatus)
}

// OversizeInputError rejects a payload above the configured limit before any
// remote call is made.
type OversizeInputError struct {
	Size  int64
	Limit int64
}

func (e *OversizeInputError) Error() string {
	return fmt.Sprintf("photo is %d bytes, limit is %d bytes", e.Size, e.Limit)
}

// LimitMB returns the limit rounded down to whole megabytes.
func (e *OversizeInputError) LimitMB() int64 {
	return e.Limit / (1024 * 1024)
}

// AssetCleanupError reports a failed removal of a temporary file. It is logged
// and never shown to users.
type AssetCleanupError struct {
	Path string
	Err  error
}

func (e *AssetCleanupError) Error() string {
	return fmt.Sprintf("remove temporary asset %s: %v", e.Path, e.Err)
}

func (e *AssetCleanupError) Unwrap() error {
	return e.Err
}
