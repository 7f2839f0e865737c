package opskit

import (
	"errors"
	"fmt"
)

// APIError represents an error response from the task service.
type APIError struct {
	Code   int    `json:"code"   yaml:"code"`
	Title  string `json:"title"  yaml:"title"`
	Detail string `json:"detail" yaml:"detail"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (code: %d)", e.Title, e.Detail, e.Code)
}

// StartError reports that the begin call itself failed. The operation was
// not observably started.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting operation: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// PollError reports that a status check could not be completed. The
// handle's prior state is untouched and the poll may be retried.
type PollError struct {
	OperationID string
	Err         error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("polling operation %s: %v", e.OperationID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// FetchError reports that a page fetch could not be completed. The cursor
// does not advance; a retried call re-attempts the same page.
type FetchError struct {
	Collection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page of %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ProtocolError reports that the remote endpoint answered with something
// the state machine cannot map. The poller refuses to guess rather than
// silently misclassify a terminal state.
type ProtocolError struct {
	OperationID string
	Status      string
	Detail      string
}

func (e *ProtocolError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("operation %s: unknown status %q", e.OperationID, e.Status)
	}

	return fmt.Sprintf("operation %s: %s", e.OperationID, e.Detail)
}

// Common static errors that can be wrapped with context.
var (
	ErrWaitTimeout       = errors.New("timed out waiting for operation to complete")
	ErrCancelUnsupported = errors.New("operation source does not support cancellation")
	ErrInvalidToken      = errors.New("invalid continuation token")
	ErrNoMoreItems       = errors.New("no more items")
	ErrNoMorePages       = errors.New("no more pages")
	ErrMixedIteration    = errors.New("iterator already committed to a different granularity")
	ErrNilOperation      = errors.New("operation handle is nil")
	ErrSourceRequired    = errors.New("operation source is required")
	ErrConfigRequired    = errors.New("config is required")
	ErrEndpointRequired  = errors.New("endpoint is required")
)

// IsTimeout checks if the error is a wait deadline error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}

// IsProtocol checks if the error is a protocol error.
func IsProtocol(err error) bool {
	protoErr := &ProtocolError{}

	return errors.As(err, &protoErr)
}

// IsInvalidToken checks if the error is a continuation token error.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// IsRetryablePoll checks if the error is a transient poll failure, i.e.
// the status check can simply be issued again.
func IsRetryablePoll(err error) bool {
	pollErr := &PollError{}

	return errors.As(err, &pollErr)
}

// IsRetryableFetch checks if the error is a transient page fetch failure.
func IsRetryableFetch(err error) bool {
	fetchErr := &FetchError{}

	return errors.As(err, &fetchErr)
}
