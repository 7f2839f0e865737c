package opskit

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a long-running operation.
type Status string

const (
	// StatusPending is the state immediately after start, before the first
	// status check confirms progress.
	StatusPending Status = "PENDING"

	// StatusRunning means at least one status check reported the operation
	// as in progress.
	StatusRunning Status = "RUNNING"

	// StatusSucceeded is terminal; the operation result is available.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed is terminal; the operation error is available.
	StatusFailed Status = "FAILED"

	// StatusCanceled is terminal; the operation was canceled remotely.
	StatusCanceled Status = "CANCELED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Known reports whether the status is part of the operation state machine.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// rank orders statuses for monotonicity checks. Terminal states share a
// rank because exactly one of them is ever observed per operation.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return 2
	default:
		return -1
	}
}

// OperationFailure is the failure detail reported by the remote service
// for an operation that reached StatusFailed. It is inspected as data on
// the handle, not raised as a Go error: only failures to observe status
// are errors.
type OperationFailure struct {
	Code   int    `json:"code,omitempty"   yaml:"code,omitempty"`
	Title  string `json:"title,omitempty"  yaml:"title,omitempty"`
	Detail string `json:"detail"           yaml:"detail"`
}

// Operation is a handle to one in-flight or completed long-running
// operation. It is created by Poller.Start or Poller.Resume, mutated only
// by poll operations, and immutable once terminal.
type Operation struct {
	ID      string            `json:"id"                yaml:"id"`
	Status  Status            `json:"status"            yaml:"status"`
	Result  json.RawMessage   `json:"result,omitempty"  yaml:"result,omitempty"`
	Failure *OperationFailure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Done reports whether the operation reached a terminal state.
func (o *Operation) Done() bool {
	return o.Status.Terminal()
}

// OperationRequest describes an operation to start. Kind selects the
// remote operation type; Input is passed through opaquely.
type OperationRequest struct {
	Kind  string          `json:"kind"            yaml:"kind"`
	Input json.RawMessage `json:"input,omitempty" yaml:"input,omitempty"`
}

// StartedOperation is the remote service's answer to a begin call.
type StartedOperation struct {
	ID     string `json:"id"     yaml:"id"`
	Status string `json:"status" yaml:"status"`
}

// OperationUpdate is the remote service's answer to a status check. The
// status is carried as a raw string so the poller can reject values the
// state machine does not know.
type OperationUpdate struct {
	Status  string            `json:"status"            yaml:"status"`
	Result  json.RawMessage   `json:"result,omitempty"  yaml:"result,omitempty"`
	Failure *OperationFailure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// OperationSource is the remote collaborator a Poller drives: one begin
// call and repeated status checks. Implementations perform at most one
// remote round trip per call and do not retry internally; retry policy
// belongs to the transport wrapped around them.
type OperationSource interface {
	Begin(ctx context.Context, req *OperationRequest) (*StartedOperation, error)
	CheckStatus(ctx context.Context, id string) (*OperationUpdate, error)
}

// OperationCanceler is the optional cancel capability of an
// OperationSource. Poller.Cancel fails with ErrCancelUnsupported when the
// source does not implement it.
type OperationCanceler interface {
	CancelOperation(ctx context.Context, id string) (*OperationUpdate, error)
}

// OperationsClient is the full operation endpoint surface of a service
// that supports cancellation.
type OperationsClient interface {
	OperationSource
	OperationCanceler
}

// ListResult is one raw page from a remote listing endpoint. Items remain
// undecoded so a single binding serves any element type.
type ListResult struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// ListClient is the remote listing collaborator: fetch one page of the
// collection at path, starting at token ("" for the first page).
type ListClient interface {
	ListPage(ctx context.Context, path string, token string, pageSize int) (*ListResult, error)
}

// Client is the surface a concrete service binding exposes to callers.
type Client interface {
	Operations() OperationsClient
	ListClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a service binding.
// Defaults are applied by the facade constructor; nothing here is
// process-wide state.
type Config struct {
	// Endpoint: base URL for the task service (e.g., "https://ops.example.com").
	// The facade normalizes this value by trimming a trailing slash and
	// adding "https://" if no scheme is present.
	Endpoint string

	// APIKey: if set, sent as a static Bearer token on every request.
	APIKey string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// RetryMax: maximum number of transport retries for transient failures
	// (>=500, 429, and connection errors). If 0, a default is used.
	RetryMax int
	// RetryWaitMin: minimum backoff between transport retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between transport retries.
	RetryWaitMax time.Duration

	// PollInterval: fixed polling interval for Wait. Zero selects the
	// exponential-backoff default.
	PollInterval time.Duration
	// MaxPollInterval caps backoff between polls.
	MaxPollInterval time.Duration

	// Debug enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool
	// Logger: optional structured logger used by the transport layer.
	Logger Logger

	// Interceptors: optional request/response interceptor chain executed
	// by the transport around every remote call.
	Interceptors *InterceptorChain
}
