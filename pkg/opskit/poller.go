package opskit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/opskit/internal/constants"
)

// resumeTokenPrefix versions serialized handles so the format can evolve
// without breaking already-issued tokens.
const resumeTokenPrefix = "v1."

// PollerOptions tune a Poller at construction time.
type PollerOptions struct {
	// Interval fixes the polling cadence for Wait. Zero selects
	// exponential backoff starting at InitialInterval.
	Interval time.Duration

	// InitialInterval is the first backoff interval. Zero means
	// constants.DefaultPollInterval.
	InitialInterval time.Duration

	// MaxInterval caps the backoff. Zero means constants.MaxPollInterval.
	MaxInterval time.Duration

	// MinInterval floors any caller-supplied interval. Zero means
	// constants.MinPollInterval.
	MinInterval time.Duration
}

// DefaultPollerOptions returns the backoff defaults.
func DefaultPollerOptions() *PollerOptions {
	return &PollerOptions{
		InitialInterval: constants.DefaultPollInterval,
		MaxInterval:     constants.MaxPollInterval,
		MinInterval:     constants.MinPollInterval,
	}
}

// WaitOptions tune a single Wait call.
type WaitOptions struct {
	// Interval overrides the poller's cadence for this call. Values below
	// the poller's minimum are raised to it.
	Interval time.Duration

	// Timeout bounds the wait. Zero means constants.DefaultWaitTimeout.
	// On expiry Wait fails with ErrWaitTimeout; the remote operation keeps
	// running.
	Timeout time.Duration
}

// Poller drives a long-running remote operation to completion: start
// once, then poll until terminal. It owns no shared state; independent
// pollers may run concurrently.
type Poller struct {
	source OperationSource
	opts   PollerOptions
}

// NewPoller creates a poller over the given source.
func NewPoller(source OperationSource, opts *PollerOptions) (*Poller, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}

	merged := DefaultPollerOptions()
	if opts != nil {
		if opts.Interval > 0 {
			merged.Interval = opts.Interval
		}

		if opts.InitialInterval > 0 {
			merged.InitialInterval = opts.InitialInterval
		}

		if opts.MaxInterval > 0 {
			merged.MaxInterval = opts.MaxInterval
		}

		if opts.MinInterval > 0 {
			merged.MinInterval = opts.MinInterval
		}
	}

	return &Poller{source: source, opts: *merged}, nil
}

// Start invokes the begin collaborator once and returns a pollable
// handle. The call is not retried here; transient failures surface as
// StartError and retry policy stays with the transport.
func (p *Poller) Start(ctx context.Context, req *OperationRequest) (*Operation, error) {
	started, err := p.source.Begin(ctx, req)
	if err != nil {
		return nil, &StartError{Err: err}
	}

	status := Status(started.Status)
	if !status.Known() {
		return nil, &ProtocolError{OperationID: started.ID, Status: started.Status}
	}

	op := &Operation{
		ID:     started.ID,
		Status: status,
	}

	return op, nil
}

// Poll issues exactly one status check and applies the result to the
// handle. A handle that is already terminal is returned unchanged without
// a remote call. Transport failures surface as PollError and leave the
// handle untouched, so the caller may simply poll again.
func (p *Poller) Poll(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	if op.Done() {
		return op, nil
	}

	update, err := p.source.CheckStatus(ctx, op.ID)
	if err != nil {
		return op, &PollError{OperationID: op.ID, Err: err}
	}

	err = applyUpdate(op, update)
	if err != nil {
		return op, err
	}

	return op, nil
}

// Wait polls at the configured cadence until the operation is terminal,
// the deadline elapses, or ctx is canceled. Canceling ctx stops the wait
// only; the remote operation is untouched. Use Cancel for that.
func (p *Poller) Wait(ctx context.Context, op *Operation, opts *WaitOptions) (*Operation, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	timeout := constants.DefaultWaitTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fixed := p.opts.Interval
	if opts != nil && opts.Interval > 0 {
		fixed = opts.Interval
	}

	interval := p.nextInterval(0, fixed)

	// First check immediately.
	op, err := p.Poll(waitCtx, op)
	if err != nil {
		return op, waitFailure(ctx, waitCtx, op.ID, timeout, err)
	}

	for !op.Done() {
		timer := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()

			return op, waitFailure(ctx, waitCtx, op.ID, timeout, nil)
		case <-timer.C:
		}

		op, err = p.Poll(waitCtx, op)
		if err != nil {
			return op, waitFailure(ctx, waitCtx, op.ID, timeout, err)
		}

		interval = p.nextInterval(interval, fixed)
	}

	return op, nil
}

// waitFailure classifies an error out of the Wait loop. Deadline expiry
// and caller cancellation take precedence over the poll failure they
// interrupted: a status check aborted by the wait deadline is a timeout,
// not a transport failure.
func waitFailure(ctx, waitCtx context.Context, id string, timeout time.Duration, pollErr error) error {
	if waitCtx.Err() == nil {
		return pollErr
	}

	if ctx.Err() != nil {
		// The caller's context ended, not our deadline.
		return fmt.Errorf("waiting for operation %s: %w", id, ctx.Err())
	}

	return fmt.Errorf("%w: operation %s after %s", ErrWaitTimeout, id, timeout)
}

// nextInterval computes the delay before the next poll: a fixed cadence
// when one is set, otherwise exponential backoff capped at MaxInterval.
// The configured minimum is always enforced.
func (p *Poller) nextInterval(previous, fixed time.Duration) time.Duration {
	var next time.Duration

	if fixed > 0 {
		next = fixed
	} else if previous == 0 {
		next = p.opts.InitialInterval
	} else {
		next = previous * constants.BackoffMultiplier
		if next > p.opts.MaxInterval {
			next = p.opts.MaxInterval
		}
	}

	if next < p.opts.MinInterval {
		next = p.opts.MinInterval
	}

	return next
}

// Cancel asks the remote endpoint to cancel the operation. On an already
// terminal handle this is a no-op returning the handle unchanged. Sources
// without the cancel capability fail with ErrCancelUnsupported.
func (p *Poller) Cancel(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	if op.Done() {
		return op, nil
	}

	canceler, ok := p.source.(OperationCanceler)
	if !ok {
		return op, ErrCancelUnsupported
	}

	update, err := canceler.CancelOperation(ctx, op.ID)
	if err != nil {
		return op, fmt.Errorf("canceling operation %s: %w", op.ID, err)
	}

	err = applyUpdate(op, update)
	if err != nil {
		return op, err
	}

	return op, nil
}

// resumeState is the serialized snapshot of a handle. The schema is
// frozen per token version.
type resumeState struct {
	ID      string            `json:"id"`
	Status  Status            `json:"status"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Failure *OperationFailure `json:"failure,omitempty"`
}

// ResumeToken captures the handle as a flat, versioned, opaque string so
// it can be reconstructed in another process without re-issuing the start
// call.
func (o *Operation) ResumeToken() (string, error) {
	state := resumeState{
		ID:      o.ID,
		Status:  o.Status,
		Result:  o.Result,
		Failure: o.Failure,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("serializing operation handle: %w", err)
	}

	return resumeTokenPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// Resume reconstructs a handle from a token produced by ResumeToken. The
// start call is not re-issued; the next Poll observes live remote state.
// A "not found" answer at that point is a ProtocolError, not a fabricated
// terminal status.
func (p *Poller) Resume(token string) (*Operation, error) {
	raw, ok := strings.CutPrefix(token, resumeTokenPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resume token version", ErrInvalidToken)
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var state resumeState

	err = json.Unmarshal(data, &state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if state.ID == "" || !state.Status.Known() {
		return nil, fmt.Errorf("%w: incomplete operation snapshot", ErrInvalidToken)
	}

	op := &Operation{
		ID:      state.ID,
		Status:  state.Status,
		Result:  state.Result,
		Failure: state.Failure,
	}

	return op, nil
}

// applyUpdate folds a remote status report into the handle, enforcing the
// state machine: unknown statuses are rejected, transitions never move
// backwards, and result/failure are set only on terminal states.
func applyUpdate(op *Operation, update *OperationUpdate) error {
	status := Status(update.Status)
	if !status.Known() {
		return &ProtocolError{OperationID: op.ID, Status: update.Status}
	}

	// A stale report must not regress the handle.
	if status.rank() < op.Status.rank() {
		return nil
	}

	op.Status = status

	if status == StatusSucceeded {
		op.Result = update.Result
	}

	if status == StatusFailed {
		op.Failure = update.Failure
		if op.Failure == nil {
			op.Failure = &OperationFailure{Detail: "no failure details reported"}
		}
	}

	return nil
}
