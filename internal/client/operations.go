package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/opskit/internal/transport"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// OperationsClient implements opskit.OperationsClient against the
// /v1/operations endpoints.
type OperationsClient struct {
	httpClient *transport.Client
}

// NewOperationsClient creates a new operations client.
func NewOperationsClient(httpClient *transport.Client) *OperationsClient {
	return &OperationsClient{
		httpClient: httpClient,
	}
}

// beginRequest is the wire form of a begin call. The idempotency key is
// generated client-side so a transport-level retry of the POST cannot
// create a second operation.
type beginRequest struct {
	Kind           string          `json:"kind"`
	Input          json.RawMessage `json:"input,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Begin implements opskit.OperationSource.Begin.
func (c *OperationsClient) Begin(ctx context.Context, req *opskit.OperationRequest) (*opskit.StartedOperation, error) {
	body := beginRequest{
		Kind:           req.Kind,
		Input:          req.Input,
		IdempotencyKey: uuid.NewString(),
	}

	resp, err := c.httpClient.Post(ctx, "/v1/operations", body)
	if err != nil {
		return nil, fmt.Errorf("beginning operation: %w", err)
	}

	var started opskit.StartedOperation

	err = json.Unmarshal(resp.Body, &started)
	if err != nil {
		return nil, fmt.Errorf("parsing operation: %w", err)
	}

	return &started, nil
}

// CheckStatus implements opskit.OperationSource.CheckStatus.
func (c *OperationsClient) CheckStatus(ctx context.Context, id string) (*opskit.OperationUpdate, error) {
	path := "/v1/operations/" + id

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting operation status: %w", err)
	}

	var update opskit.OperationUpdate

	err = json.Unmarshal(resp.Body, &update)
	if err != nil {
		return nil, fmt.Errorf("parsing operation status: %w", err)
	}

	return &update, nil
}

// CancelOperation implements opskit.OperationCanceler.CancelOperation.
// Services that do not expose the cancel endpoint answer 405 or 501;
// that is reported as the cancel capability being absent.
func (c *OperationsClient) CancelOperation(ctx context.Context, id string) (*opskit.OperationUpdate, error) {
	path := "/v1/operations/" + id + "/cancel"

	resp, err := c.httpClient.Post(ctx, path, nil)
	if err != nil {
		var apiErr *opskit.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusMethodNotAllowed || apiErr.Code == http.StatusNotImplemented) {
			return nil, opskit.ErrCancelUnsupported
		}

		return nil, fmt.Errorf("canceling operation: %w", err)
	}

	var update opskit.OperationUpdate

	err = json.Unmarshal(resp.Body, &update)
	if err != nil {
		return nil, fmt.Errorf("parsing cancel response: %w", err)
	}

	return &update, nil
}
