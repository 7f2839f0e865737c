package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/opskit/internal/transport"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

func TestOperationsClient_Begin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/operations", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "export", body["kind"])

		// Every begin call carries a client-generated idempotency key
		assert.NotEmpty(t, body["idempotency_key"])

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"op-1","status":"PENDING"}`))
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	started, err := client.Begin(context.Background(), &opskit.OperationRequest{
		Kind:  "export",
		Input: json.RawMessage(`{"format":"csv"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1", started.ID)
	assert.Equal(t, "PENDING", started.Status)
}

func TestOperationsClient_Begin_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"title":"Invalid","detail":"kind is required"}`))
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	_, err := client.Begin(context.Background(), &opskit.OperationRequest{})
	require.Error(t, err)

	var apiErr *opskit.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "kind is required", apiErr.Detail)
}

func TestOperationsClient_CheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/operations/op-1", r.URL.Path)
		assert.Equal(t, "GET", r.Method)

		_, _ = w.Write([]byte(`{"status":"SUCCEEDED","result":{"rows":42}}`))
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	update, err := client.CheckStatus(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", update.Status)
	assert.JSONEq(t, `{"rows":42}`, string(update.Result))
}

func TestOperationsClient_CheckStatus_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","failure":{"code":4001,"title":"QuotaExceeded","detail":"quota exceeded"}}`))
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	update, err := client.CheckStatus(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", update.Status)
	require.NotNil(t, update.Failure)
	assert.Equal(t, 4001, update.Failure.Code)
	assert.Equal(t, "quota exceeded", update.Failure.Detail)
}

func TestOperationsClient_CancelOperation_NotSupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	_, err := client.CancelOperation(context.Background(), "op-1")
	require.ErrorIs(t, err, opskit.ErrCancelUnsupported)
}

func TestOperationsClient_CancelOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/operations/op-1/cancel", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		_, _ = w.Write([]byte(`{"status":"CANCELED"}`))
	}))
	defer server.Close()

	client := NewOperationsClient(transport.NewClient(server.URL))

	update, err := client.CancelOperation(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", update.Status)
}
