package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(&opskit.Config{})
	require.ErrorIs(t, err, opskit.ErrEndpointRequired)
}

func TestNew(t *testing.T) {
	client, err := New(&opskit.Config{Endpoint: "https://ops.example.com"})
	require.NoError(t, err)
	assert.NotNil(t, client.Operations())
	assert.NotNil(t, client.Poller())
}

func TestNew_WithInterceptors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trace-1", r.Header.Get("X-Trace"))

		_, _ = w.Write([]byte(`{"status":"RUNNING"}`))
	}))
	defer server.Close()

	chain := opskit.NewInterceptorChain()
	chain.AddRequestInterceptor(opskit.HeaderInterceptor(map[string]string{"X-Trace": "trace-1"}))

	var observedStatus int

	chain.AddResponseInterceptor(func(ctx context.Context, req *opskit.Request, resp *opskit.Response) error {
		observedStatus = resp.StatusCode
		return nil
	})

	client, err := New(&opskit.Config{
		Endpoint:     server.URL,
		Interceptors: chain,
	})
	require.NoError(t, err)

	_, err = client.Operations().CheckStatus(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, observedStatus)
}

func TestClient_ListPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tasks", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("page_size"))

		if r.URL.Query().Get("page_token") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"1"},{"id":"2"}],"next_page_token":"t2"}`))
			return
		}

		assert.Equal(t, "t2", r.URL.Query().Get("page_token"))
		_, _ = w.Write([]byte(`{"items":[{"id":"3"}]}`))
	}))
	defer server.Close()

	client, err := New(&opskit.Config{Endpoint: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	result, err := client.ListPage(ctx, "/v1/tasks", "", 25)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "t2", result.NextPageToken)

	result, err = client.ListPage(ctx, "/v1/tasks", "t2", 25)
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Empty(t, result.NextPageToken)
}

func TestClient_ListPage_OmitsEmptyParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("page_token"))
		assert.False(t, r.URL.Query().Has("page_size"))

		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client, err := New(&opskit.Config{Endpoint: server.URL})
	require.NoError(t, err)

	result, err := client.ListPage(context.Background(), "/v1/tasks", "", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestClient_EndToEnd_StartAndWait(t *testing.T) {
	polls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/operations":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"op-1","status":"PENDING"}`))
		case r.Method == "GET" && r.URL.Path == "/v1/operations/op-1":
			polls++
			if polls < 3 {
				_, _ = w.Write([]byte(`{"status":"RUNNING"}`))
				return
			}

			_, _ = w.Write([]byte(`{"status":"SUCCEEDED","result":{"ok":true}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := New(&opskit.Config{
		Endpoint:     server.URL,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()

	op, err := client.Poller().Start(ctx, &opskit.OperationRequest{Kind: "export"})
	require.NoError(t, err)
	assert.Equal(t, opskit.StatusPending, op.Status)

	op, err = client.Poller().Wait(ctx, op, &opskit.WaitOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, opskit.StatusSucceeded, op.Status)
	assert.JSONEq(t, `{"ok":true}`, string(op.Result))
}
