// Package opsclient provides the main entry point for creating task
// service clients.
package opsclient

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/opskit/internal/client"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// Client is the concrete service binding returned by New. It satisfies
// opskit.Client and additionally exposes the bound Poller.
type Client interface {
	opskit.Client
	Poller() *opskit.Poller
}

// New creates a task-service client from config, normalizing the
// endpoint first.
func New(config *opskit.Config) (Client, error) {
	if config == nil {
		return nil, opskit.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, opskit.ErrEndpointRequired
	}

	endpoint := strings.TrimSuffix(config.Endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	config.Endpoint = endpoint

	impl, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return impl, nil
}

// NewWithEndpoint creates a new client with just an endpoint (no auth).
func NewWithEndpoint(endpoint string) (Client, error) {
	return New(&opskit.Config{
		Endpoint: endpoint,
	})
}

// NewWithAPIKey creates a new client with an endpoint and API key.
func NewWithAPIKey(endpoint, apiKey string) (Client, error) {
	return New(&opskit.Config{
		Endpoint: endpoint,
		APIKey:   apiKey,
	})
}
