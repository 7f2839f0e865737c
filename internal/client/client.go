// Package client binds the abstract operation and listing collaborators
// to a concrete REST task service.
package client

import (
	"time"

	"github.com/fivetwenty-io/opskit/internal/constants"
	"github.com/fivetwenty-io/opskit/internal/transport"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// Client implements the opskit.Client interface.
type Client struct {
	httpClient *transport.Client
	baseURL    string
	logger     opskit.Logger

	operations *OperationsClient
	poller     *opskit.Poller
}

// createTransportOptions builds transport options from config.
func createTransportOptions(config *opskit.Config) []transport.Option {
	var opts []transport.Option

	if config.APIKey != "" {
		opts = append(opts, transport.WithAPIKey(config.APIKey))
	}

	if config.Logger != nil {
		opts = append(opts, transport.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, transport.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(config.UserAgent))
	}

	if config.Interceptors != nil {
		opts = append(opts, transport.WithInterceptors(config.Interceptors))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		opts = append(opts, transport.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return opts
}

// New creates a concrete task-service client.
func New(config *opskit.Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, opskit.ErrEndpointRequired
	}

	httpClient := transport.NewClient(config.Endpoint, createTransportOptions(config)...)

	client := &Client{
		httpClient: httpClient,
		baseURL:    config.Endpoint,
		logger:     config.Logger,
		operations: NewOperationsClient(httpClient),
	}

	poller, err := opskit.NewPoller(client.operations, pollerOptions(config))
	if err != nil {
		return nil, err
	}

	client.poller = poller

	return client, nil
}

// pollerOptions maps client config onto poller construction options.
func pollerOptions(config *opskit.Config) *opskit.PollerOptions {
	var interval, maxInterval time.Duration

	if config.PollInterval > 0 {
		interval = config.PollInterval
	}

	if config.MaxPollInterval > 0 {
		maxInterval = config.MaxPollInterval
	}

	return &opskit.PollerOptions{
		Interval:    interval,
		MaxInterval: maxInterval,
	}
}

// Operations implements opskit.Client.Operations.
func (c *Client) Operations() opskit.OperationsClient {
	return c.operations
}

// Poller returns the poller bound to this service's operation endpoints.
func (c *Client) Poller() *opskit.Poller {
	return c.poller
}
