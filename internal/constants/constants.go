package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits for the transport layer.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 30 * time.Second
)

// Polling cadence.
const (
	// MinPollInterval is the floor for any polling interval. Callers may
	// not poll the remote endpoint faster than this.
	MinPollInterval = 100 * time.Millisecond

	// DefaultPollInterval is the starting interval for backoff polling.
	DefaultPollInterval = 2 * time.Second

	// MaxPollInterval caps the exponential backoff between polls.
	MaxPollInterval = 30 * time.Second

	// DefaultWaitTimeout is the default deadline for Wait.
	DefaultWaitTimeout = 5 * time.Minute

	// BackoffMultiplier is the factor applied between backoff polls.
	BackoffMultiplier = 2
)

// Pagination defaults.
const (
	// DefaultPageSize is the page size requested when the caller supplies none.
	DefaultPageSize = 50

	// MaxPages bounds FetchAllPages against runaway collections.
	MaxPages = 1000
)

// Token store defaults.
const (
	// DefaultStoreBucket is the NATS KV bucket used for resume tokens.
	DefaultStoreBucket = "opskit-tokens"

	// DefaultStoreTTL is how long stored tokens are retained.
	DefaultStoreTTL = 24 * time.Hour

	// DefaultStoreMaxEntries limits the in-memory token store.
	DefaultStoreMaxEntries = 1000
)

// File permissions for CLI configuration.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)
