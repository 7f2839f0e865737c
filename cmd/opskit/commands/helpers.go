package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/opskit/pkg/opsclient"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// Output formats.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Common static errors used throughout the commands package.
var (
	ErrAPIEndpointRequired = errors.New("no API endpoint configured (use --api, OPSKIT_API, or login)")
	ErrTokenOrStoreKey     = errors.New("provide a resume token argument or --store-key")
)

// CreateClient builds a client from flags, environment, and config file.
func CreateClient() (opsclient.Client, error) {
	endpoint := viper.GetString("api")
	if endpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	config := &opskit.Config{
		Endpoint: endpoint,
		APIKey:   viper.GetString("token"),
		Debug:    viper.GetBool("verbose"),
	}

	if config.Debug {
		logger := stderrLogger{}
		chain := opskit.NewInterceptorChain()
		chain.AddRequestInterceptor(opskit.LoggingInterceptor(logger))
		chain.AddResponseInterceptor(opskit.LoggingResponseInterceptor(logger))

		config.Logger = logger
		config.Interceptors = chain
	}

	client, err := opsclient.New(config)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return client, nil
}

// stderrLogger implements opskit.Logger for --verbose output.
type stderrLogger struct{}

func (stderrLogger) Debug(msg string, fields map[string]interface{}) { logLine("DEBUG", msg, fields) }
func (stderrLogger) Info(msg string, fields map[string]interface{})  { logLine("INFO", msg, fields) }
func (stderrLogger) Warn(msg string, fields map[string]interface{})  { logLine("WARN", msg, fields) }
func (stderrLogger) Error(msg string, fields map[string]interface{}) { logLine("ERROR", msg, fields) }

func logLine(level, msg string, fields map[string]interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s %v\n", level, msg, fields)
}

// createStore builds the token store selected in configuration.
// store.type may be memory, nats, or none; NATS settings live under
// store.nats.*.
func createStore() (opskit.Store, error) {
	builder := opskit.NewStoreBuilder()

	storeType := viper.GetString("store.type")
	if storeType != "" {
		builder.WithType(opskit.StoreType(storeType))
	}

	natsURL := viper.GetString("store.nats.url")
	if natsURL != "" {
		builder.WithType(opskit.StoreTypeNATS).WithNATSConfig(&opskit.NATSStoreConfig{
			URL:       natsURL,
			Bucket:    viper.GetString("store.nats.bucket"),
			TTL:       viper.GetDuration("store.nats.ttl"),
			CredsFile: viper.GetString("store.nats.creds"),
		})
	}

	store, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("creating token store: %w", err)
	}

	return store, nil
}

// renderOperation prints an operation handle in the selected output
// format.
func renderOperation(op *opskit.Operation) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(op)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(op)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		_ = table.Append("ID", op.ID)
		_ = table.Append("Status", string(op.Status))

		if len(op.Result) > 0 {
			_ = table.Append("Result", string(op.Result))
		}

		if op.Failure != nil {
			_ = table.Append("Failure", op.Failure.Detail)
		}

		_ = table.Render()
	}

	return nil
}

// renderItems prints raw list items in the selected output format.
func renderItems(items []json.RawMessage) error {
	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(items)
	case OutputFormatYAML:
		decoded := make([]interface{}, 0, len(items))

		for _, raw := range items {
			var value interface{}
			if err := json.Unmarshal(raw, &value); err != nil {
				return fmt.Errorf("decoding item: %w", err)
			}

			decoded = append(decoded, value)
		}

		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(decoded)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Item")

		for i, raw := range items {
			_ = table.Append(fmt.Sprintf("%d", i+1), string(raw))
		}

		_ = table.Render()
	}

	return nil
}
