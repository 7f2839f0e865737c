package opskit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/opskit/internal/constants"
)

// Store persists resume and continuation tokens across process
// boundaries, keyed by a caller-chosen name. Tokens are opaque strings;
// the store never inspects them.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// StoreType represents the type of store backend.
type StoreType string

const (
	// StoreTypeMemory represents an in-process store.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeNATS represents a NATS KV store.
	StoreTypeNATS StoreType = "nats"

	// StoreTypeNone represents no persistence.
	StoreTypeNone StoreType = "none"
)

// Static errors for err113 compliance.
var (
	ErrTokenNotFound        = errors.New("token not found")
	ErrStoreDisabled        = errors.New("token store disabled")
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS store")
	ErrUnsupportedStoreType = errors.New("unsupported store type")
)

// StoreConfig configures a store backend.
type StoreConfig struct {
	// Type is the store backend type
	Type StoreType

	// Memory store configuration
	Memory *MemoryStoreConfig

	// NATS KV store configuration
	NATS *NATSStoreConfig
}

// MemoryStoreConfig configures the in-process store.
type MemoryStoreConfig struct {
	// MaxEntries is the maximum number of tokens held; the oldest entry
	// is evicted when full.
	MaxEntries int
}

// NATSStoreConfig configures the NATS KV store.
type NATSStoreConfig struct {
	// URL is the NATS server URL (e.g., nats://localhost:4222).
	URL string

	// Bucket is the KV bucket name. Empty selects the default bucket.
	Bucket string

	// TTL is how long stored tokens are retained by the bucket.
	TTL time.Duration

	// CredsFile is an optional NATS credentials file.
	CredsFile string
}

// DefaultStoreConfig returns the in-process default.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Type: StoreTypeMemory,
		Memory: &MemoryStoreConfig{
			MaxEntries: constants.DefaultStoreMaxEntries,
		},
	}
}

// NewStoreFromConfig creates a store backend from configuration.
func NewStoreFromConfig(config *StoreConfig) (Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}

	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryStoreFromConfig(config.Memory), nil

	case StoreTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSStore(config.NATS)

	case StoreTypeNone:
		return NewNoOpStore(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// NewMemoryStoreFromConfig creates a memory store from configuration.
func NewMemoryStoreFromConfig(config *MemoryStoreConfig) Store {
	if config == nil {
		config = &MemoryStoreConfig{
			MaxEntries: constants.DefaultStoreMaxEntries,
		}
	}

	return NewMemoryStore(config.MaxEntries)
}

// MemoryStore keeps tokens in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	tokens     map[string]string
	order      []string
	maxEntries int
}

// NewMemoryStore creates an in-process store holding at most maxEntries
// tokens.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = constants.DefaultStoreMaxEntries
	}

	return &MemoryStore{
		tokens:     make(map[string]string),
		maxEntries: maxEntries,
	}
}

// Get retrieves a token by key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}

	return token, nil
}

// Set stores a token, evicting the oldest entry when full.
func (s *MemoryStore) Set(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[key]; !exists {
		if len(s.tokens) >= s.maxEntries && len(s.order) > 0 {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.tokens, oldest)
		}

		s.order = append(s.order, key)
	}

	s.tokens[key] = token

	return nil
}

// Delete removes a token.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)

	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return nil
}

// Clear removes all tokens.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]string)
	s.order = nil

	return nil
}

// Has checks if a key exists.
func (s *MemoryStore) Has(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tokens[key]

	return ok
}

// NoOpStore is a store that persists nothing.
type NoOpStore struct{}

// NewNoOpStore creates a new no-op store.
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Get always reports the token as missing.
func (s *NoOpStore) Get(ctx context.Context, key string) (string, error) {
	return "", ErrStoreDisabled
}

// Set does nothing.
func (s *NoOpStore) Set(ctx context.Context, key, token string) error {
	return nil
}

// Delete does nothing.
func (s *NoOpStore) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear does nothing.
func (s *NoOpStore) Clear(ctx context.Context) error {
	return nil
}

// Has always returns false.
func (s *NoOpStore) Has(ctx context.Context, key string) bool {
	return false
}

// StoreBuilder helps build store configurations.
type StoreBuilder struct {
	config *StoreConfig
}

// NewStoreBuilder creates a new store builder.
func NewStoreBuilder() *StoreBuilder {
	return &StoreBuilder{
		config: &StoreConfig{
			Type: StoreTypeMemory,
		},
	}
}

// WithType sets the store type.
func (b *StoreBuilder) WithType(storeType StoreType) *StoreBuilder {
	b.config.Type = storeType

	return b
}

// WithMemoryConfig sets memory store configuration.
func (b *StoreBuilder) WithMemoryConfig(maxEntries int) *StoreBuilder {
	b.config.Memory = &MemoryStoreConfig{
		MaxEntries: maxEntries,
	}

	return b
}

// WithNATSConfig sets NATS store configuration.
func (b *StoreBuilder) WithNATSConfig(config *NATSStoreConfig) *StoreBuilder {
	b.config.NATS = config

	return b
}

// Build creates the store from the configuration.
func (b *StoreBuilder) Build() (Store, error) {
	return NewStoreFromConfig(b.config)
}
