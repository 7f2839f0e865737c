package opskit

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/opskit/internal/constants"
)

// NATSStore persists tokens in a NATS JetStream key-value bucket so a
// wait can be resumed from another process or host.
type NATSStore struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSStore connects to NATS and binds (or creates) the token bucket.
func NewNATSStore(config *NATSStoreConfig) (*NATSStore, error) {
	if config == nil || config.URL == "" {
		return nil, ErrNATSConfigRequired
	}

	var opts []nats.Option
	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("getting JetStream context: %w", err)
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = constants.DefaultStoreBucket
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = constants.DefaultStoreTTL
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucket,
			TTL:    ttl,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("binding KV bucket %s: %w", bucket, err)
	}

	return &NATSStore{conn: conn, kv: kv}, nil
}

// Get retrieves a token by key.
func (s *NATSStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
		}

		return "", fmt.Errorf("getting token %s: %w", key, err)
	}

	return string(entry.Value()), nil
}

// Set stores a token.
func (s *NATSStore) Set(ctx context.Context, key, token string) error {
	_, err := s.kv.Put(key, []byte(token))
	if err != nil {
		return fmt.Errorf("storing token %s: %w", key, err)
	}

	return nil
}

// Delete removes a token.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting token %s: %w", key, err)
	}

	return nil
}

// Clear removes all tokens in the bucket.
func (s *NATSStore) Clear(ctx context.Context) error {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("listing tokens: %w", err)
	}

	for _, key := range keys {
		err := s.kv.Delete(key)
		if err != nil {
			return fmt.Errorf("deleting token %s: %w", key, err)
		}
	}

	return nil
}

// Has checks if a key exists.
func (s *NATSStore) Has(ctx context.Context, key string) bool {
	_, err := s.kv.Get(key)

	return err == nil
}

// Close releases the NATS connection.
func (s *NATSStore) Close() {
	s.conn.Close()
}
