// Package redis persists viewer settings in a Redis hash, one field per
// setting, so several viewer hosts can share a user's preferences.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-viewer/settings"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "viewer:settings:"

var _ settings.Backend = (*Backend)(nil)

// Backend implements settings.Backend on a Redis hash.
type Backend struct {
	client *redis.Client
	key    string
}

// NewBackend connects to redisURL and stores settings under namespace.
func NewBackend(ctx context.Context, redisURL, namespace string) (*Backend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewBackendWithClient(client, namespace), nil
}

// NewBackendWithClient wraps an existing client.
func NewBackendWithClient(client *redis.Client, namespace string) *Backend {
	if namespace == "" {
		namespace = "default"
	}
	return &Backend{client: client, key: defaultPrefix + namespace}
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// LoadAll implements settings.Backend.
func (b *Backend) LoadAll(ctx context.Context) (map[string]any, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]any, len(fields))
	for name, raw := range fields {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode setting %s: %w", name, err)
		}
		values[name] = value
	}
	return values, nil
}

// Save implements settings.Backend.
func (b *Backend) Save(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", name, err)
	}
	if err := b.client.HSet(ctx, b.key, name, string(encoded)).Err(); err != nil {
		return fmt.Errorf("save setting %s: %w", name, err)
	}
	return nil
}

// Delete implements settings.Backend.
func (b *Backend) Delete(ctx context.Context, name string) error {
	if err := b.client.HDel(ctx, b.key, name).Err(); err != nil {
		return fmt.Errorf("delete setting %s: %w", name, err)
	}
	return nil
}
