// Package redis publishes session summaries over Redis pub/sub.
//
// Each summary is PUBLISHed as JSON to a channel. When a key is configured,
// the same payload is also stored under it so late readers can fetch the
// most recent session's result.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/testbridge/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "testbridge:session_finished"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: testbridge:session_finished).
	Channel string
	// Key, if set, also receives the latest summary via SET.
	Key string
	// KeyTTL expires Key. Zero keeps it forever.
	KeyTTL time.Duration
	// Timeout is the per-attempt timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff overrides adapter.DefaultBackoff.
	Backoff adapter.Backoff
}

// Adapter publishes session summaries via Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.KeyTTL < 0 {
		return nil, fmt.Errorf("key TTL must be >= 0, got %v", cfg.KeyTTL)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the summary to the configured channel, and to the key when
// one is configured, in a single MULTI/EXEC. Retries on any failure.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionFinishedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "redis", a.config.Retries, a.config.Backoff, nil, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		_, err := a.client.TxPipelined(attemptCtx, func(p goredis.Pipeliner) error {
			p.Publish(attemptCtx, a.config.Channel, body)
			if a.config.Key != "" {
				p.Set(attemptCtx, a.config.Key, body, a.config.KeyTTL)
			}
			return nil
		})
		return err
	})
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
