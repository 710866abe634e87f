// Package redis holds the go-redis connection shared by session state, the
// idempotency middleware and the cron lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = redis.Nil

var errNotConnected = errors.New("redis: client not connected")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client namespaces every key under "co:".
type Client struct {
	rdb redis.UniversalClient
}

// New dials Redis from cfg and fails fast when the server does not answer.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	return &Client{rdb: rdb}, nil
}

// NewFromRaw wraps an existing go-redis client, e.g. one pointed at miniredis.
func NewFromRaw(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// optionsFromConfig prefers CHECKOUT_REDIS_URL; explicit pool and timeout
// settings fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}
	fillDuration := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.rdb == nil {
		return errNotConnected
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns ErrNotFound for a missing key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", errNotConnected
	}
	return c.rdb.Get(ctx, key).Result()
}

// SetNX reports whether the key was created.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.rdb == nil {
		return false, errNotConnected
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.rdb == nil {
		return errNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DelIfValue deletes key only when it still holds value, atomically.
func (c *Client) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	if c.rdb == nil {
		return false, errNotConnected
	}
	n, err := compareAndDelete.Run(ctx, c.rdb, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return errNotConnected
	}
	return c.rdb.Ping(ctx).Err()
}

// Close is a no-op on a zero Client.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// IdempotencyKey is co:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

// CheckoutKey is co:checkout:<session>:<kind>.
func (c *Client) CheckoutKey(sessionID, kind string) string {
	return key("checkout", sessionID, kind)
}

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString("co")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
