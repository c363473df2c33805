// Package cache holds the shared Redis client and the small caching helpers
// built on it: cache-aside reads, user key invalidation and token revocation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"monolith/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorHook counts failed commands by name. A cache miss (redis.Nil) and a
// cancelled caller are not failures of the store.
type errorHook struct{}

func countable(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled)
}

func (errorHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if countable(err) {
			middleware.RedisErrors.WithLabelValues("dial").Inc()
		}
		return conn, err
	}
}

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if countable(err) {
			middleware.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if countable(err) {
			middleware.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// options accepts either a redis:// URL or a bare host:port.
func options(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// NewClient dials addr and verifies the server answers a PING.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := options(addr)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(errorHook{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// InitRedis connects the package client. Redis is optional: on failure the
// client stays nil and callers fall back to the database.
func InitRedis(addr string) {
	rdb, err := NewClient(context.Background(), addr)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without cache", slog.String("error", err.Error()))
		client = nil
		return
	}
	middleware.Logger.Info("redis connected", slog.String("addr", rdb.Options().Addr))
	client = rdb
}

// GetClient returns the package client, or nil when Redis is not connected.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the package client. Tests use it to point the cache at miniredis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorHook{})
	}
	client = c
}
