package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/infra/config"
)

const (
	clientName         = "social-login-auth"
	connectTimeout     = 5 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Client owns the connection pool shared by the revocation, refresh and rate-limit stores.
type Client struct {
	client    *redis.Client
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// Options maps RedisSettings onto go-redis options. Every store runs single-key
// commands or short Lua scripts, so read and write timeouts stay tight.
func Options(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		ClientName: clientName,
		Password:   cfg.Password,
		DB:         cfg.DB,

		PoolSize:        20,
		MinIdleConns:    2,
		MaxRetries:      2,
		DialTimeout:     connectTimeout,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		PoolTimeout:     2 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.Host,
		}
	}

	return opts
}

// NewClient opens the pool and pings once so a misconfigured address fails startup.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := Options(cfg)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	logger.Info("redis connected",
		zap.String("addr", opts.Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLSEnabled),
	)

	return &Client{client: client, logger: logger}, nil
}

// Client returns the go-redis handle the repositories are built on.
func (c *Client) Client() *redis.Client {
	return c.client
}

// HealthCheck pings Redis within a short bound. Used by /readyz and the gRPC health monitor.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

// Close releases the pool. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		err := c.client.Close()
		if err != nil && !errors.Is(err, redis.ErrClosed) {
			c.closeErr = fmt.Errorf("close redis: %w", err)
			return
		}
		c.logger.Info("redis pool closed")
	})
	return c.closeErr
}

// Stats returns pool counters for PoolCollector.
func (c *Client) Stats() *redis.PoolStats {
	return c.client.PoolStats()
}
