package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tommyorndorff/icinga2/internal/config"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Conn owns the single outbound connection to the store. It is not safe for
// concurrent use: every method runs on the pipeline worker, except that Stop
// calls Teardown after the pipeline has been stopped.
type Conn struct {
	logger logpkg.Logger
	cfg    config.Redis
	client *goredis.Client
}

// NewConn builds a disconnected connection manager.
func NewConn(cfg config.Redis, logger logpkg.Logger) *Conn {
	return &Conn{logger: logger, cfg: cfg}
}

// Connect attempts to establish the connection. No-op when already
// connected. Failures are logged and leave the state disconnected; nothing
// propagates to the caller.
func (c *Conn) Connect(ctx context.Context) {
	if c.client != nil {
		return
	}
	network, addr := c.cfg.Addr()
	c.logger.Info("trying to connect to redis server", logpkg.Str("addr", addr))

	client := goredis.NewClient(&goredis.Options{
		Network:  network,
		Addr:     addr,
		Password: c.cfg.Password,
		// One command in flight at a time by design; a single pooled
		// connection keeps the store-side picture identical to the
		// pipeline's view. Retries would hide transport failures from
		// the teardown logic, so they are off.
		PoolSize:    1,
		MaxRetries:  -1,
		DialTimeout: 10 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		if isReplyError(err) {
			// The transport works; the server refused the command
			// (typically an auth problem). Keep the connection and
			// let individual commands report their own errors.
			c.logger.Info("redis handshake reply", logpkg.Err(err))
			c.client = client
			return
		}
		c.logger.Warn("connection error", logpkg.Str("addr", addr), logpkg.Err(err))
		_ = client.Close()
		return
	}
	c.client = client
	if c.cfg.Password != "" {
		c.logger.Info("AUTH: OK")
	}
	c.logger.Info("connected to redis server", logpkg.Str("addr", addr))
}

// IsConnected reports whether a connection handle is held.
func (c *Conn) IsConnected() bool { return c.client != nil }

// Teardown releases the handle and transitions to disconnected. Safe to call
// while disconnected.
func (c *Conn) Teardown() {
	if c.client == nil {
		return
	}
	_ = c.client.Close()
	c.client = nil
}

// Command wrappers. Callers must hold a connection (IsConnected).

func (c *Conn) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

func (c *Conn) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *Conn) LPush(ctx context.Context, key string, value int64) error {
	return c.client.LPush(ctx, key, value).Err()
}

func (c *Conn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

// isReplyError distinguishes an explicit error reply from the server
// (store-logical, connection survives) from a transport failure (fatal,
// connection must be torn down). A nil-reply sentinel counts as a reply.
func isReplyError(err error) bool {
	if errors.Is(err, goredis.Nil) {
		return true
	}
	var reply goredis.Error
	return errors.As(err, &reply)
}
