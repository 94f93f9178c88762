// Package redis builds the shared go-redis client used by sessions, locks,
// rate limits, idempotency keys and the notification queue.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
)

// Config holds the connection settings. Zero values take go-redis defaults,
// except ConnectAttempts which defaults to 3.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// ConnectAttempts bounds the pings made by New before giving up, so a
	// Redis container that starts a second later than the app is tolerated.
	ConnectAttempts int
}

// Client is a go-redis client that also knows how to hand its settings to
// asynq, which opens its own connections.
type Client struct {
	*redis.Client
	opts *redis.Options
}

// New creates an instrumented client and waits until Redis answers a PING.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})

	if err := ping(ctx, rdb, cfg.ConnectAttempts); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rdb, opts: opts}, nil
}

func ping(ctx context.Context, rdb *redis.Client, attempts int) error {
	if attempts <= 0 {
		attempts = 3
	}

	wait := 250 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// AsynqOpt returns the connection settings for the durable notification queue.
func (c *Client) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        c.opts.Addr,
		Password:    c.opts.Password,
		DB:          c.opts.DB,
		PoolSize:    c.opts.PoolSize,
		DialTimeout: c.opts.DialTimeout,
	}
}
