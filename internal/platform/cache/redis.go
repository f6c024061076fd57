package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection shared by the summary cache and
// the job queue.
type Options struct {
	Addr        string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

func (o Options) redisOptions() *redis.Options {
	dial := o.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	return &redis.Options{
		Addr:        o.Addr,
		DB:          o.DB,
		PoolSize:    o.PoolSize,
		DialTimeout: dial,
	}
}

// New creates a Redis client and verifies the server answers.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(opts.redisOptions())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}

// AsynqOpt maps the same settings onto the queue connection.
func (o Options) AsynqOpt() asynq.RedisClientOpt {
	r := o.redisOptions()
	return asynq.RedisClientOpt{
		Addr:        r.Addr,
		DB:          r.DB,
		PoolSize:    r.PoolSize,
		DialTimeout: r.DialTimeout,
	}
}
