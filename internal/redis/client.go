package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects and pings within ctx. Zero timeouts and pool size in
// opts get the service defaults; opts itself is not modified. The client is
// closed again if the ping fails.
func NewRedisClient(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options are required")
	}
	o := *opts
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.MinIdleConns == 0 {
		o.MinIdleConns = 1
	}
	rdb := redis.NewClient(&o)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", o.Addr, err)
	}
	return rdb, nil
}
