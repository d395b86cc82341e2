package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dialTimeout = 5 * time.Second

// NewRedisClient returns a pooled client for the chat hot path (message
// streams and recent history), verified reachable with a boot-time ping.
func NewRedisClient(host string, port int) (*redis.Client, error) {
	poolSize := runtime.NumCPU() * 8
	if poolSize > 512 {
		poolSize = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		err = fmt.Errorf("redis connection failed: %w", err)
		zap.L().Error("chat.redis_connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
