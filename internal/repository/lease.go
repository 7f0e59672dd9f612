package repository

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed release.lua
var releaseLuaScript string

// RedisLease is a best-effort mutual exclusion lock shared by all replicas.
// The holder token makes Release a no-op for a lease that expired and was
// taken over by someone else.
type RedisLease struct {
	rdb *redis.Client
	key string
	ttl time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLease(rdb *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := l.rdb.Eval(ctx, releaseLuaScript, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
