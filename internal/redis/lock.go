package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("period lock not acquired")
)

// Locker guards the reserve critical section for one (date, period) pool.
type Locker interface {
	WithPeriodLock(ctx context.Context, day, period string, fn func(ctx context.Context) error) error
}

type redisPeriodLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPeriodLocker creates a locker keyed per calendar day and period.
func NewRedisPeriodLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisPeriodLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisPeriodLocker) WithPeriodLock(ctx context.Context, day, period string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:period:%s:%s", day, period)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire period lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisPeriodLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release period lock: %w", err)
	}
	return nil
}
