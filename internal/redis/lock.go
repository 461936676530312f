package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockPrefix = "troupe:lock:"

// compare-and-delete so an expired holder cannot drop a successor's lock
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ErrLockTimeout is returned when a lock stays held for longer than the
// locker's wait budget.
var ErrLockTimeout = errors.New("redis: lock wait timed out")

type lockTimeout struct{ key string }

func (e *lockTimeout) Error() string   { return fmt.Sprintf("%v: %s", ErrLockTimeout, e.key) }
func (e *lockTimeout) Unwrap() error   { return ErrLockTimeout }
func (e *lockTimeout) Retryable() bool { return true }

// Locker hands out short-lived exclusive locks shared by every server
// instance talking to the same Redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewLocker(client *redis.Client, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl, wait: wait, poll: 50 * time.Millisecond}
}

// Acquire blocks until key is locked, the wait budget runs out or ctx ends.
// The returned func releases the lock if it is still ours.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	full := lockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			log.Error().Err(err).Str("key", full).Msg("lock acquire failed")
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil {
					log.Error().Err(err).Str("key", full).Msg("lock release failed")
					return err
				}
				return nil
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, &lockTimeout{key: full}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
