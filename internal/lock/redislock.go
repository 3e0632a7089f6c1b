package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker is a SetNX distributed lock. Campaign settlement takes it per
// campaign id so only one settle attempt prices and claims at a time; the
// conditional update underneath stays the source of truth if the lock
// expires mid-flight.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// The release script deletes the key only when it still holds our token,
// so a lock that expired and was re-acquired elsewhere is never stolen.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`

var errNoClient = errors.New("lock: redis client not configured")

// WithLock runs fn while holding key. Acquisition retries on a fixed
// backoff until the context is done. The lock is released on return.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	token := uuid.NewString()
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for {
		acquired, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if acquired {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	defer l.release(key, token)
	return fn(ctx)
}

func (l Locker) release(key, token string) {
	// Fresh context: the caller's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// On script failure the TTL reclaims the key; deleting blindly here
	// could drop a lock someone else re-acquired.
	_ = l.R.Eval(ctx, releaseScript, []string{key}, token).Err()
}
