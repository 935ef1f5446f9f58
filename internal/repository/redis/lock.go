package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix    = "conversation:lock:"
	lockRetryStep = 25 * time.Millisecond
)

var errLockHeld = errors.New("lock is held by another owner")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes cross-store operations on a key across processes.
// The lock expires after ttl so a crashed holder cannot wedge a conversation.
type Locker struct {
	client *Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker creates a new distributed locker
func NewLocker(client *Client, ttl, wait time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl, wait: wait}
}

// Lock acquires the lock for key, retrying until the wait time or ctx runs out
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := lockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, errLockHeld)
		}

		timer := time.NewTimer(lockRetryStep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	unlock := func() {
		// Release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client.rdb, []string{fullKey}, token).Err()
	}

	return unlock, nil
}
