package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryLock when another holder owns the key.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Unlock releases a lock obtained from Locker.
type Unlock func(ctx context.Context) error

// Locker hands out Redis SET NX locks with a TTL and an ownership token.
type Locker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl, retryInterval: 50 * time.Millisecond}
}

// TryLock makes a single attempt.
func (l *Locker) TryLock(ctx context.Context, key string) (Unlock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := "lock:" + key
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", redisKey, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}, nil
}

// Lock blocks until key is acquired or ctx is done. A holder that dies is
// evicted by the TTL.
func (l *Locker) Lock(ctx context.Context, key string) (Unlock, error) {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()
	for {
		unlock, err := l.TryLock(ctx, key)
		if !errors.Is(err, ErrNotAcquired) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
