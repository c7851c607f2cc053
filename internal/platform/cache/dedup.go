package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/sha3"
)

// Deduplicator remembers keys for a TTL so redelivered webhooks can be recognised.
type Deduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDeduplicator(client *redis.Client, prefix string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, prefix: prefix, ttl: ttl}
}

// FirstSeen records key and reports whether this is the first time it was seen within the TTL.
func (d *Deduplicator) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx %s: %w", key, err)
	}
	return ok, nil
}

// Forget removes key, so a later redelivery is processed again.
func (d *Deduplicator) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("dedup del %s: %w", key, err)
	}
	return nil
}

// Fingerprint is a stable SHA3-256 digest of parts, for payloads that carry no id of their own.
func Fingerprint(parts ...string) string {
	sum := sha3.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
