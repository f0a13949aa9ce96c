package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLock implements ports.SweepLock as a SET NX PX lease.
type SweepLock struct {
	client *goredis.Client
	prefix string
	log    zerolog.Logger
}

// NewSweepLock creates a Redis lease lock.
func NewSweepLock(client *goredis.Client, log zerolog.Logger) *SweepLock {
	return &SweepLock{client: client, prefix: "lock:", log: log}
}

// TryLock acquires key for ttl. ok is false when another holder owns it.
func (l *SweepLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token, err := newLockToken()
	if err != nil {
		return nil, false, err
	}
	redisKey := l.prefix + key

	acquired, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	unlock := func() {
		// The lease must be released even if the sweep's context was cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("failed to release sweep lock")
		}
	}
	return unlock, true, nil
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
