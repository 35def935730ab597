package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockKeyPrefix = "lock:user:"

// unlockScript deletes the lock only while it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a UserLocker shared by every gateway process. A lock expires
// after ttl so a crashed holder cannot wedge the user.
type Locker struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(rdb redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, retry: 10 * time.Millisecond}
}

func (l *Locker) Lock(ctx context.Context, id domain.UserID) (func(), error) {
	key := lockKeyPrefix + string(id)
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", id, err)
		}
		if ok {
			return func() { l.unlock(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis lock %s: %w", id, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		log.Warn().Err(err).Str("module", "redisstore").Str("key", key).Msg("unlock failed")
	}
}
