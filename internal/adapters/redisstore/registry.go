package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const connKeyPrefix = "presence:connections:"

// deregisterScript decrements the counter and deletes it at zero in one step.
// Returns -1 when the counter did not exist.
var deregisterScript = redis.NewScript(`
local n = redis.call("GET", KEYS[1])
if not n then
	return -1
end
n = tonumber(n) - 1
if n <= 0 then
	redis.call("DEL", KEYS[1])
	return 0
end
redis.call("SET", KEYS[1], n)
return n
`)

// Registry is the connection registry shared by every gateway process.
type Registry struct {
	rdb redis.UniversalClient
}

func NewRegistry(rdb redis.UniversalClient) *Registry {
	return &Registry{rdb: rdb}
}

func connKey(id domain.UserID) string { return connKeyPrefix + string(id) }

func (r *Registry) Register(ctx context.Context, id domain.UserID) (int64, error) {
	n, err := r.rdb.Incr(ctx, connKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis register %s: %w", id, err)
	}
	return n, nil
}

func (r *Registry) Deregister(ctx context.Context, id domain.UserID) (bool, error) {
	n, err := deregisterScript.Run(ctx, r.rdb, []string{connKey(id)}).Int64()
	if err != nil {
		return false, fmt.Errorf("redis deregister %s: %w", id, err)
	}
	if n < 0 {
		log.Warn().Str("module", "redisstore").Str("user", string(id)).Msg("deregister without entry")
		return false, nil
	}
	return n == 0, nil
}

// Count is the live connection count of id across all processes.
func (r *Registry) Count(ctx context.Context, id domain.UserID) (int64, error) {
	n, err := r.rdb.Get(ctx, connKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis count %s: %w", id, err)
	}
	return n, nil
}
