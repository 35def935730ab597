package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	callKeyPrefix     = "call:session:"
	callConnKeyPrefix = "call:conn:"

	casAttempts = 16
)

// swapScript replaces the session value only if it still equals the value the
// transition was computed from, and keeps the per-connection index in step.
// KEYS[1] session, KEYS[2..] connection index sets.
// ARGV[1] expected ("" = absent), ARGV[2] next ("" = delete), ARGV[3] user, ARGV[4] add|rem.
var swapScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1]) or ""
if cur ~= ARGV[1] then
	return 0
end
if ARGV[2] == "" then
	redis.call("DEL", KEYS[1])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
for i = 2, #KEYS do
	if ARGV[4] == "add" then
		redis.call("SADD", KEYS[i], ARGV[3])
	else
		redis.call("SREM", KEYS[i], ARGV[3])
	end
end
return 1
`)

// callRecord is the stored form of a session; it keeps the connection ids
// the public JSON shape hides.
type callRecord struct {
	UserID        domain.UserID     `json:"userId"`
	InitiatorID   domain.UserID     `json:"initiatorId"`
	InitiatorConn domain.ConnID     `json:"initiatorConn"`
	Status        domain.CallStatus `json:"status"`
	StartedAt     time.Time         `json:"startedAt"`
	StaffID       domain.UserID     `json:"staffId,omitempty"`
	StaffConn     domain.ConnID     `json:"staffConn,omitempty"`
}

func toRecord(s domain.CallSession) callRecord {
	return callRecord(s)
}

func (r callRecord) session() domain.CallSession {
	return domain.CallSession(r)
}

// CallStore keeps call sessions in Redis so every gateway process sees the
// same sessions. Transitions are optimistic: read, apply the rule, then
// compare-and-swap; a lost swap re-reads and re-evaluates.
type CallStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewCallStore(rdb redis.UniversalClient) *CallStore {
	return &CallStore{rdb: rdb, now: time.Now}
}

func callKey(id domain.UserID) string { return callKeyPrefix + string(id) }
func callConnKey(c domain.ConnID) string { return callConnKeyPrefix + string(c) }

func (s *CallStore) load(ctx context.Context, user domain.UserID) (string, *domain.CallSession, error) {
	raw, err := s.rdb.Get(ctx, callKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("redis get call %s: %w", user, err)
	}
	var rec callRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", nil, fmt.Errorf("decode call %s: %w", user, err)
	}
	cs := rec.session()
	return raw, &cs, nil
}

// swap reports whether the stored value still was expected and got replaced.
func (s *CallStore) swap(ctx context.Context, user domain.UserID, expected string, next *domain.CallSession, index string, legs []domain.ConnID) (bool, error) {
	value := ""
	if next != nil {
		b, err := json.Marshal(toRecord(*next))
		if err != nil {
			return false, fmt.Errorf("encode call %s: %w", user, err)
		}
		value = string(b)
	}
	keys := []string{callKey(user)}
	for _, c := range legs {
		keys = append(keys, callConnKey(c))
	}
	n, err := swapScript.Run(ctx, s.rdb, keys, expected, value, string(user), index).Int64()
	if err != nil {
		return false, fmt.Errorf("redis swap call %s: %w", user, err)
	}
	return n == 1, nil
}

func contended(user domain.UserID) error {
	return fmt.Errorf("call %s: too many concurrent updates", user)
}

func (s *CallStore) Offer(ctx context.Context, caller domain.Principal, conn domain.ConnID) (domain.CallSession, error) {
	next, err := domain.NewCall(caller, conn, s.now())
	if err != nil {
		return domain.CallSession{}, err
	}
	for range casAttempts {
		raw, cur, err := s.load(ctx, caller.ID)
		if err != nil {
			return domain.CallSession{}, err
		}
		if cur != nil {
			return domain.CallSession{}, domain.Errorf(domain.KindConflict, "call already in progress")
		}
		ok, err := s.swap(ctx, caller.ID, raw, &next, "add", []domain.ConnID{conn})
		if err != nil {
			return domain.CallSession{}, err
		}
		if ok {
			log.Info().Str("module", "redisstore").Str("user", string(caller.ID)).Str("conn", string(conn)).Msg("call ringing")
			return next, nil
		}
	}
	return domain.CallSession{}, contended(caller.ID)
}

func (s *CallStore) Answer(ctx context.Context, staff domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error) {
	if err := domain.CanAnswer(staff); err != nil {
		return domain.CallSession{}, err
	}
	for range casAttempts {
		raw, cur, err := s.load(ctx, user)
		if err != nil {
			return domain.CallSession{}, err
		}
		if cur == nil {
			return domain.CallSession{}, domain.Errorf(domain.KindNotFound, "call not found")
		}
		if err := cur.Attach(staff, conn); err != nil {
			return domain.CallSession{}, err
		}
		ok, err := s.swap(ctx, user, raw, cur, "add", []domain.ConnID{conn})
		if err != nil {
			return domain.CallSession{}, err
		}
		if ok {
			log.Info().Str("module", "redisstore").Str("user", string(user)).Str("staff", string(staff.ID)).Str("conn", string(conn)).Msg("call answered")
			return *cur, nil
		}
	}
	return domain.CallSession{}, contended(user)
}

func (s *CallStore) Relay(ctx context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error) {
	_, cur, err := s.load(ctx, user)
	if err != nil {
		return domain.CallSession{}, err
	}
	if cur == nil {
		return domain.CallSession{}, domain.Errorf(domain.KindNotFound, "call not found")
	}
	if err := cur.Authorize(actor, conn); err != nil {
		return domain.CallSession{}, err
	}
	return *cur, nil
}

func (s *CallStore) End(ctx context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, bool, error) {
	for range casAttempts {
		raw, cur, err := s.load(ctx, user)
		if err != nil {
			return domain.CallSession{}, false, err
		}
		if cur == nil {
			return domain.CallSession{}, false, nil
		}
		if err := cur.Authorize(actor, conn); err != nil {
			return domain.CallSession{}, false, err
		}
		ok, err := s.swap(ctx, user, raw, nil, "rem", cur.Legs())
		if err != nil {
			return domain.CallSession{}, false, err
		}
		if ok {
			log.Info().Str("module", "redisstore").Str("user", string(user)).Str("by", string(actor.ID)).Str("status", string(cur.Status)).Msg("call ended")
			return *cur, true, nil
		}
	}
	return domain.CallSession{}, false, contended(user)
}

func (s *CallStore) Get(ctx context.Context, user domain.UserID) (domain.CallSession, bool, error) {
	_, cur, err := s.load(ctx, user)
	if err != nil || cur == nil {
		return domain.CallSession{}, false, err
	}
	return *cur, true, nil
}

func (s *CallStore) Owned(ctx context.Context, conn domain.ConnID) ([]domain.UserID, error) {
	ids, err := s.rdb.SMembers(ctx, callConnKey(conn)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis call index %s: %w", conn, err)
	}
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserID(id))
	}
	return out, nil
}

func (s *CallStore) Release(ctx context.Context, user domain.UserID, conn domain.ConnID) (domain.CallSession, bool, error) {
	for range casAttempts {
		raw, cur, err := s.load(ctx, user)
		if err != nil {
			return domain.CallSession{}, false, err
		}
		if cur == nil || !cur.OwnedBy(conn) {
			// stale index entry from an earlier session of user
			if err := s.rdb.SRem(ctx, callConnKey(conn), string(user)).Err(); err != nil {
				log.Warn().Err(err).Str("module", "redisstore").Str("conn", string(conn)).Msg("call index cleanup failed")
			}
			return domain.CallSession{}, false, nil
		}
		ok, err := s.swap(ctx, user, raw, nil, "rem", cur.Legs())
		if err != nil {
			return domain.CallSession{}, false, err
		}
		if ok {
			log.Info().Str("module", "redisstore").Str("user", string(user)).Str("conn", string(conn)).Str("status", string(cur.Status)).Msg("call released on disconnect")
			return *cur, true, nil
		}
	}
	return domain.CallSession{}, false, contended(user)
}
