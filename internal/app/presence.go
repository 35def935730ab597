package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	onlineKeyPrefix   = "presence:online:"
	lastSeenKeyPrefix = "presence:last-seen:"
)

// Presence tracks per-user liveness on top of a TTL key-value store.
// An expired heartbeat and an explicit offline look the same to readers.
type Presence struct {
	kv        core.KVStore
	ttl       time.Duration
	scanCount int64
	now       func() time.Time
}

func NewPresence(kv core.KVStore, ttl time.Duration, scanCount int64) *Presence {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if scanCount <= 0 {
		scanCount = 1000
	}
	return &Presence{kv: kv, ttl: ttl, scanCount: scanCount, now: time.Now}
}

func onlineKey(id domain.UserID) string   { return onlineKeyPrefix + string(id) }
func lastSeenKey(id domain.UserID) string { return lastSeenKeyPrefix + string(id) }

// Heartbeat refreshes the online key and records last-seen. Idempotent.
func (p *Presence) Heartbeat(ctx context.Context, id domain.UserID) error {
	ts := p.now().UTC().Format(time.RFC3339Nano)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.kv.Set(gctx, onlineKey(id), "1", p.ttl) })
	g.Go(func() error { return p.kv.Set(gctx, lastSeenKey(id), ts, 0) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("presence heartbeat %s: %w", id, err)
	}
	return nil
}

// MarkOffline drops the online key and records last-seen.
// Call it only once the registry reports the user's last connection closed.
func (p *Presence) MarkOffline(ctx context.Context, id domain.UserID) error {
	ts := p.now().UTC().Format(time.RFC3339Nano)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.kv.Delete(gctx, onlineKey(id)) })
	g.Go(func() error { return p.kv.Set(gctx, lastSeenKey(id), ts, 0) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("presence offline %s: %w", id, err)
	}
	log.Debug().Str("module", "app.presence").Str("user", string(id)).Msg("marked offline")
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, id domain.UserID) (bool, error) {
	ok, err := p.kv.Exists(ctx, onlineKey(id))
	if err != nil {
		return false, fmt.Errorf("presence online %s: %w", id, err)
	}
	return ok, nil
}

// LastSeen returns nil when the user was never seen or the stored value is unreadable.
func (p *Presence) LastSeen(ctx context.Context, id domain.UserID) (*time.Time, error) {
	raw, ok, err := p.kv.Get(ctx, lastSeenKey(id))
	if err != nil {
		return nil, fmt.Errorf("presence last-seen %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		log.Warn().Str("module", "app.presence").Str("user", string(id)).Str("value", raw).Msg("unreadable last-seen")
		return nil, nil
	}
	return &ts, nil
}

func (p *Presence) Snapshot(ctx context.Context, id domain.UserID) (domain.PresenceSnapshot, error) {
	var snap domain.PresenceSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		online, err := p.IsOnline(gctx, id)
		snap.Online = online
		return err
	})
	g.Go(func() error {
		ts, err := p.LastSeen(gctx, id)
		snap.LastSeen = ts
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PresenceSnapshot{}, err
	}
	return snap, nil
}

// CountOnline walks the whole online-key namespace page by page until the
// store returns a zero cursor. Keys repeated across pages count once.
func (p *Presence) CountOnline(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := p.kv.Scan(ctx, cursor, onlineKeyPrefix+"*", p.scanCount)
		if err != nil {
			return 0, fmt.Errorf("presence scan: %w", err)
		}
		for _, k := range keys {
			if strings.HasPrefix(k, onlineKeyPrefix) {
				seen[k] = struct{}{}
			}
		}
		if next == 0 {
			return len(seen), nil
		}
		cursor = next
	}
}
