package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/coachline/internal/adapters/auth"
	"github.com/dkeye/coachline/internal/adapters/bus"
	router "github.com/dkeye/coachline/internal/adapters/http"
	"github.com/dkeye/coachline/internal/adapters/memstore"
	"github.com/dkeye/coachline/internal/adapters/pgstore"
	"github.com/dkeye/coachline/internal/adapters/redisstore"
	wssignal "github.com/dkeye/coachline/internal/adapters/signal"
	"github.com/dkeye/coachline/internal/app"
	"github.com/dkeye/coachline/internal/app/orch"
	"github.com/dkeye/coachline/internal/config"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/observability"
)

type application struct {
	Deps    router.Deps
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire picks an implementation for every collaborator: shared stores when
// configured, process-local ones otherwise.
func wire(ctx context.Context, cfg *config.Config) (*application, error) {
	a := &application{}
	fail := func(err error) (*application, error) {
		a.Close()
		return nil, err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	var kv core.KVStore = memstore.NewKV(nil)
	var registry core.ConnectionRegistry = app.NewRegistry()
	var calls core.CallStore = app.NewCallManager(time.Now)
	var locks core.UserLocker = app.NewUserLocks()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		kv = redisstore.NewKV(rdb)
		registry = redisstore.NewRegistry(rdb)
		calls = redisstore.NewCallStore(rdb)
		locks = redisstore.NewLocker(rdb, cfg.Redis.LockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("presence and calls backed by redis")
	}

	var messages core.MessageStore = memstore.NewMessageStore(nil)
	var sessions auth.SessionChecker
	if cfg.Postgres.DSN != "" {
		db, err := pgstore.Open(cfg.Postgres.DSN, nil)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := pgstore.EnsureSchema(ctx, db); err != nil {
			return fail(err)
		}
		messages = pgstore.NewMessageStore(db)
		if cfg.Auth.CheckSessions {
			sessions = pgstore.NewSessionChecker(db)
		}
		log.Info().Msg("messages backed by postgres")
	}

	var rooms core.RoomRouter = app.NewRoomManager(app.SimplePolicy{}, metrics)
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("coachline"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return fail(fmt.Errorf("connect nats: %w", err))
		}
		a.closers = append(a.closers, nc.Close)
		nr, err := bus.NewNATSRouter(nc, cfg.NATS.Subject, rooms)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { _ = nr.Close() })
		rooms = nr
		log.Info().Str("url", nc.ConnectedUrl()).Msg("room fan-out over nats")
	}

	verifier := auth.NewJWTVerifier(cfg.Auth.Secret, sessions)
	o := &orch.Orchestrator{
		Registry:       registry,
		Rooms:          rooms,
		Calls:          calls,
		Locks:          locks,
		Presence:       app.NewPresence(kv, cfg.Presence.TTL, cfg.Presence.ScanCount),
		Chat:           app.NewChatService(messages),
		Limiter:        app.NewRateLimiter(cfg.RateLimit.Events, cfg.RateLimit.Interval),
		Metrics:        metrics,
		CleanupTimeout: cfg.CleanupTimeout,
	}
	ws := wssignal.NewSignalWSController(o, verifier, metrics, wssignal.Options{
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		WriteWait:   cfg.WriteWait,
		AuthTimeout: cfg.AuthTimeout,
		SendBuffer:  cfg.SendBuffer,
	})

	a.Deps = router.Deps{
		Orch:     o,
		Signal:   ws,
		Verifier: verifier,
		Gatherer: prometheus.DefaultGatherer,
	}
	return a, nil
}
