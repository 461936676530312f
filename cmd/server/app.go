package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/config"
	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/db/memstore"
	"github.com/Nixie-Tech-LLC/troupe/internal/events"
	"github.com/Nixie-Tech-LLC/troupe/internal/ledger"
	"github.com/Nixie-Tech-LLC/troupe/internal/redis"
	"github.com/Nixie-Tech-LLC/troupe/internal/rehearsal"
	"github.com/Nixie-Tech-LLC/troupe/internal/workqueue"
)

// App holds the wired services the commands run against.
type App struct {
	Config       *config.Config
	Store        db.Store
	Ledger       *ledger.Ledger
	Events       *events.Hub
	Queue        *workqueue.Executor
	Synchronizer *rehearsal.Synchronizer
	Rehearsals   *rehearsal.Service
	Reconciler   *rehearsal.Reconciler

	closers []func()
}

func openStore(cfg *config.Config) (db.Store, func(), error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(cfg.Migrations()); err != nil {
		_ = db.DB.Close()
		return nil, nil, fmt.Errorf("db migrate: %w", err)
	}
	return db.NewStore(), func() { _ = db.DB.Close() }, nil
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, closeStore)

	opts := []rehearsal.Option{
		rehearsal.WithFanout(cfg.SyncFanout),
		rehearsal.WithJobTimeout(cfg.SyncJobTimeout),
	}

	if cfg.RedisAddress != "" {
		client := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err := redis.Ping(context.Background(), client); err != nil {
			app.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, rehearsal.WithLocker(redis.NewLocker(client, cfg.LockTTL, cfg.LockWait)))
		app.closers = append(app.closers, func() { _ = client.Close() })
		log.Info().Str("address", cfg.RedisAddress).Msg("rehearsal locks held in redis")
	}

	app.Events = events.NewHub(0)
	publishers := []events.Publisher{app.Events}
	if cfg.MQTTBrokerURL != "" {
		client, err := events.NewMQTTClient(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			app.Close()
			return nil, err
		}
		pub := events.NewMQTTPublisher(client)
		publishers = append(publishers, pub)
		app.closers = append(app.closers, pub.Close)
	}
	opts = append(opts, rehearsal.WithPublisher(events.Multi(publishers...)))

	app.Ledger = ledger.New(store, ledger.StoreZones{Store: store, Default: cfg.DefaultTimezone})
	opts = append(opts, rehearsal.WithConflicts(app.Ledger))

	app.Queue = workqueue.New(workqueue.Config{
		Shards:      cfg.SyncShards,
		QueueSize:   cfg.SyncQueueSize,
		MaxAttempts: cfg.SyncMaxAttempts,
	})
	app.closers = append(app.closers, app.Queue.Stop)

	app.Synchronizer = rehearsal.NewSynchronizer(store, app.Queue, opts...)
	app.Rehearsals = rehearsal.NewService(store, app.Synchronizer)
	app.Reconciler = rehearsal.NewReconciler(store, app.Synchronizer, cfg.ReconcileSchedule)
	app.Reconciler.MinAge = cfg.ReconcileMinAge
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
