package rehearsal

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

type ReconcileReport struct {
	Checked int
	Synced  int
	Deleted int
	Failed  int
}

// Reconciler re-runs synchronization for rehearsals that were left pending,
// failed or half deleted.
type Reconciler struct {
	store    db.Store
	sync     *Synchronizer
	schedule string
	// MinAge leaves recently touched rehearsals to the request that owns them.
	MinAge time.Duration
	Batch  int

	cron *cron.Cron
}

func NewReconciler(store db.Store, sync *Synchronizer, schedule string) *Reconciler {
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Reconciler{
		store:    store,
		sync:     sync,
		schedule: schedule,
		MinAge:   time.Minute,
		Batch:    100,
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	stale, err := r.store.ListRehearsalsBySyncState(ctx,
		[]model.SyncState{model.SyncPending, model.SyncFailed, model.SyncDeleting}, r.Batch)
	if err != nil {
		return report, err
	}

	cutoff := time.Now().Add(-r.MinAge)
	for _, reh := range stale {
		if reh.UpdatedAt.After(cutoff) {
			continue
		}
		report.Checked++

		if reh.SyncState == model.SyncDeleting {
			_, err = r.sync.Deleted(ctx, reh.ID)
			if err == nil || errors.Is(err, model.ErrRehearsalNotFound) {
				report.Deleted++
				continue
			}
		} else {
			if _, err = r.sync.Updated(ctx, reh.ID); err == nil {
				report.Synced++
				continue
			}
		}
		report.Failed++
		log.Warn().Err(err).Str("rehearsal_id", reh.ID).Str("state", string(reh.SyncState)).Msg("reconcile failed")
	}

	if report.Checked > 0 {
		log.Info().Int("checked", report.Checked).Int("synced", report.Synced).
			Int("deleted", report.Deleted).Int("failed", report.Failed).Msg("reconcile finished")
	}
	return report, nil
}

// Start runs RunOnce on the configured schedule until Stop.
func (r *Reconciler) Start() error {
	logger := cronLogger{l: log.With().Str("component", "reconciler").Logger()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			log.Error().Err(err).Msg("reconcile run failed")
		}
	}); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	log.Info().Str("schedule", r.schedule).Msg("reconciler started")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
