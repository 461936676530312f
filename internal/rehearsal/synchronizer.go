// Package rehearsal keeps members' availability ledgers in step with the
// rehearsals of their projects.
package rehearsal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/events"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/workqueue"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Locker serializes work on one key across processes. *redis.Locker
// satisfies it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// ConflictFinder reports occupying slots that overlap a window.
// *ledger.Ledger satisfies it.
type ConflictFinder interface {
	Conflicts(ctx context.Context, ownerIDs []string, from, to time.Time, excludeRef string) ([]model.AvailabilitySlot, error)
}

type SyncResult struct {
	RehearsalID string                   `json:"rehearsal_id"`
	Booked      int                      `json:"booked"`
	Removed     int64                    `json:"removed"`
	Members     []string                 `json:"members"`
	Failed      []string                 `json:"failed,omitempty"`
	Conflicts   []model.AvailabilitySlot `json:"conflicts"`
}

type Synchronizer struct {
	store     db.Store
	queue     *workqueue.Executor
	locker    Locker
	publisher events.Publisher
	conflicts ConflictFinder
	fanout    int
	timeout   time.Duration
}

type Option func(*Synchronizer)

func WithLocker(l Locker) Option { return func(s *Synchronizer) { s.locker = l } }

func WithPublisher(p events.Publisher) Option { return func(s *Synchronizer) { s.publisher = p } }

func WithConflicts(c ConflictFinder) Option { return func(s *Synchronizer) { s.conflicts = c } }

// WithFanout bounds how many member slots are written concurrently.
func WithFanout(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.fanout = n
		}
	}
}

// WithJobTimeout bounds a single attempt of a synchronization step.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSynchronizer(store db.Store, queue *workqueue.Executor, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		queue:     queue,
		locker:    nopLocker{},
		publisher: events.NopPublisher{},
		fanout:    8,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Created books a slot for every active member of the rehearsal's project.
// Running it again only adds the slots that are missing.
func (s *Synchronizer) Created(ctx context.Context, id string) (SyncResult, error) {
	return s.run(ctx, opCreate, id, func(ctx context.Context) (SyncResult, error) {
		r, err := s.store.GetRehearsal(ctx, id)
		if err != nil {
			return SyncResult{RehearsalID: id}, err
		}
		return s.book(ctx, r, opCreate, false)
	})
}

// Updated drops every slot booked for the rehearsal and books the current
// window for the current roster.
func (s *Synchronizer) Updated(ctx context.Context, id string) (SyncResult, error) {
	return s.run(ctx, opUpdate, id, func(ctx context.Context) (SyncResult, error) {
		r, err := s.store.GetRehearsal(ctx, id)
		if err != nil {
			return SyncResult{RehearsalID: id}, err
		}
		return s.book(ctx, r, opUpdate, true)
	})
}

// Deleted removes the rehearsal's slots, its responses and finally the
// rehearsal row. Cleanup still runs when the row is already gone, in which
// case ErrRehearsalNotFound is returned.
func (s *Synchronizer) Deleted(ctx context.Context, id string) (SyncResult, error) {
	return s.run(ctx, opDelete, id, func(ctx context.Context) (SyncResult, error) {
		return s.remove(ctx, id)
	})
}

func (s *Synchronizer) run(ctx context.Context, op, id string, step func(context.Context) (SyncResult, error)) (SyncResult, error) {
	start := time.Now()
	out := make(chan SyncResult, 1)

	err := s.queue.Do(ctx, id, workqueue.JobFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		release, err := s.locker.Acquire(ctx, "rehearsal:"+id)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Str("rehearsal_id", id).Msg("rehearsal lock release failed")
			}
		}()

		res, err := step(ctx)
		// keep only the latest attempt
		select {
		case <-out:
		default:
		}
		out <- res
		return err
	}))

	syncDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	syncRuns.WithLabelValues(op, outcome(err)).Inc()

	res := SyncResult{RehearsalID: id}
	select {
	case res = <-out:
	default:
	}
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", id).Str("op", op).Msg("rehearsal sync failed")
	}
	return res, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrPartialSync):
		return "partial"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *Synchronizer) book(ctx context.Context, r *model.Rehearsal, op string, rebook bool) (SyncResult, error) {
	res := SyncResult{RehearsalID: r.ID, Members: []string{}, Conflicts: []model.AvailabilitySlot{}}
	if r.SyncState == model.SyncDeleting {
		return res, fmt.Errorf("rehearsal %s is being deleted: %w", r.ID, model.ErrConflict)
	}

	if err := s.store.SetRehearsalSyncState(ctx, r.ID, model.SyncPending, nil); err != nil {
		return res, s.fail(ctx, r.ID, op, "state", nil, err, true)
	}

	if rebook {
		n, err := s.store.DeleteSlotsByRef(ctx, model.SourceRehearsal, r.ID)
		if err != nil {
			return res, s.fail(ctx, r.ID, op, "clear", nil, err, true)
		}
		res.Removed = n
		slotsRemoved.Add(float64(n))
	}

	members, err := s.store.ListActiveMembers(ctx, r.ProjectID)
	if err != nil {
		return res, s.fail(ctx, r.ID, op, "roster", nil, err, true)
	}

	var (
		mu       sync.Mutex
		failures = map[string]error{}
		booked   int
	)
	g := new(errgroup.Group)
	g.SetLimit(s.fanout)
	for _, m := range members {
		res.Members = append(res.Members, m.UserID)
		g.Go(func() error {
			ok, err := s.store.BookSlot(ctx, slotFor(r, m.UserID))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("rehearsal_id", r.ID).Str("user_id", m.UserID).Msg("BookSlot failed")
				failures[m.UserID] = err
			} else if ok {
				booked++
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Members)

	res.Booked = booked
	slotsBooked.Add(float64(booked))

	if len(failures) > 0 {
		errs := make([]error, 0, len(failures))
		for uid, err := range failures {
			res.Failed = append(res.Failed, uid)
			errs = append(errs, err)
		}
		sort.Strings(res.Failed)
		return res, s.fail(ctx, r.ID, op, "book", res.Failed, errors.Join(errs...), true)
	}

	if s.conflicts != nil && len(res.Members) > 0 {
		found, err := s.conflicts.Conflicts(ctx, res.Members, r.StartsAt, r.EndsAt, r.ID)
		if err != nil {
			// conflicts are advisory
			log.Warn().Err(err).Str("rehearsal_id", r.ID).Msg("conflict lookup failed")
		} else {
			res.Conflicts = found
		}
	}

	if err := s.store.SetRehearsalSyncState(ctx, r.ID, model.SyncSynced, nil); err != nil {
		return res, s.fail(ctx, r.ID, op, "state", nil, err, false)
	}

	s.publish(ctx, events.Event{
		Type:        events.RehearsalBooked,
		ProjectID:   r.ProjectID,
		RehearsalID: r.ID,
		Members:     res.Members,
		Booked:      res.Booked,
		Removed:     int(res.Removed),
	})
	return res, nil
}

func (s *Synchronizer) remove(ctx context.Context, id string) (SyncResult, error) {
	res := SyncResult{RehearsalID: id, Members: []string{}, Conflicts: []model.AvailabilitySlot{}}

	r, err := s.store.GetRehearsal(ctx, id)
	missing := errors.Is(err, model.ErrRehearsalNotFound)
	if err != nil && !missing {
		return res, err
	}

	if !missing && r.SyncState != model.SyncDeleting {
		if err := s.store.SetRehearsalSyncState(ctx, id, model.SyncDeleting, nil); err != nil {
			return res, s.fail(ctx, id, opDelete, "state", nil, err, false)
		}
	}

	n, err := s.store.DeleteSlotsByRef(ctx, model.SourceRehearsal, id)
	if err != nil {
		return res, s.fail(ctx, id, opDelete, "slots", nil, err, false)
	}
	res.Removed = n
	slotsRemoved.Add(float64(n))

	if _, err := s.store.DeleteResponses(ctx, id); err != nil {
		return res, s.fail(ctx, id, opDelete, "responses", nil, err, false)
	}

	if missing {
		return res, model.ErrRehearsalNotFound
	}
	if err := s.store.DeleteRehearsal(ctx, id); err != nil {
		if errors.Is(err, model.ErrRehearsalNotFound) {
			return res, err
		}
		return res, s.fail(ctx, id, opDelete, "row", nil, err, false)
	}

	s.publish(ctx, events.Event{
		Type:        events.RehearsalCleared,
		ProjectID:   r.ProjectID,
		RehearsalID: id,
		Members:     []string{},
		Removed:     int(n),
	})
	return res, nil
}

// fail builds the partial sync error and, when mark is set, records it on
// the rehearsal so the reconciler picks it up.
func (s *Synchronizer) fail(ctx context.Context, id, op, stage string, failed []string, cause error, mark bool) error {
	perr := &PartialSyncError{RehearsalID: id, Op: op, Stage: stage, Failed: failed, Err: cause}
	if mark {
		msg := perr.Error()
		if err := s.store.SetRehearsalSyncState(ctx, id, model.SyncFailed, &msg); err != nil {
			log.Error().Err(err).Str("rehearsal_id", id).Msg("recording sync failure failed")
		}
	}
	return perr
}

func (s *Synchronizer) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("rehearsal_id", e.RehearsalID).Str("type", string(e.Type)).Msg("event publish failed")
	}
}

func slotFor(r *model.Rehearsal, ownerID string) *model.AvailabilitySlot {
	ref, title := r.ID, r.Title
	return &model.AvailabilitySlot{
		OwnerID:     ownerID,
		StartsAt:    r.StartsAt.UTC(),
		EndsAt:      r.EndsAt.UTC(),
		Kind:        model.KindBusy,
		Source:      model.SourceRehearsal,
		ExternalRef: &ref,
		Title:       &title,
	}
}
