package rehearsal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/db/memstore"
	"github.com/Nixie-Tech-LLC/troupe/internal/db/storetest"
	"github.com/Nixie-Tech-LLC/troupe/internal/events"
	"github.com/Nixie-Tech-LLC/troupe/internal/ledger"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/workqueue"
)

var errFlaky = errors.New("connection reset by peer")

// flakyStore fails BookSlot for chosen owners and can hold writes on a gate.
type flakyStore struct {
	db.Store

	mu       sync.Mutex
	failBook map[string]int // owner id -> failures left, negative means always
	gate     chan struct{}
}

func (f *flakyStore) failFor(ownerID string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBook[ownerID] = times
}

func (f *flakyStore) BookSlot(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	f.mu.Lock()
	gate := f.gate
	n := f.failBook[slot.OwnerID]
	if n > 0 {
		f.failBook[slot.OwnerID] = n - 1
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if n != 0 {
		return false, errFlaky
	}
	return f.Store.BookSlot(ctx, slot)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type recordingLocker struct {
	mu       sync.Mutex
	acquired []string
	released int
}

func (l *recordingLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

type fixture struct {
	mem     *memstore.Store
	store   *flakyStore
	queue   *workqueue.Executor
	pub     *recordingPublisher
	sync    *Synchronizer
	service *Service

	owner, alice, bob *model.User
	project           *model.Project
}

func newFixture(t *testing.T, attempts int) *fixture {
	t.Helper()
	mem := memstore.New()
	store := &flakyStore{Store: mem, failBook: map[string]int{}}
	queue := workqueue.New(workqueue.Config{Shards: 2, MaxAttempts: attempts, BaseBackoff: time.Millisecond, MaxInterval: 5 * time.Millisecond})
	t.Cleanup(queue.Stop)

	pub := &recordingPublisher{}
	led := ledger.New(mem, ledger.StoreZones{Store: mem, Default: "UTC"})
	s := NewSynchronizer(store, queue, WithPublisher(pub), WithConflicts(led), WithFanout(2))

	f := &fixture{mem: mem, store: store, queue: queue, pub: pub, sync: s, service: NewService(store, s)}
	f.owner = storetest.NewUser(t, mem, "UTC")
	f.alice = storetest.NewUser(t, mem, "Europe/Berlin")
	f.bob = storetest.NewUser(t, mem, "America/New_York")
	f.project = storetest.NewProject(t, mem, f.owner, f.alice, f.bob)
	return f
}

func (f *fixture) rehearsal(t *testing.T, start, end time.Time) *model.Rehearsal {
	t.Helper()
	r := &model.Rehearsal{ProjectID: f.project.ID, Title: "Act I", StartsAt: start, EndsAt: end, CreatedBy: f.owner.ID}
	require.NoError(t, f.mem.CreateRehearsal(context.Background(), r))
	return r
}

func (f *fixture) slotsFor(t *testing.T, ref string, extra ...*model.User) []model.AvailabilitySlot {
	t.Helper()
	owners := []string{f.owner.ID, f.alice.ID, f.bob.ID}
	for _, u := range extra {
		owners = append(owners, u.ID)
	}
	all, err := f.mem.ListSlots(context.Background(), model.SlotQuery{
		OwnerIDs: owners,
		From:     time.Unix(0, 0).UTC(),
		To:       time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC),
		Sources:  []model.SlotSource{model.SourceRehearsal},
	})
	require.NoError(t, err)
	out := []model.AvailabilitySlot{}
	for _, s := range all {
		if s.Ref() == ref {
			out = append(out, s)
		}
	}
	return out
}

func (f *fixture) setStatus(t *testing.T, u *model.User, status model.MembershipStatus) {
	t.Helper()
	require.NoError(t, f.mem.UpsertMembership(context.Background(), &model.ProjectMembership{
		ProjectID: f.project.ID, UserID: u.ID, Role: model.RoleMember, Status: status,
	}))
}

func utc(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}
