package ledger

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/db/memstore"
	"github.com/Nixie-Tech-LLC/troupe/internal/interval"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

var july20 = civil.Date{Year: 2025, Month: time.July, Day: 20}

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*Ledger, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return New(store, StoreZones{Store: store, Default: "UTC"}), store
}

func newUser(t *testing.T, store *memstore.Store, zone string) string {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@example.test", Timezone: zone}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u.ID
}

func r(start, end string) interval.Range {
	parsed, err := interval.Parse(start, end)
	if err != nil {
		panic(err)
	}
	return parsed
}

func bookRehearsal(t *testing.T, store *memstore.Store, owner, ref string, start, end time.Time) {
	t.Helper()
	_, err := store.BookSlot(context.Background(), &model.AvailabilitySlot{
		OwnerID: owner, StartsAt: start, EndsAt: end,
		Kind: model.KindBusy, Source: model.SourceRehearsal, ExternalRef: &ref,
	})
	require.NoError(t, err)
}

func TestSetManualConvertsAndMerges(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "Europe/Berlin")

	slots, err := l.SetManual(ctx, owner, july20, []ManualRange{
		{Start: "10:00", End: "12:00", Kind: model.KindBusy, Title: strPtr("work")},
		{Start: "11:00", End: "13:00", Kind: model.KindBusy, Title: strPtr("lunch")},
		{Start: "18:00", End: "20:00", Kind: model.KindAvailable},
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, time.Date(2025, 7, 20, 8, 0, 0, 0, time.UTC), slots[0].StartsAt)
	assert.Equal(t, time.Date(2025, 7, 20, 11, 0, 0, 0, time.UTC), slots[0].EndsAt)
	assert.Equal(t, "work", *slots[0].Title)
	assert.Equal(t, model.SourceManual, slots[0].Source)
	assert.Equal(t, model.KindAvailable, slots[1].Kind)

	days, err := l.GetRange(ctx, owner, july20, july20, Options{})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, []interval.Range{r("10:00", "13:00"), r("18:00", "20:00")}, days[0].Ranges)
	assert.Equal(t, []interval.Range{r("10:00", "13:00")}, days[0].Busy)
	assert.Equal(t, []interval.Range{r("00:00", "10:00"), r("13:00", "24:00")}, days[0].Free)
	assert.Equal(t, interval.StatusPartial, days[0].Status)
}

func TestSetManualReplacesDay(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "America/New_York")

	_, err := l.SetManual(ctx, owner, july20, []ManualRange{{Start: "09:00", End: "10:00"}})
	require.NoError(t, err)
	_, err = l.SetManual(ctx, owner, july20, []ManualRange{{Start: "15:00", End: "16:00"}})
	require.NoError(t, err)

	days, err := l.GetRange(ctx, owner, july20, july20, Options{})
	require.NoError(t, err)
	assert.Equal(t, []interval.Range{r("15:00", "16:00")}, days[0].Ranges)
}

func TestSetManualRejectsInvalidRanges(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "UTC")

	_, err := l.SetManual(ctx, owner, july20, []ManualRange{{Start: "09:00", End: "10:00"}})
	require.NoError(t, err)

	for _, bad := range [][]ManualRange{
		{{Start: "12:00", End: "11:00"}},
		{{Start: "9am", End: "10:00"}},
		{{Start: "09:00", End: "10:00", Kind: "sleeping"}},
	} {
		_, err := l.SetManual(ctx, owner, july20, bad)
		assert.ErrorIs(t, err, model.ErrInvalidRange)
	}

	// the earlier write is intact
	days, err := l.GetRange(ctx, owner, july20, july20, Options{})
	require.NoError(t, err)
	assert.Equal(t, []interval.Range{r("09:00", "10:00")}, days[0].Ranges)
}

func TestSetManualAllDay(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "Asia/Tokyo")

	slots, err := l.SetManual(ctx, owner, july20, []ManualRange{{AllDay: true, Kind: model.KindBusy, Notes: strPtr("festival")}})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsAllDay)
	assert.Equal(t, 24*time.Hour, slots[0].EndsAt.Sub(slots[0].StartsAt))

	days, err := l.GetRange(ctx, owner, july20, july20.AddDays(1), Options{WithSlots: true})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, interval.StatusBusy, days[0].Status)
	assert.Empty(t, days[0].Free)
	require.Len(t, days[0].Slots, 1)
	assert.Equal(t, "festival", *days[0].Slots[0].Notes)
	assert.Equal(t, interval.StatusFree, days[1].Status)
	assert.NotNil(t, days[1].Slots)
}

func TestEmptySetManualKeepsRehearsalSlots(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "UTC")

	_, err := l.SetManual(ctx, owner, july20, []ManualRange{{Start: "08:00", End: "09:00"}})
	require.NoError(t, err)
	bookRehearsal(t, store, owner, "r1", time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC), time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC))

	_, err = l.SetManual(ctx, owner, july20, nil)
	require.NoError(t, err)

	days, err := l.GetRange(ctx, owner, july20, july20, Options{})
	require.NoError(t, err)
	assert.Equal(t, []interval.Range{r("10:00", "12:00")}, days[0].Busy)
}

func TestDeleteManualOnlyTouchesManual(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "UTC")

	_, err := l.SetManual(ctx, owner, july20, []ManualRange{{Start: "08:00", End: "09:00"}, {Start: "20:00", End: "21:00"}})
	require.NoError(t, err)
	bookRehearsal(t, store, owner, "r1", time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC), time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.InsertSlots(ctx, []model.AvailabilitySlot{{
		OwnerID: owner, Kind: model.KindBusy, Source: model.SourceImported, ExternalRef: strPtr("ics-1"),
		StartsAt: time.Date(2025, 7, 20, 14, 0, 0, 0, time.UTC), EndsAt: time.Date(2025, 7, 20, 15, 0, 0, 0, time.UTC),
	}}))

	n, err := l.DeleteManual(ctx, owner, july20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	days, err := l.GetRange(ctx, owner, july20, july20, Options{IncludeImported: true})
	require.NoError(t, err)
	assert.Equal(t, []interval.Range{r("10:00", "12:00"), r("14:00", "15:00")}, days[0].Ranges)
}

func TestGetRangeLocalizesAndSplits(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "Europe/Berlin")

	// 22:00-03:00 local
	bookRehearsal(t, store, owner, "late", time.Date(2025, 7, 20, 20, 0, 0, 0, time.UTC), time.Date(2025, 7, 21, 1, 0, 0, 0, time.UTC))
	require.NoError(t, store.InsertSlots(ctx, []model.AvailabilitySlot{{
		OwnerID: owner, Kind: model.KindBusy, Source: model.SourceImported, ExternalRef: strPtr("ics-1"),
		StartsAt: time.Date(2025, 7, 22, 8, 0, 0, 0, time.UTC), EndsAt: time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC),
	}}))

	days, err := l.GetRange(ctx, owner, july20, july20.AddDays(2), Options{})
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, []interval.Range{r("22:00", "24:00")}, days[0].Busy)
	assert.Equal(t, []interval.Range{r("00:00", "03:00")}, days[1].Busy)
	assert.Empty(t, days[2].Ranges)
	assert.Equal(t, interval.StatusFree, days[2].Status)
	assert.Equal(t, []interval.Range{{Start: 0, End: interval.DayMinutes}}, days[2].Free)

	days, err = l.GetRange(ctx, owner, july20, july20.AddDays(2), Options{IncludeImported: true})
	require.NoError(t, err)
	assert.Equal(t, []interval.Range{r("10:00", "11:00")}, days[2].Busy)
}

func TestGetRangeErrors(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "UTC")
	broken := newUser(t, store, "Not/AZone")

	_, err := l.GetRange(ctx, owner, july20, july20.AddDays(-1), Options{})
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	_, err = l.GetRange(ctx, owner, july20, july20.AddDays(MaxRangeDays), Options{})
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	days, err := l.GetRange(ctx, owner, july20, july20.AddDays(MaxRangeDays-1), Options{})
	require.NoError(t, err)
	assert.Len(t, days, MaxRangeDays)

	_, err = l.GetRange(ctx, "nobody", july20, july20, Options{})
	assert.ErrorIs(t, err, model.ErrOwnerNotFound)

	_, err = l.GetRange(ctx, broken, july20, july20, Options{})
	assert.ErrorIs(t, err, model.ErrBadTimezone)

	_, err = l.SetManual(ctx, broken, july20, nil)
	assert.ErrorIs(t, err, model.ErrBadTimezone)
}

func TestDefaultZoneAppliesToMembersWithoutOne(t *testing.T) {
	store := memstore.New()
	l := New(store, StoreZones{Store: store, Default: "Asia/Kolkata"})
	owner := newUser(t, store, "")

	slots, err := l.SetManual(context.Background(), owner, july20, []ManualRange{{Start: "05:30", End: "06:30"}})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC), slots[0].StartsAt)
}

func TestConflicts(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	a := newUser(t, store, "UTC")
	b := newUser(t, store, "UTC")

	window := func(h1, h2 int) (time.Time, time.Time) {
		return time.Date(2025, 7, 20, h1, 0, 0, 0, time.UTC), time.Date(2025, 7, 20, h2, 0, 0, 0, time.UTC)
	}
	start, end := window(10, 12)
	bookRehearsal(t, store, a, "self", start, end)
	s2, e2 := window(11, 13)
	bookRehearsal(t, store, b, "other", s2, e2)
	_, err := l.SetManual(ctx, a, july20, []ManualRange{{Start: "09:00", End: "10:30", Kind: model.KindTentative}, {Start: "11:00", End: "11:30", Kind: model.KindAvailable}})
	require.NoError(t, err)

	got, err := l.Conflicts(ctx, []string{a, b}, start, end, "self")
	require.NoError(t, err)
	require.Len(t, got, 2)
	refs := map[string]model.SlotKind{}
	for _, s := range got {
		refs[s.OwnerID+"/"+s.Ref()] = s.Kind
	}
	assert.Equal(t, model.KindTentative, refs[a+"/"])
	assert.Equal(t, model.KindBusy, refs[b+"/other"])
}

func TestProjectAvailability(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	owner := newUser(t, store, "UTC")
	tokyo := newUser(t, store, "Asia/Tokyo")
	idle := newUser(t, store, "")

	p := &model.Project{Name: "Band", Timezone: "UTC", CreatedBy: owner}
	require.NoError(t, store.CreateProject(ctx, p))
	for _, id := range []string{tokyo, idle} {
		require.NoError(t, store.UpsertMembership(ctx, &model.ProjectMembership{ProjectID: p.ID, UserID: id, Role: model.RoleMember, Status: model.MembershipActive}))
	}

	// 08:00-09:00 JST on the 21st is 23:00-24:00 UTC on the 20th
	_, err := l.SetManual(ctx, tokyo, july20.AddDays(1), []ManualRange{{Start: "08:00", End: "09:00"}})
	require.NoError(t, err)

	view, err := l.ProjectAvailability(ctx, p.ID, july20, july20.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, "UTC", view.Timezone)
	require.Len(t, view.Members, 3)
	require.Len(t, view.Summary, 2)

	assert.Equal(t, []string{tokyo}, view.Summary[0].BusyMembers)
	assert.Len(t, view.Summary[0].FreeMembers, 2)
	assert.Empty(t, view.Summary[1].BusyMembers)

	for _, m := range view.Members {
		if m.UserID == tokyo {
			assert.Equal(t, "Asia/Tokyo", m.Timezone)
			assert.Equal(t, []interval.Range{r("08:00", "09:00")}, m.Days[1].Busy)
		}
		if m.UserID == idle {
			assert.Equal(t, "UTC", m.Timezone)
		}
	}

	_, err = l.ProjectAvailability(ctx, "missing", july20, july20)
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
}
