package rehearsal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/db/storetest"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

func TestServiceCreateValidates(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	outsider := storetest.NewUser(t, f.mem, "UTC")

	cases := []struct {
		name    string
		actor   string
		project string
		draft   Draft
		want    error
	}{
		{"missing title", f.owner.ID, f.project.ID, Draft{Title: "  ", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 20, 0)}, model.ErrInvalidInput},
		{"ends before start", f.owner.ID, f.project.ID, Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 17, 0)}, model.ErrInvalidRange},
		{"empty window", f.owner.ID, f.project.ID, Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 18, 0)}, model.ErrInvalidRange},
		{"too long", f.owner.ID, f.project.ID, Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(11, 18, 1)}, model.ErrInvalidRange},
		{"outsider", outsider.ID, f.project.ID, Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 20, 0)}, model.ErrForbidden},
		{"unknown project", f.owner.ID, "missing", Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 20, 0)}, model.ErrProjectNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.service.Create(ctx, tc.actor, tc.project, tc.draft)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// inactive members may read but not write
	f.setStatus(t, f.bob, model.MembershipInactive)
	_, _, err := f.service.Create(ctx, f.bob.ID, f.project.ID, Draft{Title: "x", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 20, 0)})
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.service.List(ctx, f.bob.ID, f.project.ID, time.Time{}, time.Time{})
	assert.NoError(t, err)
}

func TestServiceCreateBooksMembers(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	hall := "Main hall"
	r, res, err := f.service.Create(ctx, f.alice.ID, f.project.ID, Draft{
		Title:    " Tech run ",
		Location: &hall,
		StartsAt: time.Date(2025, time.March, 10, 19, 0, 42, 0, loc),
		EndsAt:   time.Date(2025, time.March, 10, 22, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	assert.Equal(t, "Tech run", r.Title)
	assert.Equal(t, f.alice.ID, r.CreatedBy)
	assert.Equal(t, model.SyncSynced, r.SyncState)
	// stored in UTC, truncated to the minute
	assert.Equal(t, utc(10, 18, 0), r.StartsAt)
	assert.Equal(t, utc(10, 21, 0), r.EndsAt)
	assert.Equal(t, 3, res.Booked)
	assert.Len(t, f.slotsFor(t, r.ID), 3)
}

func TestServiceUpdateAppliesPatch(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	r, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act I", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 21, 0)})
	require.NoError(t, err)

	end := utc(10, 22, 0)
	r, res, err := f.service.Update(ctx, f.bob.ID, r.ID, Patch{EndsAt: &end})
	require.NoError(t, err)
	assert.Equal(t, "Act I", r.Title)
	assert.Equal(t, end, r.EndsAt)
	assert.EqualValues(t, 3, res.Removed)
	for _, s := range f.slotsFor(t, r.ID) {
		assert.True(t, s.EndsAt.Equal(end))
	}

	start := utc(10, 23, 0)
	_, _, err = f.service.Update(ctx, f.bob.ID, r.ID, Patch{StartsAt: &start})
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	empty := ""
	_, _, err = f.service.Update(ctx, f.bob.ID, r.ID, Patch{Title: &empty})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, _, err = f.service.Update(ctx, f.bob.ID, "missing", Patch{})
	assert.ErrorIs(t, err, model.ErrRehearsalNotFound)
}

func TestServiceDelete(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	outsider := storetest.NewUser(t, f.mem, "UTC")

	r, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act I", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 21, 0)})
	require.NoError(t, err)

	_, err = f.service.Delete(ctx, outsider.ID, r.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.Len(t, f.slotsFor(t, r.ID), 3)

	res, err := f.service.Delete(ctx, f.alice.ID, r.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Removed)

	_, err = f.service.Get(ctx, f.alice.ID, r.ID)
	assert.ErrorIs(t, err, model.ErrRehearsalNotFound)
}

func TestServiceResponses(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	r, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act I", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 21, 0)})
	require.NoError(t, err)

	_, err = f.service.Respond(ctx, f.alice.ID, r.ID, "perhaps", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	note := "late by 10 minutes"
	_, err = f.service.Respond(ctx, f.alice.ID, r.ID, model.ResponseMaybe, &note)
	require.NoError(t, err)
	_, err = f.service.Respond(ctx, f.alice.ID, r.ID, model.ResponseYes, nil)
	require.NoError(t, err)
	_, err = f.service.Respond(ctx, f.bob.ID, r.ID, model.ResponseNo, nil)
	require.NoError(t, err)

	got, err := f.service.Responses(ctx, f.owner.ID, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byUser := map[string]model.ResponseStatus{}
	for _, resp := range got {
		byUser[resp.UserID] = resp.Status
	}
	assert.Equal(t, model.ResponseYes, byUser[f.alice.ID])
	assert.Equal(t, model.ResponseNo, byUser[f.bob.ID])
}

func TestServiceListAndGet(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	outsider := storetest.NewUser(t, f.mem, "UTC")

	first, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act I", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 21, 0)})
	require.NoError(t, err)
	_, _, err = f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act II", StartsAt: utc(12, 18, 0), EndsAt: utc(12, 21, 0)})
	require.NoError(t, err)

	all, err := f.service.List(ctx, f.bob.ID, f.project.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Act I", all[0].Title)

	window, err := f.service.List(ctx, f.bob.ID, f.project.ID, utc(11, 0, 0), utc(13, 0, 0))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "Act II", window[0].Title)

	_, err = f.service.List(ctx, f.bob.ID, f.project.ID, utc(13, 0, 0), utc(11, 0, 0))
	assert.ErrorIs(t, err, model.ErrInvalidRange)
	_, err = f.service.List(ctx, outsider.ID, f.project.ID, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, model.ErrForbidden)

	got, err := f.service.Get(ctx, f.alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	_, err = f.service.Get(ctx, outsider.ID, first.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestServiceRosterChangedRebooksUpcoming(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	soon := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	past := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Hour)

	upcoming, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Next", StartsAt: soon, EndsAt: soon.Add(2 * time.Hour)})
	require.NoError(t, err)
	done, _, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Last", StartsAt: past, EndsAt: past.Add(2 * time.Hour)})
	require.NoError(t, err)

	dave := storetest.NewUser(t, f.mem, "UTC")
	f.setStatus(t, dave, model.MembershipActive)
	f.setStatus(t, f.bob, model.MembershipInactive)
	require.NoError(t, f.service.RosterChanged(ctx, f.project.ID))

	owners := map[string]bool{}
	for _, s := range f.slotsFor(t, upcoming.ID, dave) {
		owners[s.OwnerID] = true
	}
	assert.Equal(t, map[string]bool{f.owner.ID: true, f.alice.ID: true, dave.ID: true}, owners)

	// finished rehearsals keep the roster they had
	assert.Len(t, f.slotsFor(t, done.ID, dave), 3)
}

func TestServiceResync(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.store.failFor(f.bob.ID, -1)

	r, res, err := f.service.Create(ctx, f.owner.ID, f.project.ID, Draft{Title: "Act I", StartsAt: utc(10, 18, 0), EndsAt: utc(10, 21, 0)})
	require.ErrorIs(t, err, model.ErrPartialSync)
	require.NotNil(t, r)
	assert.Equal(t, model.SyncFailed, r.SyncState)
	assert.Equal(t, []string{f.bob.ID}, res.Failed)

	f.store.failFor(f.bob.ID, 0)
	res, err = f.service.Resync(ctx, f.alice.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Booked)
	assert.Len(t, f.slotsFor(t, r.ID), 3)
}
