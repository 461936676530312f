// Package storetest holds a compliance suite every db.Store implementation
// must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// Run exercises the suite against fresh stores returned by makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) db.Store) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { testUsers(t, makeStore(t)) })
	t.Run("Projects", func(t *testing.T) { testProjects(t, makeStore(t)) })
	t.Run("Rehearsals", func(t *testing.T) { testRehearsals(t, makeStore(t)) })
	t.Run("Responses", func(t *testing.T) { testResponses(t, makeStore(t)) })
	t.Run("Slots", func(t *testing.T) { testSlots(t, makeStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, makeStore(t)) })
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.July, day, hour, minute, 0, 0, time.UTC)
}

func ptr(s string) *string { return &s }

// NewUser creates a user with a unique email.
func NewUser(t *testing.T, s db.Store, timezone string) *model.User {
	t.Helper()
	id := uuid.NewString()
	u := &model.User{Email: id + "@example.test", HashedPassword: "x", Timezone: timezone}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s db.Store) {
	ctx := context.Background()

	// create and fetch
	u := NewUser(t, s, "Europe/Berlin")
	require.NotEmpty(t, u.ID)

	got, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Europe/Berlin", got.Timezone)

	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	// duplicate email
	err = s.CreateUser(ctx, &model.User{Email: u.Email, HashedPassword: "y"})
	assert.ErrorIs(t, err, model.ErrConflict)

	// unknown ids
	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrOwnerNotFound)
	_, err = s.GetUserByEmail(ctx, "missing@example.test")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// profile update
	name := "Ada"
	require.NoError(t, s.UpdateUserProfile(ctx, u.ID, "ada@example.test", &name, "Asia/Tokyo"))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.test", got.Email)
	assert.Equal(t, "Ada", *got.Name)
	assert.Equal(t, "Asia/Tokyo", got.Timezone)

	assert.ErrorIs(t, s.UpdateUserProfile(ctx, "missing", "x@example.test", nil, ""), model.ErrOwnerNotFound)
}

// NewProject creates a project owned by owner and adds members as active.
func NewProject(t *testing.T, s db.Store, owner *model.User, members ...*model.User) *model.Project {
	t.Helper()
	ctx := context.Background()
	p := &model.Project{Name: "Hamlet", Timezone: "UTC", CreatedBy: owner.ID}
	require.NoError(t, s.CreateProject(ctx, p))
	for _, m := range members {
		require.NoError(t, s.UpsertMembership(ctx, &model.ProjectMembership{
			ProjectID: p.ID, UserID: m.ID, Role: model.RoleMember, Status: model.MembershipActive,
		}))
	}
	return p
}

func testProjects(t *testing.T, s db.Store) {
	ctx := context.Background()
	owner := NewUser(t, s, "UTC")
	alice := NewUser(t, s, "UTC")
	bob := NewUser(t, s, "UTC")

	p := NewProject(t, s, owner, alice, bob)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hamlet", got.Name)

	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrProjectNotFound)

	// creator becomes an active owner
	m, err := s.GetMembership(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, m.Role)
	assert.True(t, m.Active())

	// deactivating a member hides them from the active roster
	require.NoError(t, s.UpsertMembership(ctx, &model.ProjectMembership{
		ProjectID: p.ID, UserID: bob.ID, Role: model.RoleMember, Status: model.MembershipInactive,
	}))
	all, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := s.ListActiveMembers(ctx, p.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, m := range active {
		ids = append(ids, m.UserID)
	}
	assert.ElementsMatch(t, []string{owner.ID, alice.ID}, ids)

	_, err = s.GetMembership(ctx, p.ID, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	projects, err := s.ListProjectsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)
}

func testRehearsals(t *testing.T, s db.Store) {
	ctx := context.Background()
	owner := NewUser(t, s, "UTC")
	p := NewProject(t, s, owner)

	r := &model.Rehearsal{ProjectID: p.ID, Title: "Act I", StartsAt: at(20, 10, 0), EndsAt: at(20, 12, 0), CreatedBy: owner.ID}
	require.NoError(t, s.CreateRehearsal(ctx, r))
	require.NotEmpty(t, r.ID)
	assert.Equal(t, model.SyncPending, r.SyncState)

	got, err := s.GetRehearsal(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Act I", got.Title)
	assert.True(t, got.StartsAt.Equal(r.StartsAt))
	assert.True(t, got.EndsAt.Equal(r.EndsAt))

	// update moves the window and resets sync state
	require.NoError(t, s.SetRehearsalSyncState(ctx, r.ID, model.SyncSynced, nil))
	r.StartsAt, r.EndsAt, r.Location = at(21, 18, 0), at(21, 21, 0), ptr("Studio B")
	require.NoError(t, s.UpdateRehearsal(ctx, r))
	got, err = s.GetRehearsal(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, got.SyncState)
	assert.Equal(t, "Studio B", *got.Location)
	assert.True(t, got.StartsAt.Equal(at(21, 18, 0)))

	// window listing
	other := &model.Rehearsal{ProjectID: p.ID, Title: "Act II", StartsAt: at(25, 10, 0), EndsAt: at(25, 11, 0), CreatedBy: owner.ID}
	require.NoError(t, s.CreateRehearsal(ctx, other))

	list, err := s.ListRehearsals(ctx, p.ID, at(21, 0, 0), at(22, 0, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)

	list, err = s.ListRehearsals(ctx, p.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// sync state filter
	msg := "store unavailable"
	require.NoError(t, s.SetRehearsalSyncState(ctx, other.ID, model.SyncFailed, &msg))
	stale, err := s.ListRehearsalsBySyncState(ctx, []model.SyncState{model.SyncFailed, model.SyncDeleting}, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, other.ID, stale[0].ID)
	assert.Equal(t, msg, *stale[0].SyncError)

	// delete
	require.NoError(t, s.DeleteRehearsal(ctx, other.ID))
	_, err = s.GetRehearsal(ctx, other.ID)
	assert.ErrorIs(t, err, model.ErrRehearsalNotFound)
	assert.ErrorIs(t, s.DeleteRehearsal(ctx, other.ID), model.ErrRehearsalNotFound)
	assert.ErrorIs(t, s.SetRehearsalSyncState(ctx, other.ID, model.SyncSynced, nil), model.ErrRehearsalNotFound)
	assert.ErrorIs(t, s.UpdateRehearsal(ctx, other), model.ErrRehearsalNotFound)
}

func testResponses(t *testing.T, s db.Store) {
	ctx := context.Background()
	owner := NewUser(t, s, "UTC")
	alice := NewUser(t, s, "UTC")

	require.NoError(t, s.UpsertResponse(ctx, &model.RehearsalResponse{RehearsalID: "r1", UserID: owner.ID, Status: model.ResponseYes}))
	require.NoError(t, s.UpsertResponse(ctx, &model.RehearsalResponse{RehearsalID: "r1", UserID: alice.ID, Status: model.ResponseMaybe}))
	require.NoError(t, s.UpsertResponse(ctx, &model.RehearsalResponse{RehearsalID: "r1", UserID: alice.ID, Status: model.ResponseNo, Note: ptr("sick")}))

	list, err := s.ListResponses(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	byUser := map[string]model.RehearsalResponse{}
	for _, r := range list {
		byUser[r.UserID] = r
	}
	assert.Equal(t, model.ResponseNo, byUser[alice.ID].Status)
	assert.Equal(t, "sick", *byUser[alice.ID].Note)

	n, err := s.DeleteResponses(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err = s.ListResponses(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testSlots(t *testing.T, s db.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "UTC")
	dayStart, dayEnd := at(20, 0, 0), at(21, 0, 0)
	ref := "rehearsal-1"

	// seed one slot of every source on the same day
	require.NoError(t, s.InsertSlots(ctx, []model.AvailabilitySlot{
		{OwnerID: u.ID, StartsAt: at(20, 8, 0), EndsAt: at(20, 9, 0), Kind: model.KindBusy, Source: model.SourceManual},
		{OwnerID: u.ID, StartsAt: at(20, 13, 0), EndsAt: at(20, 14, 0), Kind: model.KindBusy, Source: model.SourceImported, ExternalRef: ptr("ics-1")},
	}))
	booked, err := s.BookSlot(ctx, &model.AvailabilitySlot{
		OwnerID: u.ID, StartsAt: at(20, 10, 0), EndsAt: at(20, 12, 0),
		Kind: model.KindBusy, Source: model.SourceRehearsal, ExternalRef: &ref,
	})
	require.NoError(t, err)
	assert.True(t, booked)

	// booking the same ref again is a no-op
	booked, err = s.BookSlot(ctx, &model.AvailabilitySlot{
		OwnerID: u.ID, StartsAt: at(20, 10, 0), EndsAt: at(20, 12, 0),
		Kind: model.KindBusy, Source: model.SourceRehearsal, ExternalRef: &ref,
	})
	require.NoError(t, err)
	assert.False(t, booked)

	all, err := s.ListSlots(ctx, model.SlotQuery{OwnerIDs: []string{u.ID}, From: dayStart, To: dayEnd})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartsAt.Equal(at(20, 8, 0)), "ordered by start")

	// replacing manual slots leaves the other sources alone
	require.NoError(t, s.ReplaceManualSlots(ctx, u.ID, dayStart, dayEnd, []model.AvailabilitySlot{
		{StartsAt: at(20, 15, 0), EndsAt: at(20, 16, 0), Kind: model.KindAvailable},
		{StartsAt: at(20, 17, 0), EndsAt: at(20, 18, 0), Kind: model.KindTentative, Title: ptr("maybe")},
	}))
	manual, err := s.ListSlots(ctx, model.SlotQuery{OwnerIDs: []string{u.ID}, From: dayStart, To: dayEnd, Sources: []model.SlotSource{model.SourceManual}})
	require.NoError(t, err)
	require.Len(t, manual, 2)
	assert.True(t, manual[0].StartsAt.Equal(at(20, 15, 0)))
	assert.Equal(t, model.SourceManual, manual[1].Source)
	assert.Equal(t, "maybe", *manual[1].Title)

	// overlap query excludes slots outside the window
	narrow, err := s.ListSlots(ctx, model.SlotQuery{OwnerIDs: []string{u.ID}, From: at(20, 11, 0), To: at(20, 13, 30)})
	require.NoError(t, err)
	assert.Len(t, narrow, 2)

	n, err := s.DeleteManualSlots(ctx, u.ID, dayStart, dayEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.DeleteSlotsByRef(ctx, model.SourceRehearsal, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rest, err := s.ListSlots(ctx, model.SlotQuery{OwnerIDs: []string{u.ID}, From: dayStart, To: dayEnd})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, model.SourceImported, rest[0].Source)

	empty, err := s.ListSlots(ctx, model.SlotQuery{From: dayStart, To: dayEnd})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDeleteUserCascades(t *testing.T, s db.Store) {
	ctx := context.Background()
	owner := NewUser(t, s, "UTC")
	alice := NewUser(t, s, "UTC")
	p := NewProject(t, s, owner, alice)

	ref := "r-cascade"
	_, err := s.BookSlot(ctx, &model.AvailabilitySlot{
		OwnerID: alice.ID, StartsAt: at(20, 10, 0), EndsAt: at(20, 11, 0),
		Kind: model.KindBusy, Source: model.SourceRehearsal, ExternalRef: &ref,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertResponse(ctx, &model.RehearsalResponse{RehearsalID: ref, UserID: alice.ID, Status: model.ResponseYes}))

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, alice.ID), model.ErrOwnerNotFound)

	slots, err := s.ListSlots(ctx, model.SlotQuery{OwnerIDs: []string{alice.ID}, From: at(20, 0, 0), To: at(21, 0, 0)})
	require.NoError(t, err)
	assert.Empty(t, slots)

	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	responses, err := s.ListResponses(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, responses)
}
