// exposes a Store interface that is passed to services and API calls
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

type Store interface {
	// user functions
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, email string, name *string, timezone string) error
	DeleteUser(ctx context.Context, id string) error

	// project functions
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error)
	UpsertMembership(ctx context.Context, m *model.ProjectMembership) error
	GetMembership(ctx context.Context, projectID, userID string) (*model.ProjectMembership, error)
	ListMembers(ctx context.Context, projectID string) ([]model.ProjectMembership, error)
	ListActiveMembers(ctx context.Context, projectID string) ([]model.ProjectMembership, error)

	// rehearsal functions
	CreateRehearsal(ctx context.Context, r *model.Rehearsal) error
	UpdateRehearsal(ctx context.Context, r *model.Rehearsal) error
	GetRehearsal(ctx context.Context, id string) (*model.Rehearsal, error)
	ListRehearsals(ctx context.Context, projectID string, from, to time.Time) ([]model.Rehearsal, error)
	ListRehearsalsBySyncState(ctx context.Context, states []model.SyncState, limit int) ([]model.Rehearsal, error)
	SetRehearsalSyncState(ctx context.Context, id string, state model.SyncState, syncErr *string) error
	DeleteRehearsal(ctx context.Context, id string) error

	// response functions
	UpsertResponse(ctx context.Context, r *model.RehearsalResponse) error
	ListResponses(ctx context.Context, rehearsalID string) ([]model.RehearsalResponse, error)
	DeleteResponses(ctx context.Context, rehearsalID string) (int64, error)

	// slot functions
	ListSlots(ctx context.Context, q model.SlotQuery) ([]model.AvailabilitySlot, error)
	InsertSlots(ctx context.Context, slots []model.AvailabilitySlot) error
	ReplaceManualSlots(ctx context.Context, ownerID string, dayStart, dayEnd time.Time, slots []model.AvailabilitySlot) error
	DeleteManualSlots(ctx context.Context, ownerID string, dayStart, dayEnd time.Time) (int64, error)
	BookSlot(ctx context.Context, slot *model.AvailabilitySlot) (bool, error)
	DeleteSlotsByRef(ctx context.Context, source model.SlotSource, ref string) (int64, error)
}

type sqlStore struct {
	db *sqlx.DB
}

// compile-time check that sqlStore implements Store
var _ Store = (*sqlStore)(nil)

// NewStore wraps the package connection.
func NewStore() Store {
	return &sqlStore{db: DB}
}

func NewStoreFrom(conn *sqlx.DB) Store {
	return &sqlStore{db: conn}
}

// q rebinds a "?" query for the connected driver.
func (s *sqlStore) q(query string) string {
	return s.db.Rebind(query)
}
