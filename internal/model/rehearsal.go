package model

import "time"

// SyncState tracks whether a rehearsal's slots mirror its current window and
// roster. Anything other than synced is picked up by the reconciler.
type SyncState string

const (
	SyncPending  SyncState = "pending"
	SyncSynced   SyncState = "synced"
	SyncFailed   SyncState = "failed"
	SyncDeleting SyncState = "deleting"
)

type Rehearsal struct {
	ID        string    `db:"id"         json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	Title     string    `db:"title"      json:"title"`
	Location  *string   `db:"location"   json:"location,omitempty"`
	StartsAt  time.Time `db:"starts_at"  json:"starts_at"`
	EndsAt    time.Time `db:"ends_at"    json:"ends_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	SyncState SyncState `db:"sync_state" json:"sync_state"`
	SyncError *string   `db:"sync_error" json:"sync_error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type ResponseStatus string

const (
	ResponseYes   ResponseStatus = "yes"
	ResponseNo    ResponseStatus = "no"
	ResponseMaybe ResponseStatus = "maybe"
)

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseYes, ResponseNo, ResponseMaybe:
		return true
	}
	return false
}

// RehearsalResponse is a member's RSVP. Rows reference the rehearsal by id and
// are removed before the rehearsal row itself.
type RehearsalResponse struct {
	RehearsalID string         `db:"rehearsal_id" json:"rehearsal_id"`
	UserID      string         `db:"user_id"      json:"user_id"`
	Status      ResponseStatus `db:"status"       json:"status"`
	Note        *string        `db:"note"         json:"note,omitempty"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
}
