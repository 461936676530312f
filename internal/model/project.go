package model

import "time"

type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

func (s MembershipStatus) Valid() bool {
	return s == MembershipActive || s == MembershipInactive
}

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// Project groups members who rehearse together. Timezone is the default
// zone for members that never set one.
type Project struct {
	ID        string    `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Timezone  string    `db:"timezone"   json:"timezone"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type ProjectMembership struct {
	ProjectID string           `db:"project_id" json:"project_id"`
	UserID    string           `db:"user_id"    json:"user_id"`
	Role      MemberRole       `db:"role"       json:"role"`
	Status    MembershipStatus `db:"status"     json:"status"`
	JoinedAt  time.Time        `db:"joined_at"  json:"joined_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

func (m ProjectMembership) Active() bool { return m.Status == MembershipActive }
