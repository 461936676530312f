package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/troupe/internal/ledger"
)

type CreateProjectRequest struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
}

// AddMemberRequest identifies the new member by email or id.
type AddMemberRequest struct {
	Email  string `json:"email" binding:"omitempty,email"`
	UserID string `json:"user_id"`
	Role   string `json:"role" binding:"omitempty,oneof=owner member"`
}

type UpdateMemberRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
	Role   string `json:"role" binding:"omitempty,oneof=owner member"`
}

type CreateRehearsalRequest struct {
	Title    string    `json:"title" binding:"required"`
	Location *string   `json:"location"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required"`
}

type UpdateRehearsalRequest struct {
	Title    *string    `json:"title"`
	Location *string    `json:"location"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type RespondRequest struct {
	Status string  `json:"status" binding:"required"`
	Note   *string `json:"note"`
}

// SetAvailabilityRequest replaces a day's manual ranges. An empty list
// clears the day.
type SetAvailabilityRequest struct {
	Ranges []ledger.ManualRange `json:"ranges"`
}
