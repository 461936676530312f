package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/rehearsal"
)

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func NewProjectResponse(p *model.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Timezone:  p.Timezone,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

type MemberResponse struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	JoinedAt string `json:"joined_at"`
}

func NewMemberResponse(m model.ProjectMembership) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID,
		Role:     string(m.Role),
		Status:   string(m.Status),
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	}
}

type RehearsalResponse struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	Location  *string `json:"location"`
	StartsAt  string  `json:"starts_at"`
	EndsAt    string  `json:"ends_at"`
	CreatedBy string  `json:"created_by"`
	SyncState string  `json:"sync_state"`
	SyncError *string `json:"sync_error,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func NewRehearsalResponse(r *model.Rehearsal) RehearsalResponse {
	return RehearsalResponse{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Title:     r.Title,
		Location:  r.Location,
		StartsAt:  r.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:    r.EndsAt.UTC().Format(time.RFC3339),
		CreatedBy: r.CreatedBy,
		SyncState: string(r.SyncState),
		SyncError: r.SyncError,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

type ConflictResponse struct {
	OwnerID  string  `json:"owner_id"`
	Kind     string  `json:"kind"`
	Source   string  `json:"source"`
	Title    *string `json:"title,omitempty"`
	StartsAt string  `json:"starts_at"`
	EndsAt   string  `json:"ends_at"`
}

type SyncResponse struct {
	Booked    int                `json:"booked"`
	Removed   int64              `json:"removed"`
	Members   []string           `json:"members"`
	Failed    []string           `json:"failed,omitempty"`
	Conflicts []ConflictResponse `json:"conflicts"`
}

func NewSyncResponse(res rehearsal.SyncResult) SyncResponse {
	out := SyncResponse{
		Booked:    res.Booked,
		Removed:   res.Removed,
		Members:   res.Members,
		Failed:    res.Failed,
		Conflicts: make([]ConflictResponse, 0, len(res.Conflicts)),
	}
	if out.Members == nil {
		out.Members = []string{}
	}
	for _, s := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, ConflictResponse{
			OwnerID:  s.OwnerID,
			Kind:     string(s.Kind),
			Source:   string(s.Source),
			Title:    s.Title,
			StartsAt: s.StartsAt.UTC().Format(time.RFC3339),
			EndsAt:   s.EndsAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

type RehearsalSyncResponse struct {
	Rehearsal RehearsalResponse `json:"rehearsal"`
	Sync      SyncResponse      `json:"sync"`
}

type ResponseResponse struct {
	UserID    string  `json:"user_id"`
	Status    string  `json:"status"`
	Note      *string `json:"note,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

func NewResponseResponse(r model.RehearsalResponse) ResponseResponse {
	return ResponseResponse{
		UserID:    r.UserID,
		Status:    string(r.Status),
		Note:      r.Note,
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}
