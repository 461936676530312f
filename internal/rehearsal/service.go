package rehearsal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// MaxDuration is the longest rehearsal accepted.
const MaxDuration = 24 * time.Hour

type Draft struct {
	Title    string
	Location *string
	StartsAt time.Time
	EndsAt   time.Time
}

// Patch carries the fields of an update; nil fields are left unchanged.
type Patch struct {
	Title    *string
	Location *string
	StartsAt *time.Time
	EndsAt   *time.Time
}

// Service persists rehearsals and hands every change to the Synchronizer
// exactly once.
type Service struct {
	store db.Store
	sync  *Synchronizer
}

func NewService(store db.Store, sync *Synchronizer) *Service {
	return &Service{store: store, sync: sync}
}

func (s *Service) membership(ctx context.Context, projectID, userID string) (*model.ProjectMembership, error) {
	m, err := s.store.GetMembership(ctx, projectID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrForbidden
	}
	return m, err
}

func (s *Service) requireActive(ctx context.Context, projectID, userID string) error {
	m, err := s.membership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !m.Active() {
		return model.ErrForbidden
	}
	return nil
}

func validate(title string, start, end time.Time) (time.Time, time.Time, error) {
	if strings.TrimSpace(title) == "" {
		return start, end, fmt.Errorf("title is required: %w", model.ErrInvalidInput)
	}
	start, end = start.UTC().Truncate(time.Minute), end.UTC().Truncate(time.Minute)
	if start.IsZero() || !end.After(start) {
		return start, end, fmt.Errorf("ends_at must be after starts_at: %w", model.ErrInvalidRange)
	}
	if end.Sub(start) > MaxDuration {
		return start, end, fmt.Errorf("rehearsal longer than %s: %w", MaxDuration, model.ErrInvalidRange)
	}
	return start, end, nil
}

// Create stores a rehearsal and books it for the project's active members.
// The rehearsal is returned even when booking fails part way.
func (s *Service) Create(ctx context.Context, actorID, projectID string, d Draft) (*model.Rehearsal, SyncResult, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, SyncResult{}, err
	}
	if err := s.requireActive(ctx, projectID, actorID); err != nil {
		return nil, SyncResult{}, err
	}
	start, end, err := validate(d.Title, d.StartsAt, d.EndsAt)
	if err != nil {
		return nil, SyncResult{}, err
	}

	r := &model.Rehearsal{
		ProjectID: projectID,
		Title:     strings.TrimSpace(d.Title),
		Location:  d.Location,
		StartsAt:  start,
		EndsAt:    end,
		CreatedBy: actorID,
		SyncState: model.SyncPending,
	}
	if err := s.store.CreateRehearsal(ctx, r); err != nil {
		return nil, SyncResult{}, err
	}
	log.Info().Str("rehearsal_id", r.ID).Str("project_id", projectID).Msg("rehearsal created")

	res, syncErr := s.sync.Created(ctx, r.ID)
	return s.reload(ctx, r), res, syncErr
}

func (s *Service) Update(ctx context.Context, actorID, id string, p Patch) (*model.Rehearsal, SyncResult, error) {
	r, err := s.store.GetRehearsal(ctx, id)
	if err != nil {
		return nil, SyncResult{}, err
	}
	if err := s.requireActive(ctx, r.ProjectID, actorID); err != nil {
		return nil, SyncResult{}, err
	}
	if r.SyncState == model.SyncDeleting {
		return nil, SyncResult{}, fmt.Errorf("rehearsal %s is being deleted: %w", id, model.ErrConflict)
	}

	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Location != nil {
		r.Location = p.Location
	}
	if p.StartsAt != nil {
		r.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		r.EndsAt = *p.EndsAt
	}
	if r.StartsAt, r.EndsAt, err = validate(r.Title, r.StartsAt, r.EndsAt); err != nil {
		return nil, SyncResult{}, err
	}

	if err := s.store.UpdateRehearsal(ctx, r); err != nil {
		return nil, SyncResult{}, err
	}
	res, syncErr := s.sync.Updated(ctx, id)
	return s.reload(ctx, r), res, syncErr
}

func (s *Service) Delete(ctx context.Context, actorID, id string) (SyncResult, error) {
	r, err := s.store.GetRehearsal(ctx, id)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.requireActive(ctx, r.ProjectID, actorID); err != nil {
		return SyncResult{}, err
	}
	return s.sync.Deleted(ctx, id)
}

// Resync rebooks a rehearsal on request, typically after a partial failure.
func (s *Service) Resync(ctx context.Context, actorID, id string) (SyncResult, error) {
	r, err := s.store.GetRehearsal(ctx, id)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.requireActive(ctx, r.ProjectID, actorID); err != nil {
		return SyncResult{}, err
	}
	if r.SyncState == model.SyncDeleting {
		return s.sync.Deleted(ctx, id)
	}
	return s.sync.Updated(ctx, id)
}

// RosterChanged rebooks the project's rehearsals that have not ended yet so
// their slots follow the current active roster.
func (s *Service) RosterChanged(ctx context.Context, projectID string) error {
	upcoming, err := s.store.ListRehearsals(ctx, projectID, time.Now().UTC(), time.Time{})
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range upcoming {
		if r.SyncState == model.SyncDeleting {
			continue
		}
		if _, err := s.sync.Updated(ctx, r.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, actorID, id string) (*model.Rehearsal, error) {
	r, err := s.store.GetRehearsal(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, r.ProjectID, actorID); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the project's rehearsals overlapping [from, to). Zero bounds
// are open.
func (s *Service) List(ctx context.Context, actorID, projectID string, from, to time.Time) ([]model.Rehearsal, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, model.ErrInvalidRange
	}
	return s.store.ListRehearsals(ctx, projectID, from, to)
}

func (s *Service) Respond(ctx context.Context, actorID, rehearsalID string, status model.ResponseStatus, note *string) (*model.RehearsalResponse, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("response status %q: %w", status, model.ErrInvalidInput)
	}
	r, err := s.store.GetRehearsal(ctx, rehearsalID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActive(ctx, r.ProjectID, actorID); err != nil {
		return nil, err
	}
	resp := &model.RehearsalResponse{RehearsalID: rehearsalID, UserID: actorID, Status: status, Note: note}
	if err := s.store.UpsertResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) Responses(ctx context.Context, actorID, rehearsalID string) ([]model.RehearsalResponse, error) {
	r, err := s.Get(ctx, actorID, rehearsalID)
	if err != nil {
		return nil, err
	}
	return s.store.ListResponses(ctx, r.ID)
}

func (s *Service) reload(ctx context.Context, r *model.Rehearsal) *model.Rehearsal {
	fresh, err := s.store.GetRehearsal(ctx, r.ID)
	if err != nil {
		return r
	}
	return fresh
}
