// Package memstore is an in-memory db.Store used by DATABASE_DRIVER=memory
// and by service tests. It honours the same uniqueness and cascade rules as
// the SQL schema.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

type memberKey struct{ projectID, userID string }

type responseKey struct{ rehearsalID, userID string }

type Store struct {
	mu          sync.RWMutex
	users       map[string]model.User
	projects    map[string]model.Project
	memberships map[memberKey]model.ProjectMembership
	rehearsals  map[string]model.Rehearsal
	responses   map[responseKey]model.RehearsalResponse
	slots       map[string]model.AvailabilitySlot
}

var _ db.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       map[string]model.User{},
		projects:    map[string]model.Project{},
		memberships: map[memberKey]model.ProjectMembership{},
		rehearsals:  map[string]model.Rehearsal{},
		responses:   map[responseKey]model.RehearsalResponse{},
		slots:       map[string]model.AvailabilitySlot{},
	}
}

func now() time.Time { return time.Now().UTC() }

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	cp.Name = cloneStr(u.Name)
	s.users[u.ID] = cp
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u.Name = cloneStr(u.Name)
			return &u, nil
		}
	}
	return nil, model.ErrOwnerNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrOwnerNotFound
	}
	u.Name = cloneStr(u.Name)
	return &u, nil
}

func (s *Store) UpdateUserProfile(_ context.Context, id, email string, name *string, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrOwnerNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && strings.EqualFold(other.Email, email) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
	}
	u.Email, u.Name, u.Timezone, u.UpdatedAt = email, cloneStr(name), timezone, now()
	s.users[id] = u
	return nil
}

// DeleteUser mirrors ON DELETE CASCADE: the user's projects, memberships,
// responses and slots are removed with it.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return model.ErrOwnerNotFound
	}
	delete(s.users, id)
	for pid, p := range s.projects {
		if p.CreatedBy == id {
			s.deleteProjectLocked(pid)
		}
	}
	for k := range s.memberships {
		if k.userID == id {
			delete(s.memberships, k)
		}
	}
	for k := range s.responses {
		if k.userID == id {
			delete(s.responses, k)
		}
	}
	for sid, slot := range s.slots {
		if slot.OwnerID == id {
			delete(s.slots, sid)
		}
	}
	return nil
}

func (s *Store) deleteProjectLocked(projectID string) {
	delete(s.projects, projectID)
	for k := range s.memberships {
		if k.projectID == projectID {
			delete(s.memberships, k)
		}
	}
	for rid, r := range s.rehearsals {
		if r.ProjectID == projectID {
			delete(s.rehearsals, rid)
		}
	}
}

func (s *Store) CreateProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.CreatedBy]; !ok {
		return model.ErrOwnerNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = *p
	s.memberships[memberKey{p.ID, p.CreatedBy}] = model.ProjectMembership{
		ProjectID: p.ID,
		UserID:    p.CreatedBy,
		Role:      model.RoleOwner,
		Status:    model.MembershipActive,
		JoinedAt:  p.CreatedAt,
		UpdatedAt: p.CreatedAt,
	}
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, model.ErrProjectNotFound
	}
	return &p, nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Project{}
	for k := range s.memberships {
		if k.userID != userID {
			continue
		}
		if p, ok := s.projects[k.projectID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpsertMembership(_ context.Context, m *model.ProjectMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[m.ProjectID]; !ok {
		return model.ErrProjectNotFound
	}
	if _, ok := s.users[m.UserID]; !ok {
		return model.ErrOwnerNotFound
	}
	at := now()
	key := memberKey{m.ProjectID, m.UserID}
	if existing, ok := s.memberships[key]; ok {
		m.JoinedAt = existing.JoinedAt
	} else if m.JoinedAt.IsZero() {
		m.JoinedAt = at
	}
	m.UpdatedAt = at
	s.memberships[key] = *m
	return nil
}

func (s *Store) GetMembership(_ context.Context, projectID, userID string) (*model.ProjectMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[memberKey{projectID, userID}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMembers(_ context.Context, projectID string) ([]model.ProjectMembership, error) {
	return s.listMembers(projectID, false), nil
}

func (s *Store) ListActiveMembers(_ context.Context, projectID string) ([]model.ProjectMembership, error) {
	return s.listMembers(projectID, true), nil
}

func (s *Store) listMembers(projectID string, activeOnly bool) []model.ProjectMembership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ProjectMembership{}
	for k, m := range s.memberships {
		if k.projectID != projectID || (activeOnly && !m.Active()) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func cloneRehearsal(r model.Rehearsal) model.Rehearsal {
	r.Location = cloneStr(r.Location)
	r.SyncError = cloneStr(r.SyncError)
	return r
}

func (s *Store) CreateRehearsal(_ context.Context, r *model.Rehearsal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[r.ProjectID]; !ok {
		return model.ErrProjectNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SyncState == "" {
		r.SyncState = model.SyncPending
	}
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt
	s.rehearsals[r.ID] = cloneRehearsal(*r)
	return nil
}

func (s *Store) UpdateRehearsal(_ context.Context, r *model.Rehearsal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rehearsals[r.ID]
	if !ok {
		return model.ErrRehearsalNotFound
	}
	r.UpdatedAt = now()
	r.SyncState = model.SyncPending
	existing.Title, existing.Location = r.Title, cloneStr(r.Location)
	existing.StartsAt, existing.EndsAt = r.StartsAt.UTC(), r.EndsAt.UTC()
	existing.SyncState, existing.UpdatedAt = r.SyncState, r.UpdatedAt
	s.rehearsals[r.ID] = existing
	return nil
}

func (s *Store) GetRehearsal(_ context.Context, id string) (*model.Rehearsal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rehearsals[id]
	if !ok {
		return nil, model.ErrRehearsalNotFound
	}
	cp := cloneRehearsal(r)
	return &cp, nil
}

func sortRehearsals(out []model.Rehearsal, key func(model.Rehearsal) time.Time) {
	sort.Slice(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
}

func (s *Store) ListRehearsals(_ context.Context, projectID string, from, to time.Time) ([]model.Rehearsal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Rehearsal{}
	for _, r := range s.rehearsals {
		if r.ProjectID != projectID {
			continue
		}
		if !to.IsZero() && !r.StartsAt.Before(to) {
			continue
		}
		if !from.IsZero() && !r.EndsAt.After(from) {
			continue
		}
		out = append(out, cloneRehearsal(r))
	}
	sortRehearsals(out, func(r model.Rehearsal) time.Time { return r.StartsAt })
	return out, nil
}

func (s *Store) ListRehearsalsBySyncState(_ context.Context, states []model.SyncState, limit int) ([]model.Rehearsal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[model.SyncState]bool{}
	for _, st := range states {
		want[st] = true
	}
	out := []model.Rehearsal{}
	for _, r := range s.rehearsals {
		if want[r.SyncState] {
			out = append(out, cloneRehearsal(r))
		}
	}
	sortRehearsals(out, func(r model.Rehearsal) time.Time { return r.UpdatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetRehearsalSyncState(_ context.Context, id string, state model.SyncState, syncErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rehearsals[id]
	if !ok {
		return model.ErrRehearsalNotFound
	}
	r.SyncState, r.SyncError, r.UpdatedAt = state, cloneStr(syncErr), now()
	s.rehearsals[id] = r
	return nil
}

func (s *Store) DeleteRehearsal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rehearsals[id]; !ok {
		return model.ErrRehearsalNotFound
	}
	delete(s.rehearsals, id)
	return nil
}

func (s *Store) UpsertResponse(_ context.Context, r *model.RehearsalResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return model.ErrOwnerNotFound
	}
	r.UpdatedAt = now()
	cp := *r
	cp.Note = cloneStr(r.Note)
	s.responses[responseKey{r.RehearsalID, r.UserID}] = cp
	return nil
}

func (s *Store) ListResponses(_ context.Context, rehearsalID string) ([]model.RehearsalResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.RehearsalResponse{}
	for k, r := range s.responses {
		if k.rehearsalID == rehearsalID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) DeleteResponses(_ context.Context, rehearsalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.responses {
		if k.rehearsalID == rehearsalID {
			delete(s.responses, k)
			n++
		}
	}
	return n, nil
}
