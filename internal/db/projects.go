package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const membershipColumns = `project_id, user_id, role, status, joined_at, updated_at`

// CreateProject inserts the project and its creator's owner membership in
// one transaction.
func (s *sqlStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("CreateProject begin failed")
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
	INSERT INTO projects (id, name, timezone, created_by, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?);`),
		p.ID, p.Name, p.Timezone, p.CreatedBy, p.CreatedAt, p.UpdatedAt); err != nil {
		log.Error().Err(err).Str("project_id", p.ID).Msg("CreateProject failed")
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
	INSERT INTO project_memberships (`+membershipColumns+`)
	VALUES (?, ?, ?, ?, ?, ?);`),
		p.ID, p.CreatedBy, model.RoleOwner, model.MembershipActive, p.CreatedAt, p.CreatedAt); err != nil {
		log.Error().Err(err).Str("project_id", p.ID).Msg("CreateProject owner membership failed")
		return err
	}
	return tx.Commit()
}

func (s *sqlStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, s.q(`
	SELECT id, name, timezone, created_by, created_at, updated_at
	  FROM projects
	 WHERE id = ?;`), id)
	if err != nil {
		return nil, notFound(err, model.ErrProjectNotFound)
	}
	return &p, nil
}

// lists projects the user has any membership in, active or not.
func (s *sqlStore) ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	out := []model.Project{}
	err := s.db.SelectContext(ctx, &out, s.q(`
	SELECT p.id, p.name, p.timezone, p.created_by, p.created_at, p.updated_at
	  FROM projects p
	  JOIN project_memberships m ON m.project_id = p.id
	 WHERE m.user_id = ?
	 ORDER BY p.created_at, p.id;`), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("ListProjectsForUser failed")
		return nil, err
	}
	return out, nil
}

// inserts or updates the role and status of a membership.
func (s *sqlStore) UpsertMembership(ctx context.Context, m *model.ProjectMembership) error {
	at := now()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = at
	}
	m.UpdatedAt = at
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO project_memberships (`+membershipColumns+`)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_id, user_id) DO UPDATE
	   SET role = excluded.role,
	       status = excluded.status,
	       updated_at = excluded.updated_at;`),
		m.ProjectID, m.UserID, m.Role, m.Status, m.JoinedAt, m.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("project_id", m.ProjectID).Str("user_id", m.UserID).Msg("UpsertMembership failed")
	}
	return err
}

func (s *sqlStore) GetMembership(ctx context.Context, projectID, userID string) (*model.ProjectMembership, error) {
	var m model.ProjectMembership
	err := s.db.GetContext(ctx, &m, s.q(`
	SELECT `+membershipColumns+`
	  FROM project_memberships
	 WHERE project_id = ? AND user_id = ?;`), projectID, userID)
	if err != nil {
		return nil, notFound(err, model.ErrNotFound)
	}
	return &m, nil
}

func (s *sqlStore) ListMembers(ctx context.Context, projectID string) ([]model.ProjectMembership, error) {
	return s.listMembers(ctx, projectID, false)
}

func (s *sqlStore) ListActiveMembers(ctx context.Context, projectID string) ([]model.ProjectMembership, error) {
	return s.listMembers(ctx, projectID, true)
}

func (s *sqlStore) listMembers(ctx context.Context, projectID string, activeOnly bool) ([]model.ProjectMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = ?`
	args := []any{projectID}
	if activeOnly {
		query += ` AND status = ?`
		args = append(args, model.MembershipActive)
	}
	query += ` ORDER BY joined_at, user_id;`

	out := []model.ProjectMembership{}
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		log.Error().Err(err).Str("project_id", projectID).Msg("listMembers failed")
		return nil, err
	}
	return out, nil
}
