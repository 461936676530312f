package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const rehearsalColumns = `id, project_id, title, location, starts_at, ends_at, created_by,
	sync_state, sync_error, created_at, updated_at`

func (s *sqlStore) CreateRehearsal(ctx context.Context, r *model.Rehearsal) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SyncState == "" {
		r.SyncState = model.SyncPending
	}
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt

	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO rehearsals (`+rehearsalColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`),
		r.ID, r.ProjectID, r.Title, r.Location, ts(r.StartsAt), ts(r.EndsAt), r.CreatedBy,
		r.SyncState, r.SyncError, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", r.ID).Msg("CreateRehearsal failed")
	}
	return err
}

// UpdateRehearsal rewrites the editable fields and marks the row pending
// until the synchronizer has rebooked it.
func (s *sqlStore) UpdateRehearsal(ctx context.Context, r *model.Rehearsal) error {
	r.UpdatedAt = now()
	r.SyncState = model.SyncPending
	res, err := s.db.ExecContext(ctx, s.q(`
	UPDATE rehearsals
	   SET title = ?,
	       location = ?,
	       starts_at = ?,
	       ends_at = ?,
	       sync_state = ?,
	       updated_at = ?
	 WHERE id = ?;`),
		r.Title, r.Location, ts(r.StartsAt), ts(r.EndsAt), r.SyncState, r.UpdatedAt, r.ID)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", r.ID).Msg("UpdateRehearsal failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrRehearsalNotFound
	}
	return nil
}

func (s *sqlStore) GetRehearsal(ctx context.Context, id string) (*model.Rehearsal, error) {
	var r model.Rehearsal
	err := s.db.GetContext(ctx, &r, s.q(`SELECT `+rehearsalColumns+` FROM rehearsals WHERE id = ?;`), id)
	if err != nil {
		return nil, notFound(err, model.ErrRehearsalNotFound)
	}
	return &r, nil
}

// lists a project's rehearsals overlapping [from, to). A zero bound is open.
func (s *sqlStore) ListRehearsals(ctx context.Context, projectID string, from, to time.Time) ([]model.Rehearsal, error) {
	query := `SELECT ` + rehearsalColumns + ` FROM rehearsals WHERE project_id = ?`
	args := []any{projectID}
	if !to.IsZero() {
		query += ` AND starts_at < ?`
		args = append(args, ts(to))
	}
	if !from.IsZero() {
		query += ` AND ends_at > ?`
		args = append(args, ts(from))
	}
	query += ` ORDER BY starts_at, id;`

	out := []model.Rehearsal{}
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		log.Error().Err(err).Str("project_id", projectID).Msg("ListRehearsals failed")
		return nil, err
	}
	return out, nil
}

// ListRehearsalsBySyncState returns the oldest rehearsals in any of states.
func (s *sqlStore) ListRehearsalsBySyncState(ctx context.Context, states []model.SyncState, limit int) ([]model.Rehearsal, error) {
	out := []model.Rehearsal{}
	if len(states) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	SELECT `+rehearsalColumns+`
	  FROM rehearsals
	 WHERE sync_state IN (?)
	 ORDER BY updated_at, id
	 LIMIT ?;`, states, limit)
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		log.Error().Err(err).Msg("ListRehearsalsBySyncState failed")
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) SetRehearsalSyncState(ctx context.Context, id string, state model.SyncState, syncErr *string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
	UPDATE rehearsals
	   SET sync_state = ?,
	       sync_error = ?,
	       updated_at = ?
	 WHERE id = ?;`), state, syncErr, now(), id)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", id).Str("state", string(state)).Msg("SetRehearsalSyncState failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrRehearsalNotFound
	}
	return nil
}

func (s *sqlStore) DeleteRehearsal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM rehearsals WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", id).Msg("DeleteRehearsal failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrRehearsalNotFound
	}
	return nil
}

func (s *sqlStore) UpsertResponse(ctx context.Context, r *model.RehearsalResponse) error {
	r.UpdatedAt = now()
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO rehearsal_responses (rehearsal_id, user_id, status, note, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (rehearsal_id, user_id) DO UPDATE
	   SET status = excluded.status,
	       note = excluded.note,
	       updated_at = excluded.updated_at;`),
		r.RehearsalID, r.UserID, r.Status, r.Note, r.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", r.RehearsalID).Str("user_id", r.UserID).Msg("UpsertResponse failed")
	}
	return err
}

func (s *sqlStore) ListResponses(ctx context.Context, rehearsalID string) ([]model.RehearsalResponse, error) {
	out := []model.RehearsalResponse{}
	err := s.db.SelectContext(ctx, &out, s.q(`
	SELECT rehearsal_id, user_id, status, note, updated_at
	  FROM rehearsal_responses
	 WHERE rehearsal_id = ?
	 ORDER BY updated_at, user_id;`), rehearsalID)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", rehearsalID).Msg("ListResponses failed")
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) DeleteResponses(ctx context.Context, rehearsalID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM rehearsal_responses WHERE rehearsal_id = ?;`), rehearsalID)
	if err != nil {
		log.Error().Err(err).Str("rehearsal_id", rehearsalID).Msg("DeleteResponses failed")
		return 0, err
	}
	return res.RowsAffected()
}
