package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const userColumns = `id, email, hashed_password, name, timezone, created_at, updated_at`

// inserts a new user, filling in ID and timestamps. A taken email is
// reported as model.ErrConflict.
func (s *sqlStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO users (id, email, hashed_password, name, timezone, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);`),
		u.ID, u.Email, u.HashedPassword, u.Name, u.Timezone, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		log.Error().Err(err).Msg("CreateUser failed")
		return err
	}
	return nil
}

// fetches user by email. returns model.ErrOwnerNotFound if not found.
func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE email = ?;`), email)
	if err != nil {
		return nil, notFound(err, model.ErrOwnerNotFound)
	}
	return &u, nil
}

func (s *sqlStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?;`), id)
	if err != nil {
		err = notFound(err, model.ErrOwnerNotFound)
		if err != model.ErrOwnerNotFound {
			log.Error().Err(err).Str("user_id", id).Msg("GetUserByID failed")
		}
		return nil, err
	}
	return &u, nil
}

// updates a user's email, name and timezone, and bumps updated_at.
func (s *sqlStore) UpdateUserProfile(ctx context.Context, id, email string, name *string, timezone string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
	UPDATE users
	   SET email = ?,
	       name = ?,
	       timezone = ?,
	       updated_at = ?
	 WHERE id = ?;`), email, name, timezone, now(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		log.Error().Err(err).Str("user_id", id).Msg("UpdateUserProfile failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrOwnerNotFound
	}
	return nil
}

// removes the user; memberships, responses and slots go with it through
// ON DELETE CASCADE.
func (s *sqlStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("DeleteUser failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrOwnerNotFound
	}
	return nil
}
