package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const slotColumns = `id, owner_id, starts_at, ends_at, kind, source, external_ref, title, notes,
	is_all_day, created_at`

const insertSlot = `
	INSERT INTO availability_slots (` + slotColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// stamp fills the id and creation time of a slot about to be written.
func stamp(slot *model.AvailabilitySlot) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now()
	}
}

func slotArgs(slot *model.AvailabilitySlot) []any {
	return []any{
		slot.ID, slot.OwnerID, ts(slot.StartsAt), ts(slot.EndsAt), slot.Kind, slot.Source,
		slot.ExternalRef, slot.Title, slot.Notes, slot.IsAllDay, slot.CreatedAt,
	}
}

// ListSlots returns every slot of the given owners overlapping [From, To),
// ordered by owner and start.
func (s *sqlStore) ListSlots(ctx context.Context, q model.SlotQuery) ([]model.AvailabilitySlot, error) {
	out := []model.AvailabilitySlot{}
	if len(q.OwnerIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE owner_id IN (?) AND starts_at < ? AND ends_at > ?`
	args := []any{q.OwnerIDs, ts(q.To), ts(q.From)}
	if len(q.Sources) > 0 {
		query += ` AND source IN (?)`
		args = append(args, q.Sources)
	}
	query += ` ORDER BY owner_id, starts_at, id;`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		log.Error().Err(err).Strs("owner_ids", q.OwnerIDs).Msg("ListSlots failed")
		return nil, err
	}
	return out, nil
}

// InsertSlots writes slots as given. Used by import paths and fixtures.
func (s *sqlStore) InsertSlots(ctx context.Context, slots []model.AvailabilitySlot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("InsertSlots begin failed")
		return err
	}
	defer tx.Rollback()

	if err := insertAll(ctx, tx, slots); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAll(ctx context.Context, tx *sqlx.Tx, slots []model.AvailabilitySlot) error {
	query := tx.Rebind(insertSlot + ";")
	for i := range slots {
		stamp(&slots[i])
		if _, err := tx.ExecContext(ctx, query, slotArgs(&slots[i])...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: slot %s", model.ErrConflict, slots[i].ID)
			}
			log.Error().Err(err).Str("owner_id", slots[i].OwnerID).Msg("insert slot failed")
			return err
		}
	}
	return nil
}

// ReplaceManualSlots deletes the owner's manual slots starting in
// [dayStart, dayEnd) and inserts slots in their place, atomically.
func (s *sqlStore) ReplaceManualSlots(ctx context.Context, ownerID string, dayStart, dayEnd time.Time, slots []model.AvailabilitySlot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("ReplaceManualSlots begin failed")
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
	DELETE FROM availability_slots
	 WHERE owner_id = ? AND source = ? AND starts_at >= ? AND starts_at < ?;`),
		ownerID, model.SourceManual, ts(dayStart), ts(dayEnd)); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("ReplaceManualSlots delete failed")
		return err
	}
	for i := range slots {
		slots[i].OwnerID = ownerID
		slots[i].Source = model.SourceManual
	}
	if err := insertAll(ctx, tx, slots); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlStore) DeleteManualSlots(ctx context.Context, ownerID string, dayStart, dayEnd time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
	DELETE FROM availability_slots
	 WHERE owner_id = ? AND source = ? AND starts_at >= ? AND starts_at < ?;`),
		ownerID, model.SourceManual, ts(dayStart), ts(dayEnd))
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("DeleteManualSlots failed")
		return 0, err
	}
	return res.RowsAffected()
}

// BookSlot inserts a slot unless the owner already holds one with the same
// source and external ref. It reports whether a row was written.
func (s *sqlStore) BookSlot(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	stamp(slot)
	res, err := s.db.ExecContext(ctx, s.q(insertSlot+`
	ON CONFLICT DO NOTHING;`), slotArgs(slot)...)
	if err != nil {
		log.Error().Err(err).Str("owner_id", slot.OwnerID).Str("external_ref", slot.Ref()).Msg("BookSlot failed")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqlStore) DeleteSlotsByRef(ctx context.Context, source model.SlotSource, ref string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
	DELETE FROM availability_slots
	 WHERE source = ? AND external_ref = ?;`), source, ref)
	if err != nil {
		log.Error().Err(err).Str("external_ref", ref).Msg("DeleteSlotsByRef failed")
		return 0, err
	}
	return res.RowsAffected()
}
