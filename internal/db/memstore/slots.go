package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

func cloneSlot(slot model.AvailabilitySlot) model.AvailabilitySlot {
	slot.ExternalRef = cloneStr(slot.ExternalRef)
	slot.Title = cloneStr(slot.Title)
	slot.Notes = cloneStr(slot.Notes)
	return slot
}

func (s *Store) ListSlots(_ context.Context, q model.SlotQuery) ([]model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := map[string]bool{}
	for _, id := range q.OwnerIDs {
		owners[id] = true
	}
	sources := map[model.SlotSource]bool{}
	for _, src := range q.Sources {
		sources[src] = true
	}

	out := []model.AvailabilitySlot{}
	for _, slot := range s.slots {
		if !owners[slot.OwnerID] {
			continue
		}
		if len(sources) > 0 && !sources[slot.Source] {
			continue
		}
		if !slot.StartsAt.Before(q.To) || !slot.EndsAt.After(q.From) {
			continue
		}
		out = append(out, cloneSlot(slot))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// refTaken reports whether owner already holds a slot with source and ref.
func (s *Store) refTaken(slot model.AvailabilitySlot) bool {
	if slot.ExternalRef == nil {
		return false
	}
	for _, existing := range s.slots {
		if existing.OwnerID == slot.OwnerID && existing.Source == slot.Source && existing.Ref() == *slot.ExternalRef {
			return true
		}
	}
	return false
}

func (s *Store) prepare(slot *model.AvailabilitySlot) error {
	if _, ok := s.users[slot.OwnerID]; !ok {
		return model.ErrOwnerNotFound
	}
	if !slot.EndsAt.After(slot.StartsAt) {
		return fmt.Errorf("%w: slot ends before it starts", model.ErrInvalidRange)
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now()
	}
	slot.StartsAt, slot.EndsAt = slot.StartsAt.UTC(), slot.EndsAt.UTC()
	return nil
}

// insertAll validates every slot before writing any of them.
func (s *Store) insertAll(slots []model.AvailabilitySlot) error {
	for i := range slots {
		if err := s.prepare(&slots[i]); err != nil {
			return err
		}
		if _, dup := s.slots[slots[i].ID]; dup || s.refTaken(slots[i]) {
			return fmt.Errorf("%w: slot %s", model.ErrConflict, slots[i].ID)
		}
	}
	for _, slot := range slots {
		s.slots[slot.ID] = cloneSlot(slot)
	}
	return nil
}

func (s *Store) InsertSlots(_ context.Context, slots []model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAll(slots)
}

func (s *Store) deleteManualLocked(ownerID string, dayStart, dayEnd time.Time) int64 {
	var n int64
	for id, slot := range s.slots {
		if slot.OwnerID != ownerID || slot.Source != model.SourceManual {
			continue
		}
		if slot.StartsAt.Before(dayStart) || !slot.StartsAt.Before(dayEnd) {
			continue
		}
		delete(s.slots, id)
		n++
	}
	return n
}

func (s *Store) ReplaceManualSlots(_ context.Context, ownerID string, dayStart, dayEnd time.Time, slots []model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range slots {
		slots[i].OwnerID = ownerID
		slots[i].Source = model.SourceManual
		if err := s.prepare(&slots[i]); err != nil {
			return err
		}
	}
	s.deleteManualLocked(ownerID, dayStart, dayEnd)
	for _, slot := range slots {
		s.slots[slot.ID] = cloneSlot(slot)
	}
	return nil
}

func (s *Store) DeleteManualSlots(_ context.Context, ownerID string, dayStart, dayEnd time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteManualLocked(ownerID, dayStart, dayEnd), nil
}

func (s *Store) BookSlot(_ context.Context, slot *model.AvailabilitySlot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepare(slot); err != nil {
		return false, err
	}
	if s.refTaken(*slot) {
		return false, nil
	}
	s.slots[slot.ID] = cloneSlot(*slot)
	return true, nil
}

func (s *Store) DeleteSlotsByRef(_ context.Context, source model.SlotSource, ref string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, slot := range s.slots {
		if slot.Source == source && slot.Ref() == ref {
			delete(s.slots, id)
			n++
		}
	}
	return n, nil
}
