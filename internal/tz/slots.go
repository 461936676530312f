package tz

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/Nixie-Tech-LLC/troupe/internal/interval"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// LocalSlot is the part of a stored slot that falls on one local date.
type LocalSlot struct {
	SlotID      string           `json:"slot_id"`
	Date        civil.Date       `json:"date"`
	Range       interval.Range   `json:"range"`
	Kind        model.SlotKind   `json:"kind"`
	Source      model.SlotSource `json:"source"`
	ExternalRef *string          `json:"external_ref,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
	IsAllDay    bool             `json:"is_all_day"`
}

// LocalRange is a wall-clock range on a known date, as entered by a member.
type LocalRange struct {
	Range    interval.Range
	Kind     model.SlotKind
	Title    *string
	Notes    *string
	IsAllDay bool
}

// SlotsToLocal projects UTC slots onto the local calendar of loc. A slot
// crossing local midnight yields one LocalSlot per date it touches.
func SlotsToLocal(slots []model.AvailabilitySlot, loc *time.Location) []LocalSlot {
	out := make([]LocalSlot, 0, len(slots))
	for _, s := range slots {
		start, end := s.StartsAt.In(loc), s.EndsAt.In(loc)
		if !end.After(start) {
			continue
		}
		date := civil.DateOf(start)
		for cursor := start; cursor.Before(end); {
			next := Instant(date.AddDays(1), 0, loc)
			segEnd := end
			endMinute := 0
			if !next.After(end) {
				segEnd = next
				endMinute = interval.DayMinutes
			} else {
				endMinute = MinuteOfDay(segEnd, loc)
			}
			startMinute := MinuteOfDay(cursor, loc)
			if endMinute <= startMinute {
				// the wall clock went back inside the segment; keep its length
				endMinute = min(startMinute+int(segEnd.Sub(cursor)/time.Minute), interval.DayMinutes)
			}
			r := interval.Range{Start: startMinute, End: endMinute}
			if r.Valid() {
				out = append(out, LocalSlot{
					SlotID:      s.ID,
					Date:        date,
					Range:       r,
					Kind:        s.Kind,
					Source:      s.Source,
					ExternalRef: s.ExternalRef,
					Title:       s.Title,
					Notes:       s.Notes,
					IsAllDay:    s.IsAllDay,
				})
			}
			cursor = segEnd.In(loc)
			date = date.AddDays(1)
		}
	}
	return out
}

// LocalToSlots builds UTC slots for ranges entered on date in loc. The caller
// stamps ID, Source and CreatedAt.
func LocalToSlots(ownerID string, date civil.Date, ranges []LocalRange, loc *time.Location) []model.AvailabilitySlot {
	out := make([]model.AvailabilitySlot, 0, len(ranges))
	for _, r := range ranges {
		if !r.Range.Valid() {
			continue
		}
		out = append(out, model.AvailabilitySlot{
			OwnerID:  ownerID,
			StartsAt: Instant(date, r.Range.Start, loc),
			EndsAt:   Instant(date, r.Range.End, loc),
			Kind:     r.Kind,
			Title:    r.Title,
			Notes:    r.Notes,
			IsAllDay: r.IsAllDay,
		})
	}
	return out
}
