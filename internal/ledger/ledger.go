// Package ledger reads and writes members' availability slots in their own
// local calendar.
package ledger

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/interval"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/tz"
)

// MaxRangeDays bounds a single GetRange call.
const MaxRangeDays = 92

type Ledger struct {
	store db.Store
	zones ZoneResolver
}

func New(store db.Store, zones ZoneResolver) *Ledger {
	return &Ledger{store: store, zones: zones}
}

// ManualRange is one wall-clock entry a member submits for a day. AllDay
// ignores Start and End. An empty Kind means busy.
type ManualRange struct {
	Start  string         `json:"start"`
	End    string         `json:"end"`
	Kind   model.SlotKind `json:"kind"`
	Title  *string        `json:"title,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
	AllDay bool           `json:"all_day"`
}

type Options struct {
	IncludeImported bool
	WithSlots       bool
}

// DayAvailability is one local date of a member's calendar. Ranges covers
// every slot, Busy only those that occupy the member, Free is what Busy
// leaves of the day.
type DayAvailability struct {
	Date   civil.Date       `json:"date"`
	Status interval.Status  `json:"status"`
	Ranges []interval.Range `json:"ranges"`
	Busy   []interval.Range `json:"busy"`
	Free   []interval.Range `json:"free"`
	Slots  []tz.LocalSlot   `json:"slots,omitempty"`
}

// location resolves the owner's zone. Unknown owners and zones fail.
func (l *Ledger) location(ctx context.Context, ownerID string) (*time.Location, error) {
	zone, err := l.zones.Zone(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return tz.LoadZone(zone)
}

func toLocalRange(i int, mr ManualRange) (tz.LocalRange, error) {
	kind := mr.Kind
	if kind == "" {
		kind = model.KindBusy
	}
	if !kind.Valid() {
		return tz.LocalRange{}, fmt.Errorf("%w: range %d: unknown kind %q", model.ErrInvalidRange, i, mr.Kind)
	}
	lr := tz.LocalRange{Kind: kind, Title: mr.Title, Notes: mr.Notes, IsAllDay: mr.AllDay}
	if mr.AllDay {
		lr.Range = interval.Range{Start: 0, End: interval.DayMinutes}
		return lr, nil
	}
	r, err := interval.Parse(mr.Start, mr.End)
	if err != nil {
		return tz.LocalRange{}, fmt.Errorf("range %d: %w", i, err)
	}
	lr.Range = r
	return lr, nil
}

// mergeByKind coalesces ranges of the same kind. A merged range keeps the
// metadata of the first input range it absorbed.
func mergeByKind(ranges []tz.LocalRange) []tz.LocalRange {
	var kinds []model.SlotKind
	byKind := map[model.SlotKind][]tz.LocalRange{}
	for _, r := range ranges {
		if _, seen := byKind[r.Kind]; !seen {
			kinds = append(kinds, r.Kind)
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	out := make([]tz.LocalRange, 0, len(ranges))
	for _, kind := range kinds {
		group := byKind[kind]
		plain := make([]interval.Range, len(group))
		for i, r := range group {
			plain[i] = r.Range
		}
		for _, merged := range interval.Merge(plain) {
			lr := tz.LocalRange{Range: merged, Kind: kind}
			for _, r := range group {
				if r.Range.Start >= merged.Start && r.Range.End <= merged.End {
					lr.Title, lr.Notes = r.Title, r.Notes
					break
				}
			}
			lr.IsAllDay = merged.Start == 0 && merged.End == interval.DayMinutes
			out = append(out, lr)
		}
	}
	return out
}

// SetManual replaces the owner's manual slots on date with ranges. Every
// range must be valid; an empty list clears the day.
func (l *Ledger) SetManual(ctx context.Context, ownerID string, date civil.Date, ranges []ManualRange) ([]model.AvailabilitySlot, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("%w: date %s", model.ErrInvalidRange, date)
	}
	loc, err := l.location(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	local := make([]tz.LocalRange, 0, len(ranges))
	for i, mr := range ranges {
		lr, err := toLocalRange(i, mr)
		if err != nil {
			return nil, err
		}
		local = append(local, lr)
	}

	slots := tz.LocalToSlots(ownerID, date, mergeByKind(local), loc)
	for i := range slots {
		slots[i].Source = model.SourceManual
	}

	dayStart, dayEnd := tz.DayBounds(date, loc)
	if err := l.store.ReplaceManualSlots(ctx, ownerID, dayStart, dayEnd, slots); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Str("date", date.String()).Msg("SetManual failed")
		return nil, err
	}
	return slots, nil
}

// DeleteManual clears the owner's manual slots on date. Rehearsal and
// imported slots are untouched.
func (l *Ledger) DeleteManual(ctx context.Context, ownerID string, date civil.Date) (int64, error) {
	if !date.IsValid() {
		return 0, fmt.Errorf("%w: date %s", model.ErrInvalidRange, date)
	}
	loc, err := l.location(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	dayStart, dayEnd := tz.DayBounds(date, loc)
	n, err := l.store.DeleteManualSlots(ctx, ownerID, dayStart, dayEnd)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Str("date", date.String()).Msg("DeleteManual failed")
	}
	return n, err
}

func checkSpan(start, end civil.Date) error {
	if !start.IsValid() || !end.IsValid() {
		return fmt.Errorf("%w: invalid date", model.ErrInvalidRange)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s is before %s", model.ErrInvalidRange, end, start)
	}
	if days := end.DaysSince(start) + 1; days > MaxRangeDays {
		return fmt.Errorf("%w: %d days exceeds %d", model.ErrInvalidRange, days, MaxRangeDays)
	}
	return nil
}

func sources(includeImported bool) []model.SlotSource {
	out := []model.SlotSource{model.SourceManual, model.SourceRehearsal}
	if includeImported {
		out = append(out, model.SourceImported)
	}
	return out
}

// GetRange returns one entry per local date from start to end inclusive.
func (l *Ledger) GetRange(ctx context.Context, ownerID string, start, end civil.Date, opts Options) ([]DayAvailability, error) {
	if err := checkSpan(start, end); err != nil {
		return nil, err
	}
	loc, err := l.location(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	from, to := tz.RangeBounds(start, end, loc)
	slots, err := l.store.ListSlots(ctx, model.SlotQuery{
		OwnerIDs: []string{ownerID},
		From:     from,
		To:       to,
		Sources:  sources(opts.IncludeImported),
	})
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("GetRange failed")
		return nil, err
	}
	return buildDays(start, end, tz.SlotsToLocal(slots, loc), opts.WithSlots), nil
}

func buildDays(start, end civil.Date, local []tz.LocalSlot, withSlots bool) []DayAvailability {
	byDate := map[civil.Date][]tz.LocalSlot{}
	for _, ls := range local {
		byDate[ls.Date] = append(byDate[ls.Date], ls)
	}

	days := make([]DayAvailability, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, buildDay(d, byDate[d], withSlots))
	}
	return days
}

func buildDay(date civil.Date, slots []tz.LocalSlot, withSlots bool) DayAvailability {
	all := make([]interval.Range, 0, len(slots))
	busy := make([]interval.Range, 0, len(slots))
	for _, ls := range slots {
		all = append(all, ls.Range)
		if ls.Kind != model.KindAvailable {
			busy = append(busy, ls.Range)
		}
	}
	day := DayAvailability{
		Date:   date,
		Ranges: interval.Merge(all),
		Busy:   interval.Merge(busy),
		Free:   interval.ComplementWithinWindow(busy, 0, interval.DayMinutes),
		Status: interval.Classify(busy, 0, interval.DayMinutes),
	}
	if withSlots {
		day.Slots = slots
		if day.Slots == nil {
			day.Slots = []tz.LocalSlot{}
		}
	}
	return day
}

// Conflicts lists the occupying slots of owners that overlap [from, to),
// leaving out slots booked under excludeRef.
func (l *Ledger) Conflicts(ctx context.Context, ownerIDs []string, from, to time.Time, excludeRef string) ([]model.AvailabilitySlot, error) {
	slots, err := l.store.ListSlots(ctx, model.SlotQuery{OwnerIDs: ownerIDs, From: from, To: to})
	if err != nil {
		log.Error().Err(err).Msg("Conflicts failed")
		return nil, err
	}
	out := []model.AvailabilitySlot{}
	for _, s := range slots {
		if !s.Kind.Occupies() {
			continue
		}
		if excludeRef != "" && s.Source == model.SourceRehearsal && s.Ref() == excludeRef {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
