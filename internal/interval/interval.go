// Package interval implements arithmetic over wall-clock ranges expressed as
// minutes since local midnight.
package interval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// DayMinutes is the exclusive upper bound of a minute-of-day value. "24:00"
// parses to DayMinutes and is only meaningful as an end.
const DayMinutes = 24 * 60

// gapTolerance is the largest gap, in minutes, that Merge still coalesces.
const gapTolerance = 1

// Range is a half-open [Start, End) interval of minutes since midnight.
type Range struct {
	Start int
	End   int
}

// Spec is the textual "HH:MM" form of a Range as it travels over the wire.
type Spec struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Status string

const (
	StatusFree    Status = "free"
	StatusPartial Status = "partial"
	StatusBusy    Status = "busy"
)

func (r Range) Valid() bool {
	return r.Start >= 0 && r.End <= DayMinutes && r.Start < r.End
}

func (r Range) Minutes() int {
	if !r.Valid() {
		return 0
	}
	return r.End - r.Start
}

// Overlaps reports whether r and o share at least one minute.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r Range) Spec() Spec {
	return Spec{Start: FormatClock(r.Start), End: FormatClock(r.End)}
}

func (r Range) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Spec())
}

func (r *Range) UnmarshalJSON(b []byte) error {
	var s Spec
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s.Start, s.End)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseClock parses "HH:MM" (or "HH:MM:SS", seconds discarded) into minutes
// since midnight. "24:00" is accepted.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
	}
	if len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
		}
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("%w: clock %q", model.ErrInvalidRange, s)
	}
	return h*60 + m, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Parse builds a Range from two clock strings. It fails with
// model.ErrInvalidRange when either side is malformed or start >= end.
func Parse(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	r := Range{Start: s, End: e}
	if !r.Valid() {
		return Range{}, fmt.Errorf("%w: %s is empty or reversed", model.ErrInvalidRange, r)
	}
	return r, nil
}

// Merge returns the minimal sorted, non-overlapping cover of ranges. Invalid
// entries are dropped and gaps of at most one minute are closed.
func Merge(ranges []Range) []Range {
	valid := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return []Range{}
	}
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start == valid[j].Start {
			return valid[i].End < valid[j].End
		}
		return valid[i].Start < valid[j].Start
	})

	out := []Range{valid[0]}
	for _, r := range valid[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+gapTolerance {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// MergeSpecs parses and merges textual ranges, silently skipping any entry
// that does not parse.
func MergeSpecs(specs []Spec) []Range {
	ranges := make([]Range, 0, len(specs))
	for _, s := range specs {
		r, err := Parse(s.Start, s.End)
		if err != nil {
			continue
		}
		ranges = append(ranges, r)
	}
	return Merge(ranges)
}

// Subtract removes cut from every range, splitting straddling ranges.
func Subtract(ranges []Range, cut Range) []Range {
	out := make([]Range, 0, len(ranges)+1)
	for _, r := range ranges {
		if !r.Valid() {
			continue
		}
		if !cut.Valid() || !r.Overlaps(cut) {
			out = append(out, r)
			continue
		}
		if r.Start < cut.Start {
			out = append(out, Range{Start: r.Start, End: cut.Start})
		}
		if r.End > cut.End {
			out = append(out, Range{Start: cut.End, End: r.End})
		}
	}
	return out
}

func clamp(ranges []Range, windowStart, windowEnd int) []Range {
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < windowStart {
			r.Start = windowStart
		}
		if r.End > windowEnd {
			r.End = windowEnd
		}
		if r.Start < r.End {
			out = append(out, r)
		}
	}
	return out
}

// ComplementWithinWindow returns the parts of [windowStart, windowEnd) not
// covered by ranges.
func ComplementWithinWindow(ranges []Range, windowStart, windowEnd int) []Range {
	window := Range{Start: windowStart, End: windowEnd}
	if !window.Valid() {
		return []Range{}
	}
	merged := Merge(clamp(ranges, windowStart, windowEnd))

	gaps := make([]Range, 0, len(merged)+1)
	cursor := windowStart
	for _, r := range merged {
		if r.Start > cursor {
			gaps = append(gaps, Range{Start: cursor, End: r.Start})
		}
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < windowEnd {
		gaps = append(gaps, Range{Start: cursor, End: windowEnd})
	}
	return gaps
}

// Classify reports how much of [dayStart, dayEnd) ranges occupy. Ranges
// falling entirely outside the window do not count.
func Classify(ranges []Range, dayStart, dayEnd int) Status {
	merged := Merge(clamp(ranges, dayStart, dayEnd))
	if len(merged) == 0 {
		return StatusFree
	}
	for _, r := range merged {
		if r.Start <= dayStart && r.End >= dayEnd {
			return StatusBusy
		}
	}
	return StatusPartial
}

// TotalMinutes is the covered time of the merged ranges.
func TotalMinutes(ranges []Range) int {
	total := 0
	for _, r := range Merge(ranges) {
		total += r.Minutes()
	}
	return total
}
