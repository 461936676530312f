// Package tz converts between a member's wall clock and UTC instants.
package tz

import (
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

var zones sync.Map // string -> *time.Location

// LoadZone resolves an IANA zone name. Empty and "Local" are rejected so a
// missing profile zone never silently becomes the host zone.
func LoadZone(name string) (*time.Location, error) {
	if cached, ok := zones.Load(name); ok {
		return cached.(*time.Location), nil
	}
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", model.ErrBadTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrBadTimezone, name, err)
	}
	zones.Store(name, loc)
	return loc, nil
}

// LocalToUTC interprets date and clock as wall-clock time in zone and returns
// the UTC calendar date and time of day of that instant.
func LocalToUTC(date civil.Date, clock civil.Time, zone string) (civil.Date, civil.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return civil.Date{}, civil.Time{}, err
	}
	t := civil.DateTime{Date: date, Time: clock}.In(loc).UTC()
	return civil.DateOf(t), civil.TimeOf(t), nil
}

// UTCToLocal is the inverse of LocalToUTC.
func UTCToLocal(date civil.Date, clock civil.Time, zone string) (civil.Date, civil.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return civil.Date{}, civil.Time{}, err
	}
	t := civil.DateTime{Date: date, Time: clock}.In(time.UTC).In(loc)
	return civil.DateOf(t), civil.TimeOf(t), nil
}

// Instant returns the UTC instant of minute-of-day on date in loc. A minute
// of 1440 is the following local midnight.
func Instant(date civil.Date, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, minute, 0, 0, loc).UTC()
}

// DayBounds returns the UTC instants of the start of date and of the next
// day in loc. On DST transition days the span is not 24h.
func DayBounds(date civil.Date, loc *time.Location) (time.Time, time.Time) {
	return Instant(date, 0, loc), Instant(date.AddDays(1), 0, loc)
}

// RangeBounds spans the local dates from..to inclusive.
func RangeBounds(from, to civil.Date, loc *time.Location) (time.Time, time.Time) {
	start, _ := DayBounds(from, loc)
	_, end := DayBounds(to, loc)
	return start, end
}

// MinuteOfDay is the wall-clock minute of t in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	l := t.In(loc)
	return l.Hour()*60 + l.Minute()
}
