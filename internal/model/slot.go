package model

import "time"

type SlotKind string

const (
	KindAvailable SlotKind = "available"
	KindBusy      SlotKind = "busy"
	KindTentative SlotKind = "tentative"
)

func (k SlotKind) Valid() bool {
	switch k {
	case KindAvailable, KindBusy, KindTentative:
		return true
	}
	return false
}

// Occupies reports whether a slot of this kind makes its owner unavailable.
func (k SlotKind) Occupies() bool { return k == KindBusy || k == KindTentative }

// SlotSource is the provenance tag that decides which writer owns a slot.
type SlotSource string

const (
	SourceManual    SlotSource = "manual"
	SourceRehearsal SlotSource = "rehearsal"
	SourceImported  SlotSource = "imported"
)

func (s SlotSource) Valid() bool {
	switch s {
	case SourceManual, SourceRehearsal, SourceImported:
		return true
	}
	return false
}

// AvailabilitySlot is one interval in an owner's ledger, stored as a UTC
// instant pair. ExternalRef is an opaque key (a rehearsal id, an import
// event id) shared by every slot one writer owns collectively.
type AvailabilitySlot struct {
	ID          string     `db:"id"           json:"id"`
	OwnerID     string     `db:"owner_id"     json:"owner_id"`
	StartsAt    time.Time  `db:"starts_at"    json:"starts_at"`
	EndsAt      time.Time  `db:"ends_at"      json:"ends_at"`
	Kind        SlotKind   `db:"kind"         json:"kind"`
	Source      SlotSource `db:"source"       json:"source"`
	ExternalRef *string    `db:"external_ref" json:"external_ref,omitempty"`
	Title       *string    `db:"title"        json:"title,omitempty"`
	Notes       *string    `db:"notes"        json:"notes,omitempty"`
	IsAllDay    bool       `db:"is_all_day"   json:"is_all_day"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
}

// Ref returns ExternalRef or "" when unset.
func (s AvailabilitySlot) Ref() string {
	if s.ExternalRef == nil {
		return ""
	}
	return *s.ExternalRef
}

// SlotQuery selects slots overlapping [From, To) for a set of owners.
// Empty Sources means every source.
type SlotQuery struct {
	OwnerIDs []string
	From     time.Time
	To       time.Time
	Sources  []SlotSource
}
