package ledger

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/tz"
)

type MemberAvailability struct {
	UserID   string            `json:"user_id"`
	Timezone string            `json:"timezone"`
	Days     []DayAvailability `json:"days"`
}

// DaySummary counts, for one date in the project's zone, the active members
// holding at least one occupying slot that day.
type DaySummary struct {
	Date        civil.Date `json:"date"`
	BusyMembers []string   `json:"busy_members"`
	FreeMembers []string   `json:"free_members"`
}

type ProjectView struct {
	ProjectID string               `json:"project_id"`
	Timezone  string               `json:"timezone"`
	Members   []MemberAvailability `json:"members"`
	Summary   []DaySummary         `json:"summary"`
}

// ProjectAvailability is the "who is free" view of a project: every active
// member's calendar in their own zone plus a per-date summary in the
// project's zone.
func (l *Ledger) ProjectAvailability(ctx context.Context, projectID string, start, end civil.Date) (*ProjectView, error) {
	if err := checkSpan(start, end); err != nil {
		return nil, err
	}
	project, err := l.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	projectLoc, err := tz.LoadZone(project.Timezone)
	if err != nil {
		return nil, err
	}
	members, err := l.store.ListActiveMembers(ctx, projectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", projectID).Msg("ProjectAvailability members failed")
		return nil, err
	}

	view := &ProjectView{ProjectID: projectID, Timezone: project.Timezone, Members: []MemberAvailability{}}
	ownerIDs := make([]string, 0, len(members))
	for _, m := range members {
		zone, err := l.zones.Zone(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		days, err := l.GetRange(ctx, m.UserID, start, end, Options{})
		if err != nil {
			return nil, err
		}
		view.Members = append(view.Members, MemberAvailability{UserID: m.UserID, Timezone: zone, Days: days})
		ownerIDs = append(ownerIDs, m.UserID)
	}

	from, to := tz.RangeBounds(start, end, projectLoc)
	occupying, err := l.Conflicts(ctx, ownerIDs, from, to, "")
	if err != nil {
		return nil, err
	}
	view.Summary = summarize(start, end, projectLoc, ownerIDs, occupying)
	return view, nil
}

func summarize(start, end civil.Date, loc *time.Location, ownerIDs []string, occupying []model.AvailabilitySlot) []DaySummary {
	out := make([]DaySummary, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		dayStart, dayEnd := tz.DayBounds(d, loc)
		busy := map[string]bool{}
		for _, s := range occupying {
			if s.Source == model.SourceImported {
				continue
			}
			if s.StartsAt.Before(dayEnd) && s.EndsAt.After(dayStart) {
				busy[s.OwnerID] = true
			}
		}
		free := []string{}
		for _, id := range ownerIDs {
			if !busy[id] {
				free = append(free, id)
			}
		}
		sort.Strings(free)
		out = append(out, DaySummary{Date: d, BusyMembers: sortedKeys(busy), FreeMembers: free})
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
