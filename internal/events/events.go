// Package events announces rehearsal slot changes to interested clients.
package events

import (
	"context"
	"fmt"
	"time"
)

type Type string

const (
	RehearsalBooked  Type = "rehearsal.booked"
	RehearsalCleared Type = "rehearsal.cleared"
)

type Event struct {
	Type        Type      `json:"type"`
	ProjectID   string    `json:"project_id"`
	RehearsalID string    `json:"rehearsal_id"`
	Members     []string  `json:"members"`
	Booked      int       `json:"booked"`
	Removed     int       `json:"removed"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Topic is the MQTT topic an event is published on.
func Topic(e Event) string {
	return fmt.Sprintf("troupe/projects/%s/rehearsals/%s", e.ProjectID, e.RehearsalID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
