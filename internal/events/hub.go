package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub fans events out to in-process subscribers of a project, such as
// websocket clients. A subscriber that falls behind misses events rather
// than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[string]map[*subscription]struct{}{}, buffer: buffer}
}

// Subscribe registers for events of projectID. The returned func
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(projectID string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = map[*subscription]struct{}{}
	}
	h.subs[projectID][sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[projectID], sub)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers reports how many subscribers projectID has.
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[e.ProjectID] {
		select {
		case sub.ch <- e:
		default:
			log.Warn().Str("project_id", e.ProjectID).Str("type", string(e.Type)).Msg("subscriber too slow, event dropped")
		}
	}
	return nil
}

type multiPublisher []Publisher

// Multi publishes every event to each of pubs in turn. Every publisher is
// tried; their errors are joined.
func Multi(pubs ...Publisher) Publisher {
	return multiPublisher(pubs)
}

func (m multiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
