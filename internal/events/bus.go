/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

// EventType enumerates event categories.
type EventType string

const (
	EventPlaylistBuilt   EventType = "playlist.built"
	EventItemStarted     EventType = "item.started"
	EventItemPlayed      EventType = "item.played"
	EventItemRequested   EventType = "item.requested" // asks a remote playback engine to play
	EventItemCompleted   EventType = "item.completed" // reported by a remote playback engine
	EventPlanningStopped EventType = "planning.stopped"
	EventStateReset      EventType = "state.reset"
	EventCutover         EventType = "cutover"
)

// Types lists every event type, for subscribers that want all of them.
var Types = []EventType{
	EventPlaylistBuilt,
	EventItemStarted,
	EventItemPlayed,
	EventItemRequested,
	EventItemCompleted,
	EventPlanningStopped,
	EventStateReset,
	EventCutover,
}

// Payload generic event payload.
type Payload map[string]any

// EntryPayload describes a playlist entry on the wire.
func EntryPayload(e models.PlaylistEntry) Payload {
	return Payload{
		"path":             e.Path,
		"title":            e.Title(),
		"category":         string(e.Category),
		"schedule":         e.Schedule,
		"starts_at":        e.StartsAt,
		"duration_seconds": int(e.Duration.Seconds()),
	}
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Broker is satisfied by the in-process bus and the remote transports.
type Broker interface {
	Subscribe(EventType) Subscriber
	Publish(EventType, Payload)
	Unsubscribe(EventType, Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes and closes the subscriber. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}
