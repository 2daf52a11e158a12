/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishDeliversByType(t *testing.T) {
	bus := NewBus()
	played := bus.Subscribe(EventItemPlayed)
	built := bus.Subscribe(EventPlaylistBuilt)

	bus.Publish(EventItemPlayed, Payload{"path": "/shows/a.mp4"})

	select {
	case p := <-played:
		if p["path"] != "/shows/a.mp4" {
			t.Fatalf("unexpected payload: %v", p)
		}
	default:
		t.Fatal("expected item.played delivery")
	}
	select {
	case p := <-built:
		t.Fatalf("unexpected delivery to playlist.built subscriber: %v", p)
	default:
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventCutover)
	bus.Unsubscribe(EventCutover, sub)
	bus.Unsubscribe(EventCutover, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed subscriber")
	}
	bus.Publish(EventCutover, Payload{})
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventItemStarted)
	for i := 0; i < 100; i++ {
		bus.Publish(EventItemStarted, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer, got %d/%d", len(sub), cap(sub))
	}
}
