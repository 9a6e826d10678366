// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"fmt"
	"testing"
	"time"
)

func TestDropOldestPolicy(t *testing.T) {
	q := NewQueue(WithCapacity(3), WithPolicy(DropOldest))
	defer q.Close()

	for i := 0; i < 5; i++ {
		ok := q.Publish(Event{Type: TypePhaseTransition, Detail: fmt.Sprintf("ev-%d", i)})
		if !ok {
			t.Fatalf("publish %d rejected", i)
		}
	}

	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}

	// Oldest two were evicted; ev-2 is now the front.
	ev, ok := q.TryNext()
	if !ok || ev.Detail != "ev-2" {
		t.Errorf("front = (%v, %v), want ev-2", ev.Detail, ok)
	}
}

func TestBlockPolicy(t *testing.T) {
	q := NewQueue(WithCapacity(1), WithPolicy(Block))
	defer q.Close()

	if !q.Publish(Event{Detail: "first"}) {
		t.Fatal("first publish rejected")
	}

	unblocked := make(chan struct{})
	go func() {
		q.Publish(Event{Detail: "second"}) // blocks until a consumer frees a slot
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("publish returned while queue was full")
	case <-time.After(30 * time.Millisecond):
	}

	if ev, ok := q.TryNext(); !ok || ev.Detail != "first" {
		t.Fatalf("TryNext = (%v, %v), want first", ev.Detail, ok)
	}

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("blocked publisher never unblocked after consume")
	}

	if q.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0 under Block policy", q.Dropped())
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	got := make(chan Event, 1)
	go func() {
		ev, ok := q.Next()
		if ok {
			got <- ev
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Publish(Event{Detail: "late arrival"})

	select {
	case ev := <-got:
		if ev.Detail != "late arrival" {
			t.Errorf("Detail = %q", ev.Detail)
		}
	case <-time.After(time.Second):
		t.Fatal("Next never returned after publish")
	}
}

func TestCloseSemantics(t *testing.T) {
	q := NewQueue()
	q.Publish(Event{Detail: "pending"})
	q.Close()

	// Publishing after close is a rejected no-op.
	if q.Publish(Event{Detail: "too late"}) {
		t.Error("publish succeeded on closed queue")
	}

	// Pending events stay consumable.
	if ev, ok := q.Next(); !ok || ev.Detail != "pending" {
		t.Errorf("Next = (%v, %v), want pending", ev.Detail, ok)
	}

	// Drained and closed: Next reports done instead of blocking.
	if _, ok := q.Next(); ok {
		t.Error("Next = ok on drained closed queue")
	}

	// Close is idempotent.
	q.Close()
}

func TestPublishStampsMissingTimestamp(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	q.Publish(Event{Detail: "unstamped"})
	ev, ok := q.TryNext()
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp was not stamped on publish")
	}
}
