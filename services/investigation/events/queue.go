// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides the bounded audit-event queue between the
// orchestrator and downstream consumers (case UI, SIEM forwarders).
//
// The queue is explicitly bounded and the backpressure policy is a
// configuration decision, not an accident: DropOldest keeps investigations
// moving at the cost of losing the oldest unconsumed events, Block keeps
// every event at the cost of stalling the producer.
package events

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies queue entries.
type EventType string

const (
	// TypePhaseTransition marks a state-machine phase change.
	TypePhaseTransition EventType = "phase_transition"

	// TypeDecision marks a confidence or safety decision.
	TypeDecision EventType = "decision"

	// TypeError marks a recorded (caught) failure.
	TypeError EventType = "error"
)

// Event is one queue entry.
type Event struct {
	Type            EventType      `json:"type"`
	InvestigationID string         `json:"investigation_id"`
	Phase           string         `json:"phase,omitempty"`
	Detail          string         `json:"detail,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Policy is the queue-full behavior.
type Policy int

const (
	// DropOldest evicts the oldest unconsumed event to admit the new one.
	// The producer never blocks. Default.
	DropOldest Policy = iota

	// Block makes Publish wait until a consumer frees a slot or the queue
	// is closed. No event is ever lost, but a slow consumer stalls the
	// investigation.
	Block
)

// DefaultCapacity bounds the queue when no capacity option is given.
const DefaultCapacity = 1024

// Queue is a bounded FIFO event queue.
//
// Thread Safety: Safe for concurrent producers and consumers.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    *list.List
	capacity int
	policy   Policy
	closed   bool

	dropped uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity bounds the queue at n events. Values < 1 are ignored.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n >= 1 {
			q.capacity = n
		}
	}
}

// WithPolicy selects the queue-full behavior.
func WithPolicy(p Policy) Option {
	return func(q *Queue) {
		q.policy = p
	}
}

// NewQueue creates a bounded event queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		items:    list.New(),
		capacity: DefaultCapacity,
		policy:   DropOldest,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Publish enqueues one event.
//
// Description:
//
//	Under DropOldest, a full queue evicts its oldest event and Publish
//	returns immediately. Under Block, Publish waits for space. Publishing
//	to a closed queue is a silent no-op so producers don't need shutdown
//	coordination.
//
// Outputs:
//
//	bool - False when the event was not enqueued (queue closed).
func (q *Queue) Publish(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	for q.items.Len() >= q.capacity {
		if q.policy == DropOldest {
			front := q.items.Front()
			q.items.Remove(front)
			q.dropped++
			if q.dropped == 1 || q.dropped%100 == 0 {
				slog.Warn("event queue full, dropping oldest events",
					slog.Uint64("dropped_total", q.dropped),
					slog.Int("capacity", q.capacity),
				)
			}
			break
		}
		q.notFull.Wait()
		if q.closed {
			return false
		}
	}

	q.items.PushBack(ev)
	q.notEmpty.Signal()
	return true
}

// Next dequeues the oldest event, blocking until one is available or the
// queue is closed.
//
// Outputs:
//
//	Event - The dequeued event. Zero-valued when ok is false.
//	bool - False when the queue is closed and drained.
func (q *Queue) Next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		if q.closed {
			return Event{}, false
		}
		q.notEmpty.Wait()
	}

	front := q.items.Front()
	q.items.Remove(front)
	q.notFull.Signal()
	return front.Value.(Event), true
}

// TryNext dequeues without blocking.
func (q *Queue) TryNext() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return Event{}, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	q.notFull.Signal()
	return front.Value.(Event), true
}

// Close marks the queue closed. Pending events remain consumable via Next
// and TryNext; new publishes are rejected. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Dropped returns how many events DropOldest has evicted.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
