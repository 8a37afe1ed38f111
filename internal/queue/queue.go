// Package queue implements the in-memory FIFO holding pending transactions.
//
// Insertion order is execution order. The queue never invokes completion
// callbacks itself: bulk removals (eviction, flush) and targeted removals
// return the removed items so the caller can settle them as one batch.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/tranqhq/tranq/internal/events"
)

// Publisher receives the queue's structural change notifications.
type Publisher interface {
	Publish(eventType string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

// Queue is an ordered sequence of Items. All mutation goes through the
// methods below; callers only ever see read-only ItemViews.
type Queue struct {
	mu    sync.Mutex
	items []*Item
	pub   Publisher
}

func New(pub Publisher) *Queue {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Queue{pub: pub}
}

// Enqueue appends an item to the tail and stamps its enqueue time. There is
// no capacity bound. Emits txn.submitted then queue.change.
func (q *Queue) Enqueue(it *Item) error {
	if it == nil {
		return fmt.Errorf("item is nil")
	}
	if it.ID == "" {
		return fmt.Errorf("item id is empty")
	}
	if it.Txn == nil {
		return fmt.Errorf("item transaction is nil")
	}

	q.mu.Lock()
	for _, existing := range q.items {
		if existing.ID == it.ID {
			q.mu.Unlock()
			return fmt.Errorf("duplicate item id %q", it.ID)
		}
	}
	it.EnqueuedAt = time.Now().UTC()
	q.items = append(q.items, it)
	view := it.View()
	q.mu.Unlock()

	q.pub.Publish(events.TypeSubmitted, view)
	q.pub.Publish(events.TypeChange, nil)
	return nil
}

// DequeueHead removes and returns the head item. Returns nil on an empty
// queue with no side effects.
func (q *Queue) DequeueHead() *Item {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	it := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	q.pub.Publish(events.TypeChange, nil)
	return it
}

// EvictExpired removes every item older than maxAge in one sweep, preserving
// the relative order of survivors. The whole batch is announced in a single
// queue.timeout event so listeners can process it atomically. Returns the
// evicted items for the caller to settle; no-op (and no events) when nothing
// qualifies.
func (q *Queue) EvictExpired(maxAge time.Duration) []*Item {
	now := time.Now().UTC()

	q.mu.Lock()
	var evicted []*Item
	survivors := q.items[:0]
	for _, it := range q.items {
		if now.Sub(it.EnqueuedAt) > maxAge {
			evicted = append(evicted, it)
		} else {
			survivors = append(survivors, it)
		}
	}
	q.items = survivors
	q.mu.Unlock()

	if len(evicted) == 0 {
		return nil
	}

	q.pub.Publish(events.TypeTimeout, removalEvent{Reason: "timeout", Count: len(evicted), Items: views(evicted)})
	q.pub.Publish(events.TypeChange, nil)
	return evicted
}

// RemoveAll empties the queue unconditionally, announcing one bulk
// queue.removed event. Returns the removed items; no-op when already empty.
func (q *Queue) RemoveAll() []*Item {
	q.mu.Lock()
	removed := q.items
	q.items = nil
	q.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	q.pub.Publish(events.TypeRemoved, removalEvent{Reason: "aborted", Count: len(removed), Items: views(removed)})
	q.pub.Publish(events.TypeChange, nil)
	return removed
}

// RemoveByID removes a single matching item. A miss is benign: it means the
// item already completed or was already removed, and returns (nil, false)
// with no side effects.
func (q *Queue) RemoveByID(id string) (*Item, bool) {
	q.mu.Lock()
	var found *Item
	for i, it := range q.items {
		if it.ID == id {
			found = it
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if found == nil {
		return nil, false
	}

	q.pub.Publish(events.TypeRemoved, removalEvent{Reason: "aborted", Count: 1, Items: []ItemView{found.View()}})
	q.pub.Publish(events.TypeChange, nil)
	return found, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns read-only projections of all queued items, head first.
func (q *Queue) Snapshot() []ItemView {
	q.mu.Lock()
	defer q.mu.Unlock()
	return views(q.items)
}

// removalEvent is the payload of queue.timeout and queue.removed events.
type removalEvent struct {
	Reason string     `json:"reason"`
	Count  int        `json:"count"`
	Items  []ItemView `json:"items"`
}
