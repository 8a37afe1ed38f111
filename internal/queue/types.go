package queue

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tranqhq/tranq/internal/txn"
)

// DoneFunc is a one-shot completion callback, invoked exactly once with the
// transaction's settlement: (result, nil) on success, (nil, err) otherwise.
type DoneFunc func(result any, err error)

// Item is one queued unit of work plus its metadata. The queue exclusively
// owns an Item while queued; ownership transfers to the dispatcher's
// executing slot on dequeue.
type Item struct {
	ID         string
	EnqueuedAt time.Time
	Txn        txn.Transaction

	done DoneFunc
	once sync.Once
}

// NewItem builds an Item. done may be nil for fire-and-forget submissions.
func NewItem(id string, t txn.Transaction, done DoneFunc) *Item {
	return &Item{ID: id, Txn: t, done: done}
}

// Settle invokes the completion callback. Safe to call more than once; only
// the first call is delivered.
func (it *Item) Settle(result any, err error) {
	it.once.Do(func() {
		if it.done != nil {
			it.done(result, err)
		}
	})
}

// ItemView is a read-only projection of a queued item.
type ItemView struct {
	ID         string          `json:"id"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// View returns the item's observability projection.
func (it *Item) View() ItemView {
	return ItemView{
		ID:         it.ID,
		EnqueuedAt: it.EnqueuedAt,
		Payload:    it.Txn.Describe(),
	}
}

func views(items []*Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, it.View())
	}
	return out
}
