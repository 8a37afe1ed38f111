package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tranqhq/tranq/internal/events"
	"github.com/tranqhq/tranq/internal/log"
	"github.com/tranqhq/tranq/internal/queue"
	"github.com/tranqhq/tranq/internal/txn"
)

// Options configures the timeout sweep.
type Options struct {
	// PollInterval is the pause between timeout sweeps.
	PollInterval time.Duration
	// ItemTimeout is the maximum age a transaction may wait in queue.
	ItemTimeout time.Duration
}

// DefaultOptions returns the stock sweep configuration.
func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
		ItemTimeout:  15 * time.Second,
	}
}

// Settlement is the journal record of one finished transaction.
type Settlement struct {
	ID         string
	Status     Status
	Payload    json.RawMessage
	EnqueuedAt time.Time
	SettledAt  time.Time
	LastError  string
}

// Status is a settlement outcome.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusAborted   Status = "aborted"
)

// Journal persists settlements. Failures are logged, never fatal; a nil
// Journal disables recording.
type Journal interface {
	Record(ctx context.Context, s Settlement) error
}

// Dispatcher owns the queue and drives the dequeue-execute-settle cycle.
type Dispatcher struct {
	q       *queue.Queue
	hub     *events.Hub
	journal Journal
	logger  *slog.Logger
	opts    Options

	mu        sync.Mutex
	open      bool
	stopped   bool
	closed    bool
	executing *queue.Item
	execCtx   context.Context

	done chan struct{}
}

// New creates an open, idle dispatcher publishing to hub. journal may be nil.
func New(hub *events.Hub, journal Journal, opts Options) *Dispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultOptions().ItemTimeout
	}
	return &Dispatcher{
		q:       queue.New(hub),
		hub:     hub,
		journal: journal,
		logger:  log.WithComponent("dispatch"),
		opts:    opts,
		open:    true,
		execCtx: context.Background(),
		done:    make(chan struct{}),
	}
}

// Submit enqueues a transaction and returns its identifier without waiting
// for execution. done, when non-nil, is invoked exactly once with the
// settlement. Fails with a forbidden Error while intake is closed; per the
// always-publish policy the rejection is also raised on the event hub.
func (d *Dispatcher) Submit(t txn.Transaction, done queue.DoneFunc) (string, error) {
	if t == nil {
		return "", fmt.Errorf("transaction is nil")
	}

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		e := errForbidden()
		d.hub.Publish(events.TypeError, errorEvent{Payload: t.Describe(), Kind: string(e.Kind), Error: e.Description})
		return "", e
	}

	id := uuid.NewString()
	it := queue.NewItem(id, t, done)
	if err := d.q.Enqueue(it); err != nil {
		d.mu.Unlock()
		return "", fmt.Errorf("enqueue transaction: %w", err)
	}
	d.mu.Unlock()

	d.logger.Debug("transaction submitted", "txn_id", id)
	d.maybeDispatch()
	return id, nil
}

// Transact submits a transaction and waits for its settlement. The wait is
// bounded by ctx; an expired ctx abandons the wait but does not cancel the
// transaction itself.
func (d *Dispatcher) Transact(ctx context.Context, t txn.Transaction) (any, error) {
	type settlement struct {
		result any
		err    error
	}
	ch := make(chan settlement, 1)

	if _, err := d.Submit(t, func(result any, err error) {
		ch <- settlement{result: result, err: err}
	}); err != nil {
		return nil, err
	}

	select {
	case s := <-ch:
		return s.result, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort removes one still-queued transaction and fails it with an aborted
// error. Returns false when the id is unknown, already executing, or already
// settled; that miss is benign and has no side effects.
func (d *Dispatcher) Abort(id string) bool {
	it, ok := d.q.RemoveByID(id)
	if !ok {
		return false
	}
	d.failRemoved(it, errAborted(), StatusAborted)
	return true
}

// AbortAll flushes the queue, failing every pending transaction with an
// aborted error. The in-flight transaction, if any, is not interrupted.
// Returns the number of aborted items.
func (d *Dispatcher) AbortAll() int {
	removed := d.q.RemoveAll()
	for _, it := range removed {
		d.failRemoved(it, errAborted(), StatusAborted)
	}
	return len(removed)
}

// SetStopped pauses or resumes dequeues. Submissions keep filling the queue
// while stopped; resuming immediately attempts a dispatch so the backlog
// drains.
func (d *Dispatcher) SetStopped(stopped bool) {
	d.mu.Lock()
	d.stopped = stopped
	d.mu.Unlock()

	d.logger.Info("dispatch pause toggled", "stopped", stopped)
	if !stopped {
		d.maybeDispatch()
	}
}

// SetOpen toggles intake. Closing intake only blocks future submissions;
// items already queued still drain normally.
func (d *Dispatcher) SetOpen(open bool) {
	d.mu.Lock()
	d.open = open
	d.mu.Unlock()

	d.logger.Info("intake toggled", "open", open)
}

// Start runs the timeout sweep until ctx is cancelled or Shutdown is called.
// This is a blocking call. The sweep timer is rescheduled only after each
// sweep completes, so sweeps never overlap.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	d.execCtx = ctx
	d.mu.Unlock()

	d.logger.Info("dispatcher started",
		"poll_interval", d.opts.PollInterval,
		"item_timeout", d.opts.ItemTimeout)
	defer d.logger.Info("dispatcher stopped")

	// Drain anything submitted before Start.
	d.maybeDispatch()

	timer := time.NewTimer(d.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Shutdown()
			return ctx.Err()
		case <-d.done:
			return nil
		case <-timer.C:
			d.sweep()
			timer.Reset(d.opts.PollInterval)
		}
	}
}

// Shutdown closes intake, aborts all queued transactions, and stops the
// sweep. Idempotent. The in-flight transaction, if any, runs to completion.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.open = false
	d.mu.Unlock()

	d.logger.Info("dispatcher shutting down")
	d.AbortAll()
	close(d.done)
}

// Queue exposes the read-only queue surface for observability callers.
func (d *Dispatcher) Queue() *queue.Queue {
	return d.q
}

// sweep evicts everything older than the item timeout as one batch.
func (d *Dispatcher) sweep() {
	d.hub.Publish(events.TypePoll, pollEvent{QueueLength: d.q.Len()})

	evicted := d.q.EvictExpired(d.opts.ItemTimeout)
	if len(evicted) == 0 {
		return
	}

	d.logger.Warn("evicted expired transactions", "count", len(evicted))
	e := errTimeout(d.opts.ItemTimeout)
	for _, it := range evicted {
		d.failRemoved(it, e, StatusTimedOut)
	}
}

// failRemoved settles an item that left the queue without executing.
func (d *Dispatcher) failRemoved(it *queue.Item, e *Error, status Status) {
	view := it.View()
	d.hub.Publish(events.TypeError, errorEvent{ID: it.ID, Payload: view.Payload, Kind: string(e.Kind), Error: e.Description})
	d.record(it, status, e.Description)
	it.Settle(nil, e)
}

// maybeDispatch claims the queue head if the dispatcher is idle and not
// stopped, and hands it to a runner goroutine.
func (d *Dispatcher) maybeDispatch() {
	if it := d.claimNext(); it != nil {
		go d.runLoop(it)
	}
}

// runLoop executes items one after another until the queue is empty or the
// dispatcher is stopped. The explicit loop is what keeps a long backlog from
// growing the stack: settling an item never recurses, it just claims the
// next head.
func (d *Dispatcher) runLoop(it *queue.Item) {
	for it != nil {
		d.execute(it)
		it = d.claimNext()
	}
}

// claimNext moves the queue head into the executing slot. Returns nil when
// busy, stopped, or empty. The executing slot is the serialization
// guarantee: while it is non-nil no other claim succeeds.
func (d *Dispatcher) claimNext() *queue.Item {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.executing != nil || d.stopped {
		return nil
	}
	it := d.q.DequeueHead()
	if it == nil {
		return nil
	}
	d.executing = it
	return it
}

// execute runs one transaction to settlement and clears the executing slot.
func (d *Dispatcher) execute(it *queue.Item) {
	view := it.View()
	d.hub.Publish(events.TypeExecuting, view)

	logger := log.WithTxn(it.ID)
	logger.Info("executing transaction")

	result, err := it.Txn.Execute(d.execContext())
	if err != nil {
		logger.Warn("transaction failed", "error", err)
		d.hub.Publish(events.TypeError, errorEvent{ID: it.ID, Payload: view.Payload, Error: err.Error()})
		d.record(it, StatusFailed, err.Error())
	} else {
		logger.Info("transaction succeeded")
		d.hub.Publish(events.TypeSuccess, successEvent{ID: it.ID, Payload: view.Payload, Result: result})
		d.record(it, StatusSucceeded, "")
	}

	it.Settle(result, err)

	d.mu.Lock()
	d.executing = nil
	d.mu.Unlock()
}

func (d *Dispatcher) execContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execCtx
}

func (d *Dispatcher) record(it *queue.Item, status Status, lastError string) {
	if d.journal == nil {
		return
	}
	s := Settlement{
		ID:         it.ID,
		Status:     status,
		Payload:    it.Txn.Describe(),
		EnqueuedAt: it.EnqueuedAt,
		SettledAt:  time.Now().UTC(),
		LastError:  lastError,
	}
	if err := d.journal.Record(d.execContext(), s); err != nil {
		d.logger.Error("failed to record settlement", "txn_id", it.ID, "error", err)
	}
}

// errorEvent is the payload of txn.error events. ID is empty for forbidden
// submissions, which never received one.
type errorEvent struct {
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Error   string          `json:"error"`
}

// successEvent is the payload of txn.success events.
type successEvent struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Result  any             `json:"result,omitempty"`
}

// pollEvent is the payload of queue.poll events.
type pollEvent struct {
	QueueLength int `json:"queue_length"`
}
