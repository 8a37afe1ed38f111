package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tranqhq/tranq/internal/events"
	"github.com/tranqhq/tranq/internal/log"
	"github.com/tranqhq/tranq/internal/txn"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func newTestDispatcher(opts Options) (*Dispatcher, *events.Hub) {
	hub := events.NewHub(256)
	return New(hub, nil, opts), hub
}

// blockingTxn executes when released and records completion.
type blockingTxn struct {
	name    string
	release chan struct{}
	started chan struct{}
}

func newBlockingTxn(name string) *blockingTxn {
	return &blockingTxn{
		name:    name,
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
}

func (b *blockingTxn) Execute(ctx context.Context) (any, error) {
	close(b.started)
	<-b.release
	return b.name, nil
}

func (b *blockingTxn) Describe() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"type":"blocking","name":%q}`, b.name))
}

func TestFIFOExecutionOrder(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	// Pause dequeues so the backlog builds in submission order.
	d.SetStopped(true)

	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("txn-%02d", i)
		wg.Add(1)
		_, err := d.Submit(txn.Func{Name: name, Run: func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}}, func(any, error) { wg.Done() })
		if err != nil {
			t.Fatalf("Submit %s: %v", name, err)
		}
	}

	d.SetStopped(false)
	wg.Wait()

	for i, name := range order {
		want := fmt.Sprintf("txn-%02d", i)
		if name != want {
			t.Fatalf("execution order broken at %d: got %q want %q (full order %v)", i, name, want, order)
		}
	}
}

func TestSerializedExecution(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})

	var inFlight atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		_, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) {
			n := inFlight.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil, nil
		}}, func(any, error) { wg.Done() })
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("serialization violated: %d transactions in flight at once", maxSeen.Load())
	}
}

func TestClosedIntakeRejects(t *testing.T) {
	t.Parallel()

	d, hub := newTestDispatcher(Options{})
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Queue one item behind the pause, then close intake.
	d.SetStopped(true)
	var settled sync.WaitGroup
	settled.Add(1)
	if _, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return "ok", nil }},
		func(any, error) { settled.Done() }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	d.SetOpen(false)

	_, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return nil, nil }}, nil)
	if !IsKind(err, KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if d.State().QueueLength != 1 {
		t.Fatalf("rejected submission must not enter the queue, length %d", d.State().QueueLength)
	}

	// The rejection is also published on the error channel.
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.TypeError {
				goto published
			}
		case <-deadline:
			t.Fatal("forbidden rejection was not published as txn.error")
		}
	}
published:

	// Items already queued still drain.
	d.SetStopped(false)
	settled.Wait()
}

func TestEvictionCorrectness(t *testing.T) {
	t.Parallel()

	d, hub := newTestDispatcher(Options{ItemTimeout: 10 * time.Millisecond})
	ch, cancel := hub.Subscribe()
	defer cancel()

	d.SetStopped(true)

	errs := make(map[string]chan error)
	submit := func(key string) {
		errCh := make(chan error, 1)
		errs[key] = errCh
		if _, err := d.Submit(txn.Func{Name: key, Run: func(ctx context.Context) (any, error) { return nil, nil }},
			func(result any, err error) { errCh <- err }); err != nil {
			t.Fatalf("Submit %s: %v", key, err)
		}
	}

	submit("old1")
	submit("old2")
	time.Sleep(20 * time.Millisecond)
	submit("fresh")

	d.sweep()

	for _, key := range []string{"old1", "old2"} {
		select {
		case err := <-errs[key]:
			if !IsKind(err, KindTimeout) {
				t.Fatalf("%s: expected timeout error, got %v", key, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s was not settled by the sweep", key)
		}
	}

	select {
	case err := <-errs["fresh"]:
		t.Fatalf("fresh item must survive the sweep, settled with %v", err)
	default:
	}
	if got := d.State().QueueLength; got != 1 {
		t.Fatalf("expected 1 survivor, got %d", got)
	}

	// Exactly one batched timeout notification.
	var timeouts int
	drain := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.TypeTimeout {
				timeouts++
			}
			continue
		case <-drain:
		}
		break
	}
	if timeouts != 1 {
		t.Fatalf("expected exactly one batched queue.timeout event, got %d", timeouts)
	}
}

func TestAbortSemantics(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})
	d.SetStopped(true)

	errCh := make(chan error, 1)
	id, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return nil, nil }},
		func(result any, err error) { errCh <- err })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !d.Abort(id) {
		t.Fatal("Abort on a queued item must return true")
	}
	select {
	case err := <-errCh:
		if !IsKind(err, KindAborted) {
			t.Fatalf("expected aborted error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("aborted item was never settled")
	}

	if d.Abort(id) {
		t.Fatal("Abort on an already-removed id must return false")
	}
	if d.Abort("no-such-id") {
		t.Fatal("Abort on an unknown id must return false")
	}
}

func TestAbortCannotReachExecuting(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})

	b := newBlockingTxn("inflight")
	var res atomic.Value
	done := make(chan struct{})
	id, err := d.Submit(b, func(result any, err error) {
		if err == nil {
			res.Store(result)
		}
		close(done)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-b.started

	// Already executing: abort is advisory-at-boundary and must miss.
	if d.Abort(id) {
		t.Fatal("Abort must not reach an executing transaction")
	}

	close(b.release)
	<-done
	if res.Load() != "inflight" {
		t.Fatalf("in-flight transaction must settle normally, got %v", res.Load())
	}
}

func TestStoppedPauseResume(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})
	d.SetStopped(true)

	executed := make(chan struct{})
	if _, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) {
		close(executed)
		return nil, nil
	}}, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-executed:
		t.Fatal("nothing may begin executing while stopped")
	case <-time.After(50 * time.Millisecond):
	}
	if st := d.State(); st.Busy || st.QueueLength != 1 {
		t.Fatalf("unexpected paused state: %+v", st)
	}

	d.SetStopped(false)
	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("resume must immediately dispatch the queue head")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- d.Start(ctx) }()

	d.SetStopped(true)
	errCh := make(chan error, 1)
	if _, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return nil, nil }},
		func(result any, err error) { errCh <- err }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	d.Shutdown()
	d.Shutdown() // must be safe

	select {
	case err := <-errCh:
		if !IsKind(err, KindAborted) {
			t.Fatalf("queued item must be aborted on shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued item was never settled on shutdown")
	}

	if _, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return nil, nil }}, nil); !IsKind(err, KindForbidden) {
		t.Fatalf("submissions after shutdown must be forbidden, got %v", err)
	}

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start returned %v after Shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Shutdown")
	}

	st := d.State()
	if st.Open || st.Busy || st.QueueLength != 0 {
		t.Fatalf("unexpected post-shutdown state: %+v", st)
	}
}

func TestSweepStopsAfterShutdown(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(256)
	d := New(hub, nil, Options{PollInterval: 5 * time.Millisecond})

	go func() { _ = d.Start(context.Background()) }()

	// Let at least one sweep fire, then shut down.
	time.Sleep(20 * time.Millisecond)
	d.Shutdown()
	time.Sleep(10 * time.Millisecond)

	before := len(hub.SnapshotSince(0))
	time.Sleep(30 * time.Millisecond)
	after := len(hub.SnapshotSince(0))
	if after != before {
		t.Fatalf("sweep timer fired after shutdown: %d events grew to %d", before, after)
	}
}

func TestTransactReturnsResult(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})

	out, err := d.Transact(context.Background(), txn.Func{Run: func(ctx context.Context) (any, error) {
		return 42, nil
	}})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if out != 42 {
		t.Fatalf("unexpected result %v", out)
	}
}

func TestPayloadErrorPassesThrough(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})
	boom := errors.New("boom")

	_, err := d.Transact(context.Background(), txn.Func{Run: func(ctx context.Context) (any, error) {
		return nil, boom
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("payload error must pass through unchanged, got %v", err)
	}

	// A payload failure is not fatal: the next transaction still runs.
	out, err := d.Transact(context.Background(), txn.Func{Run: func(ctx context.Context) (any, error) {
		return "next", nil
	}})
	if err != nil || out != "next" {
		t.Fatalf("dispatcher must keep draining after a failure: %v %v", out, err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{PollInterval: 250 * time.Millisecond, ItemTimeout: time.Second})

	st := d.State()
	if st.Options.PollIntervalMS != 250 || st.Options.ItemTimeoutMS != 1000 {
		t.Fatalf("unexpected options projection: %+v", st.Options)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		if _, err := d.Submit(txn.Func{Run: func(ctx context.Context) (any, error) { return nil, nil }},
			func(any, error) { wg.Done() }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	// Settlement callbacks fire before the executing slot clears; give the
	// runner a beat to go idle.
	deadline := time.Now().Add(time.Second)
	for {
		st = d.State()
		if !st.Busy && st.QueueLength == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher never went idle: %+v", st)
		}
		time.Sleep(time.Millisecond)
	}
	if !st.Open || st.Stopped || st.Executing != nil {
		t.Fatalf("unexpected idle state: %+v", st)
	}
}

func TestExecutingProjection(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(Options{})
	b := newBlockingTxn("visible")
	id, err := d.Submit(b, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-b.started

	st := d.State()
	if !st.Busy || st.Executing == nil || st.Executing.ID != id {
		t.Fatalf("executing projection missing: %+v", st)
	}
	close(b.release)
}
