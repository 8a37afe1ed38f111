package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tranqhq/tranq/internal/config"
	"github.com/tranqhq/tranq/internal/dispatch"
	"github.com/tranqhq/tranq/internal/events"
	"github.com/tranqhq/tranq/internal/journal"
	"github.com/tranqhq/tranq/internal/lock"
	"github.com/tranqhq/tranq/internal/log"
	"github.com/tranqhq/tranq/internal/txn"
)

// TestEndToEndGateway wires the full stack the way the start command does:
// config from YAML, instance lock, SQLite journal, event hub, dispatcher.
// Transactions are real subprocesses.
func TestEndToEndGateway(t *testing.T) {
	tmpDir := t.TempDir()
	journalPath := filepath.Join(tmpDir, "data", "journal.db")

	log.Setup("ERROR") // Keep logs clean

	configYAML := fmt.Sprintf(`service:
  name: tranq-e2e
  log_level: ERROR
dispatcher:
  poll_interval_ms: 50
  item_timeout_ms: 200
journal:
  path: %s
`, journalPath)
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.SourceHash == "" {
		t.Fatalf("expected config hash to be computed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pidLock, err := lock.Acquire(filepath.Join(filepath.Dir(cfg.Journal.Path), "tranq.lock"))
	if err != nil {
		t.Fatalf("lock.Acquire: %v", err)
	}
	defer pidLock.Release()

	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()

	hub := events.NewHub(256)
	sub, unsub := hub.Subscribe()
	defer unsub()

	disp := dispatch.New(hub, j, dispatch.Options{
		PollInterval: cfg.Dispatcher.PollInterval(),
		ItemTimeout:  cfg.Dispatcher.ItemTimeout(),
	})

	dispDone := make(chan error, 1)
	go func() { dispDone <- disp.Start(ctx) }()

	// 1. A real subprocess runs and settles successfully.
	echo := &txn.ExecTxn{Command: "/bin/sh", Args: []string{"-c", "echo hello-e2e"}}
	result, err := disp.Transact(ctx, echo)
	if err != nil {
		t.Fatalf("Transact(echo): %v", err)
	}
	execRes, ok := result.(txn.ExecResult)
	if !ok {
		t.Fatalf("expected txn.ExecResult, got %T", result)
	}
	if !strings.Contains(execRes.Stdout, "hello-e2e") {
		t.Fatalf("expected stdout to contain hello-e2e, got %q", execRes.Stdout)
	}
	if execRes.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", execRes.ExitCode)
	}

	// 2. A failing subprocess surfaces the payload error unchanged.
	fail := &txn.ExecTxn{Command: "/bin/sh", Args: []string{"-c", "echo boom >&2; exit 3"}}
	if _, err := disp.Transact(ctx, fail); err == nil {
		t.Fatalf("expected error from failing command")
	} else if dispatch.IsKind(err, dispatch.KindTimeout) || dispatch.IsKind(err, dispatch.KindAborted) {
		t.Fatalf("payload failure must not be reclassified, got %v", err)
	}

	// 3. While paused, queued transactions age out and settle as timeouts.
	disp.SetStopped(true)
	timeoutCh := make(chan error, 1)
	if _, err := disp.Submit(
		&txn.ExecTxn{Command: "/bin/sh", Args: []string{"-c", "true"}},
		func(result any, err error) { timeoutCh <- err },
	); err != nil {
		t.Fatalf("Submit while stopped: %v", err)
	}

	select {
	case err := <-timeoutCh:
		if !dispatch.IsKind(err, dispatch.KindTimeout) {
			t.Fatalf("expected timeout kind, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("queued transaction was never evicted")
	}
	disp.SetStopped(false)

	// 4. Every settlement reached the journal.
	waitForEntries(t, ctx, j, 3)
	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("journal.Recent: %v", err)
	}
	statuses := make(map[string]int)
	for _, e := range entries {
		statuses[e.Status]++
	}
	if statuses[string(dispatch.StatusSucceeded)] != 1 {
		t.Errorf("expected 1 succeeded entry, got %d", statuses[string(dispatch.StatusSucceeded)])
	}
	if statuses[string(dispatch.StatusFailed)] != 1 {
		t.Errorf("expected 1 failed entry, got %d", statuses[string(dispatch.StatusFailed)])
	}
	if statuses[string(dispatch.StatusTimedOut)] != 1 {
		t.Errorf("expected 1 timed_out entry, got %d", statuses[string(dispatch.StatusTimedOut)])
	}

	// 5. The hub saw the lifecycle.
	seen := drainEventTypes(sub)
	for _, want := range []string{
		events.TypeSubmitted,
		events.TypeExecuting,
		events.TypeSuccess,
		events.TypeError,
		events.TypeTimeout,
		events.TypeChange,
	} {
		if !seen[want] {
			t.Errorf("expected to observe %s event", want)
		}
	}

	cancel()
	select {
	case err := <-dispDone:
		if err != nil && err != context.Canceled {
			t.Fatalf("dispatcher exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}

func waitForEntries(t *testing.T, ctx context.Context, j *journal.Journal, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := j.Recent(ctx, want+5)
		if err != nil {
			t.Fatalf("journal.Recent: %v", err)
		}
		if len(entries) >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("journal never reached %d entries", want)
}

func drainEventTypes(sub <-chan events.Event) map[string]bool {
	seen := make(map[string]bool)
	for {
		select {
		case e := <-sub:
			seen[e.Type] = true
		default:
			return seen
		}
	}
}
