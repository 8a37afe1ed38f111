package txn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

const (
	// maxStderrBytes caps the amount of stderr captured from the subprocess.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second

	defaultExecTimeout = 60 * time.Second
)

// ExecTxn is a subprocess-backed transaction: it spawns a command, waits for
// it to exit, and returns the captured output. A per-transaction timeout is
// enforced with SIGTERM, a grace period, then SIGKILL.
type ExecTxn struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// ExecResult is the settlement value of a successful ExecTxn.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func (e *ExecTxn) Describe() json.RawMessage {
	b, _ := json.Marshal(struct {
		Type    string   `json:"type"`
		Command string   `json:"command"`
		Args    []string `json:"args,omitempty"`
	}{Type: "exec", Command: e.Command, Args: e.Args})
	return b
}

// Execute spawns the command and waits for completion or timeout.
func (e *ExecTxn) Execute(ctx context.Context) (any, error) {
	if e.Command == "" {
		return nil, fmt.Errorf("exec transaction: command is empty")
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}

	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	// Don't use CommandContext - we manage termination ourselves so the
	// process gets a SIGTERM and a grace period before SIGKILL.
	cmd := exec.Command(e.Command, e.Args...)
	cmd.Dir = e.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		e.terminate(cmd, waitErr)
		return nil, ctx.Err()

	case <-timeoutTimer.C:
		e.terminate(cmd, waitErr)
		return nil, fmt.Errorf("execution timed out after %v: %w", timeout, context.DeadlineExceeded)

	case err := <-waitErr:
		res := ExecResult{
			Stdout: stdout.String(),
			Stderr: truncateStderr(stderr.String()),
		}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				res.ExitCode = exitErr.ExitCode()
				return nil, fmt.Errorf("process exited with status %d: %s", res.ExitCode, res.Stderr)
			}
			return nil, fmt.Errorf("wait for process: %w", err)
		}
		return res, nil
	}
}

// terminate sends SIGTERM, waits the grace period, then SIGKILLs.
func (e *ExecTxn) terminate(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
		// Process exited within the grace period.
	case <-grace.C:
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-waitErr
	}
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
