package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tranqhq/tranq/internal/api"
	"github.com/tranqhq/tranq/internal/config"
	"github.com/tranqhq/tranq/internal/dispatch"
	"github.com/tranqhq/tranq/internal/events"
	"github.com/tranqhq/tranq/internal/journal"
	"github.com/tranqhq/tranq/internal/lock"
	"github.com/tranqhq/tranq/internal/log"
	"github.com/tranqhq/tranq/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "submit":
		return runSubmit(args)
	case "state":
		return runState(args)
	case "abort":
		return runAbort(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("tranq starting", "version", version, "config", *configPath)

	pidLock, err := lock.Acquire(getPIDLockPath(cfg))
	if err != nil {
		logger.Error("failed to acquire instance lock", "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(256)

	var jl dispatch.Journal
	var history api.HistoryReader
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer j.Close()
		jl = j
		history = j
		logger.Info("journal enabled", "path", cfg.Journal.Path)
	}

	disp := dispatch.New(hub, jl, dispatch.Options{
		PollInterval: cfg.Dispatcher.PollInterval(),
		ItemTimeout:  cfg.Dispatcher.ItemTimeout(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:     cfg.API.Listen,
			APIKey:     cfg.API.APIKey,
			ConfigHash: cfg.SourceHash,
		}, disp, history, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("tranq running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	// Give the dispatcher a moment to settle aborted callbacks.
	time.Sleep(100 * time.Millisecond)

	logger.Info("tranq stopped")
	return 0
}

// getPIDLockPath places the instance lock next to the journal so two
// gateways cannot share one settlement log.
func getPIDLockPath(cfg *config.Config) string {
	if cfg.Journal.Path != "" {
		return filepath.Join(filepath.Dir(cfg.Journal.Path), "tranq.lock")
	}
	return filepath.Join("data", "tranq.lock")
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("TRANQ_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("TRANQ_API_KEY"), "API Bearer Token")
	dir := fs.String("dir", "", "Working directory for the command")
	timeoutMS := fs.Int("timeout-ms", 0, "Per-command timeout in milliseconds")
	wait := fs.Bool("wait", false, "Block until the transaction settles")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tranq submit [flags] <command> [args...]")
		return 1
	}

	req := api.SubmitRequest{
		Command:   fs.Arg(0),
		Args:      fs.Args()[1:],
		Dir:       *dir,
		TimeoutMS: *timeoutMS,
	}
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode error: %v\n", err)
		return 1
	}

	url := *apiURL + "/txn"
	if *wait {
		url += "?wait=true"
	}
	return doAPIRequest(http.MethodPost, url, *apiKey, bytes.NewReader(body))
}

func runState(args []string) int {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("TRANQ_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	return doAPIRequest(http.MethodGet, *apiURL+"/state", *apiKey, nil)
}

func runAbort(args []string) int {
	fs := flag.NewFlagSet("abort", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("TRANQ_API_KEY"), "API Bearer Token")
	all := fs.Bool("all", false, "Abort every queued transaction")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *all {
		return doAPIRequest(http.MethodDelete, *apiURL+"/txn", *apiKey, nil)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: tranq abort <txn-id> | tranq abort --all")
		return 1
	}
	return doAPIRequest(http.MethodDelete, *apiURL+"/txn/"+fs.Arg(0), *apiKey, nil)
}

// doAPIRequest performs a request against the gateway and pretty-prints the
// JSON response. Non-2xx responses return a nonzero exit code after printing.
func doAPIRequest(method, url, apiKey string, body *bytes.Reader) int {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, url, body)
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request error: %v\n", err)
		return 1
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		fmt.Fprintf(os.Stderr, "Decode error: %v\n", err)
		return 1
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(out))

	if resp.StatusCode >= 300 {
		return 1
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *jsonOut {
		out, _ := json.MarshalIndent(versionInfo{
			Version:   version,
			Commit:    gitCommit,
			BuildTime: buildDate,
		}, "", "  ")
		fmt.Println(string(out))
		return 0
	}

	fmt.Printf("tranq %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	return 0
}

func printUsage() {
	fmt.Println("Usage: tranq <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start         Run the dispatcher gateway")
	fmt.Println("  watch         Real-time monitoring TUI")
	fmt.Println("  submit        Submit a command transaction via the API")
	fmt.Println("  state         Show the dispatcher state via the API")
	fmt.Println("  abort         Abort a queued transaction (or --all)")
	fmt.Println("  version       Print version information")
	fmt.Println("  help          Show this help")
	fmt.Println()
	fmt.Println("Flags for start:")
	fmt.Println("  --config PATH    Path to configuration file (defaults apply without one)")
	fmt.Println()
	fmt.Println("Client flags (watch, submit, state, abort):")
	fmt.Println("  --api-url URL    Gateway API URL (default: http://localhost:8080)")
	fmt.Println("  --api-key KEY    API Bearer Token (or TRANQ_API_KEY env var)")
}
