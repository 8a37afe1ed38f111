package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tranqhq/tranq/internal/dispatch"
	"github.com/tranqhq/tranq/internal/events"
)

// HealthState tracks gateway health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	QueueDepth    int
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, ticker Ticker, activity Activity, theme Theme, width int) string {
	innerWidth := width - 4

	// Status
	statusText := theme.StatusOK.Render("HEALTHY")
	statusIcon := "✅"
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
		statusIcon = "🔌"
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
		statusIcon = "⚠️"
	}

	// Uptime
	uptime := time.Duration(health.UptimeSeconds) * time.Second
	uptimeStr := formatDuration(uptime)

	// Last event
	lastEventStr := "never"
	if !activity.LastEvent().IsZero() {
		ago := time.Since(activity.LastEvent()).Round(time.Second)
		lastEventStr = fmt.Sprintf("%s ago", ago)
	}

	// Title line with ticker and clock
	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" TRANQ WATCH %s", tickerStr)

	// Calculate padding between title and clock
	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	// Stats line
	statsLine := fmt.Sprintf(" %s %s  ⏱ %s  Queue: %d",
		statusIcon, statusText,
		uptimeStr,
		health.QueueDepth,
	)

	// Activity line
	activityLine := fmt.Sprintf(" Last event: %s %s",
		lastEventStr,
		activity.Render(theme),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func renderDispatcher(state dispatch.State, theme Theme, width int) string {
	innerWidth := width - 4

	var gate string
	switch {
	case !state.Open:
		gate = theme.StatusFailed.Render("CLOSED")
	case state.Stopped:
		gate = theme.StatusQueued.Render("STOPPED")
	default:
		gate = theme.StatusOK.Render("OPEN")
	}

	exec := theme.Dim.Render("idle")
	if state.Busy && state.Executing != nil {
		id := state.Executing.ID
		if len(id) > 8 {
			id = id[:8]
		}
		age := time.Since(state.Executing.EnqueuedAt).Round(time.Second)
		exec = theme.StatusRunning.Render(fmt.Sprintf("[%s] running for %s", id, age))
	}

	lines := []string{
		fmt.Sprintf(" Intake: %s  Queued: %d", gate, state.QueueLength),
		fmt.Sprintf(" Executing: %s", exec),
		theme.Dim.Render(fmt.Sprintf(" Sweep every %dms, evict after %dms",
			state.Options.PollIntervalMS, state.Options.ItemTimeoutMS)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("DISPATCHER"),
		strings.Join(lines, "\n"),
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func renderEventLog(eventLog []events.Event, theme Theme) string {
	if len(eventLog) == 0 {
		return theme.Dim.Render("  Waiting for events...")
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 20 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	// Color the event type based on category
	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeSuccess:
		typeStyle = theme.StatusOK
	case events.TypeError, events.TypeTimeout:
		typeStyle = theme.StatusFailed
	case events.TypeExecuting:
		typeStyle = theme.StatusRunning
	case events.TypePoll:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-16s", e.Type))

	// Extract brief description from data
	desc := extractEventDesc(e)

	return fmt.Sprintf("%s %s %s", ts, typeName, desc)
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if id, ok := data["id"].(string); ok {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}

	if kind, ok := data["kind"].(string); ok {
		parts = append(parts, kind)
	}

	if errStr, ok := data["error"].(string); ok && errStr != "" {
		if len(errStr) > 40 {
			errStr = errStr[:40] + "..."
		}
		parts = append(parts, errStr)
	}

	if count, ok := data["count"].(float64); ok {
		parts = append(parts, fmt.Sprintf("count=%d", int(count)))
	}

	if length, ok := data["length"].(float64); ok {
		parts = append(parts, fmt.Sprintf("len=%d", int(length)))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
