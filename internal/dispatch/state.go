package dispatch

import "github.com/tranqhq/tranq/internal/queue"

// OptionsView is the display projection of the sweep configuration.
type OptionsView struct {
	PollIntervalMS int64 `json:"poll_interval_ms"`
	ItemTimeoutMS  int64 `json:"item_timeout_ms"`
}

// State is a point-in-time projection of the dispatcher. It is a value copy;
// mutating it never touches live state.
type State struct {
	Options     OptionsView     `json:"options"`
	Busy        bool            `json:"busy"`
	Open        bool            `json:"open"`
	Stopped     bool            `json:"stopped"`
	QueueLength int             `json:"queue_length"`
	Executing   *queue.ItemView `json:"executing,omitempty"`
}

// State returns the current projection.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	s := State{
		Options: OptionsView{
			PollIntervalMS: d.opts.PollInterval.Milliseconds(),
			ItemTimeoutMS:  d.opts.ItemTimeout.Milliseconds(),
		},
		Busy:    d.executing != nil,
		Open:    d.open,
		Stopped: d.stopped,
	}
	if d.executing != nil {
		v := d.executing.View()
		s.Executing = &v
	}
	d.mu.Unlock()

	s.QueueLength = d.q.Len()
	return s
}
