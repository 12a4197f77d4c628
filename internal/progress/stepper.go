package progress

import (
	"context"
	"time"

	"github.com/ai-models/panguweather/internal/ctxlog"
)

// Event types.
const (
	EventStep = "step"
	EventDone = "done"
)

// Event is one progress notification.
type Event struct {
	Type    string
	Index   int
	Hours   int
	Total   int
	Elapsed time.Duration
	ETA     time.Duration
}

// Payload is the event as sent over the wire.
func (e Event) Payload() map[string]any {
	return map[string]any{
		"type":    e.Type,
		"index":   e.Index,
		"hours":   e.Hours,
		"total":   e.Total,
		"elapsed": e.Elapsed.Seconds(),
		"eta":     e.ETA.Seconds(),
	}
}

// Notifier receives progress events.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Stepper logs one line per forecast step with an estimate of the time
// left, and forwards events to an optional Notifier.
type Stepper struct {
	total     int
	stepHours int
	notifier  Notifier

	start time.Time
	last  time.Time
	done  int
}

// NewStepper starts a stepper for total steps of stepHours each. notifier
// may be nil.
func NewStepper(total, stepHours int, notifier Notifier) *Stepper {
	t := now()
	return &Stepper{total: total, stepHours: stepHours, notifier: notifier, start: t, last: t}
}

// Step records the completion of step index (0-based) at hours.
func (s *Stepper) Step(ctx context.Context, index, hours int) {
	t := now()
	stepTime := t.Sub(s.last)
	s.last = t
	s.done = index + 1

	elapsed := t.Sub(s.start)
	var eta time.Duration
	if s.done < s.total {
		eta = elapsed / time.Duration(s.done) * time.Duration(s.total-s.done)
	}

	ctxlog.FromContext(ctx).Info("Done step.",
		"done", s.done,
		"total", s.total,
		"step", hours,
		"step_time", Round(stepTime),
		"eta", Round(eta))

	s.notify(ctx, Event{Type: EventStep, Index: index, Hours: hours, Total: s.total, Elapsed: elapsed, ETA: eta})
}

// Done logs the summary of the run.
func (s *Stepper) Done(ctx context.Context) {
	elapsed := now().Sub(s.start)
	var average time.Duration
	if s.done > 0 {
		average = elapsed / time.Duration(s.done)
	}
	ctxlog.FromContext(ctx).Info("Forecast complete.",
		"steps", s.done,
		"lead_time", s.done*s.stepHours,
		"elapsed", Round(elapsed),
		"average", Round(average))

	s.notify(ctx, Event{Type: EventDone, Index: s.done - 1, Hours: s.done * s.stepHours, Total: s.total, Elapsed: elapsed})
}

func (s *Stepper) notify(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, e); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish progress.", "error", err)
	}
}
