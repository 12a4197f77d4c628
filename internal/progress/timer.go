// Package progress reports the progress of a forecast: scoped timers, a
// per-step stepper with an ETA, and an optional socket.io publisher that
// forwards step events to a dashboard.
package progress

import (
	"context"
	"time"

	"github.com/ai-models/panguweather/internal/ctxlog"
)

// now is replaced in tests.
var now = time.Now

// Timer starts timing title and returns the function that logs the elapsed
// time. Use it as: defer progress.Timer(ctx, "Loading x")()
func Timer(ctx context.Context, title string) func() {
	start := now()
	return func() {
		ctxlog.FromContext(ctx).Info(title, "elapsed", Round(now().Sub(start)))
	}
}

// Round trims a duration for display.
func Round(d time.Duration) time.Duration {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second)
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	default:
		return d.Round(time.Microsecond)
	}
}
