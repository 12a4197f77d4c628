package forecast

import (
	"context"
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/runtime"
)

// Sink receives forecast fields.
type Sink interface {
	// Write stores one output field. template is the input field the data
	// belongs to; data must not be modified after the call.
	Write(ctx context.Context, data []float32, template field.Field, step int) error

	// WriteInputFields stores the initial conditions.
	WriteInputFields(ctx context.Context, fields field.List) error
}

// Stepper reports progress once per completed step, and once when the
// forecast is complete.
type Stepper interface {
	Step(ctx context.Context, index, hours int)
	Done(ctx context.Context)
}

// Sessions is the pair of loaded models.
type Sessions struct {
	Six        runtime.Session
	TwentyFour runtime.Session
}

// For returns the session of a model kind.
func (s Sessions) For(k Kind) runtime.Session {
	if k == Model24 {
		return s.TwentyFour
	}
	return s.Six
}

// Loop advances the forecast state through a schedule.
//
// Two trajectories are tracked. primary follows every step and is always
// the latest output. daily only changes when the 24-hour model runs, which
// is always fed its own previous output (or the initial state).
type Loop struct {
	Sessions Sessions
	Sink     Sink
	Stepper  Stepper
	Points   int
}

// Run executes the schedule from in.Initial. Any session or sink error
// aborts the run; steps already written stay written.
func (l *Loop) Run(ctx context.Context, schedule []Step, in *Inputs) error {
	logger := ctxlog.FromContext(ctx)

	primary := in.Initial
	daily := in.Initial

	for _, step := range schedule {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %d: %w", step.Hours, err)
		}

		var source State
		if step.Model == Model24 {
			source = daily
		} else {
			source = primary
		}

		out, err := l.Sessions.For(step.Model).Run(ctx, source.PL, source.SFC)
		if err != nil {
			return fmt.Errorf("step %d (%s model): %w", step.Hours, step.Model, err)
		}
		next := State{PL: out.PL, SFC: out.SFC}

		if step.Model == Model24 {
			daily = next
		}
		primary = next

		logger.Debug("Step computed.", "step", step.Hours, "model", step.Model.String())

		if err := l.write(ctx, next.PL, in.PL, step.Hours); err != nil {
			return err
		}
		if err := l.write(ctx, next.SFC, in.SFC, step.Hours); err != nil {
			return err
		}

		if l.Stepper != nil {
			l.Stepper.Step(ctx, step.Index, step.Hours)
		}
	}
	return nil
}

// write splits t into per-field slices of l.Points values and writes slice
// k with templates[k].
func (l *Loop) write(ctx context.Context, t *tensor.RawTensor, templates field.List, step int) error {
	if err := runtime.CheckFloat32("output", t); err != nil {
		return fmt.Errorf("step %d: %w", step, err)
	}
	data := t.AsFloat32()
	if want := len(templates) * l.Points; len(data) != want {
		return fmt.Errorf("%w: step %d output has %d values, expected %d", ErrShape, step, len(data), want)
	}

	for k, tmpl := range templates {
		slice := data[k*l.Points : (k+1)*l.Points : (k+1)*l.Points]
		if err := l.Sink.Write(ctx, slice, tmpl, step); err != nil {
			return fmt.Errorf("step %d: failed to write %s: %w", step, tmpl, err)
		}
	}
	return nil
}
