package fieldio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/field"
)

// Sink collects forecast fields and writes one file per time step to a
// directory, named "<prefix>-<step>.safetensors" with a zero-padded step.
//
// Fields of a step are buffered until a field of another step arrives or
// the sink is closed. The buffered slices are retained, not copied.
type Sink struct {
	dir    string
	prefix string
	expver string

	step    int
	pending field.List
	closed  bool
}

// NewSink creates the output directory if needed.
func NewSink(dir, prefix, expver string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Sink{dir: dir, prefix: prefix, expver: expver, step: -1}, nil
}

// Path returns the file written for a step.
func (s *Sink) Path(step int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%03d.safetensors", s.prefix, step))
}

// Write buffers one output field at the given step.
func (s *Sink) Write(ctx context.Context, data []float32, template field.Field, step int) error {
	if s.closed {
		return ErrWriterClosed
	}
	if step != s.step {
		if err := s.flush(ctx); err != nil {
			return err
		}
		s.step = step
	}

	f := template.WithValues(data, step)
	if f.Metadata == nil {
		f.Metadata = make(map[string]string, 1)
	}
	f.Metadata[MetaExpver] = s.expver
	s.pending = append(s.pending, f)
	return nil
}

// WriteInputFields writes the initial conditions as step 0.
func (s *Sink) WriteInputFields(ctx context.Context, fields field.List) error {
	if s.closed {
		return ErrWriterClosed
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.step = 0
	s.pending = append(s.pending[:0], fields...)
	return s.flush(ctx)
}

// Close flushes the last step.
func (s *Sink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	err := s.flush(ctx)
	s.closed = true
	return err
}

func (s *Sink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	meta := map[string]string{
		MetaStep:   strconv.Itoa(s.step),
		MetaExpver: s.expver,
	}
	if date := s.pending[0].Date; !date.IsZero() {
		meta[MetaDate] = date.UTC().Format(time.RFC3339)
	}

	path := s.Path(s.step)
	if err := WriteFields(path, s.pending, meta); err != nil {
		return fmt.Errorf("failed to write step %d: %w", s.step, err)
	}
	ctxlog.FromContext(ctx).Debug("Wrote step.", "path", path, "step", s.step, "fields", len(s.pending))

	s.pending = nil
	return nil
}
