package forecast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/require"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/runtime"
)

// smallGrid is global at 90 degrees: 3 x 4 points.
var smallGrid = field.Grid{North: 90, West: 0, South: -90, East: 360, DLat: 90, DLon: 90}

func smallModel(assetsDir string, leadTime int) *Model {
	m := New(assetsDir, leadTime, 1)
	m.Grid = smallGrid
	return m
}

// value encodes a field identity so that tensor positions can be checked.
func value(param, level int) float32 { return float32(param*1000 + level) }

func inputFields(m *Model) (pl, sfc field.List) {
	points := m.Grid.Points()
	constant := func(v float32) []float32 {
		out := make([]float32, points)
		for i := range out {
			out[i] = v
		}
		return out
	}
	for p, param := range m.ParamPL {
		for _, level := range m.LevelsPL {
			pl = append(pl, field.Field{
				Param: param, Level: level, LevelType: field.PressureLevel,
				Grid: m.Grid, Values: constant(value(p, level)),
			})
		}
	}
	for p, param := range m.ParamSfc {
		sfc = append(sfc, field.Field{
			Param: param, LevelType: field.Surface,
			Grid: m.Grid, Values: constant(value(p, 0)),
		})
	}
	return pl, sfc
}

// fakeSession adds delta to every value and records the first input value
// of each call.
type fakeSession struct {
	path   string
	delta  float32
	inputs []float32
	err    error
	closed bool
}

func (s *fakeSession) Run(_ context.Context, pl, sfc *tensor.RawTensor) (runtime.Output, error) {
	if s.err != nil {
		return runtime.Output{}, s.err
	}
	s.inputs = append(s.inputs, pl.AsFloat32()[0])
	shift := func(t *tensor.RawTensor) *tensor.RawTensor {
		src := t.AsFloat32()
		data := make([]float32, len(src))
		for i, v := range src {
			data[i] = v + s.delta
		}
		out, err := runtime.NewFloat32(t.Shape().Clone(), data)
		if err != nil {
			panic(err)
		}
		return out
	}
	return runtime.Output{PL: shift(pl), SFC: shift(sfc)}, nil
}

func (s *fakeSession) Path() string { return s.path }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeEngine struct {
	sessions map[string]*fakeSession
	opened   []string
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Open(_ context.Context, path string) (runtime.Session, error) {
	e.opened = append(e.opened, filepath.Base(path))
	s, ok := e.sessions[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("no session for %s", path)
	}
	s.path = path
	return s, nil
}

func (e *fakeEngine) Close() error { return nil }

func newFakeEngine() (*fakeEngine, *fakeSession, *fakeSession) {
	six := &fakeSession{delta: 1}
	daily := &fakeSession{delta: 100000}
	return &fakeEngine{sessions: map[string]*fakeSession{
		assets.File6:  six,
		assets.File24: daily,
	}}, six, daily
}

type write struct {
	name  string
	step  int
	first float32
	n     int
}

type fakeSink struct {
	writes []write
	inputs field.List
	err    error
}

func (s *fakeSink) Write(_ context.Context, data []float32, template field.Field, step int) error {
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, write{name: template.Name(), step: step, first: data[0], n: len(data)})
	return nil
}

func (s *fakeSink) WriteInputFields(_ context.Context, fields field.List) error {
	s.inputs = append(s.inputs, fields...)
	return nil
}

func (s *fakeSink) perStep() map[int]int {
	out := make(map[int]int)
	for _, w := range s.writes {
		out[w.step]++
	}
	return out
}

type fakeStepper struct {
	steps []int
	done  bool
}

func (s *fakeStepper) Step(_ context.Context, _, hours int) { s.steps = append(s.steps, hours) }

func (s *fakeStepper) Done(context.Context) { s.done = true }

type fakeHost struct {
	pl, sfc     field.List
	engine      *fakeEngine
	engineCalls int
	sink        *fakeSink
	stepper     *fakeStepper
}

func newFakeHost(m *Model) *fakeHost {
	pl, sfc := inputFields(m)
	engine, _, _ := newFakeEngine()
	return &fakeHost{pl: pl, sfc: sfc, engine: engine, sink: &fakeSink{}, stepper: &fakeStepper{}}
}

func (h *fakeHost) FieldsPL(context.Context) (field.Collection, error)  { return h.pl, nil }
func (h *fakeHost) FieldsSFC(context.Context) (field.Collection, error) { return h.sfc, nil }

func (h *fakeHost) Engine(context.Context) (runtime.Engine, error) {
	h.engineCalls++
	if h.engine == nil {
		return nil, errors.New("no engine")
	}
	return h.engine, nil
}

func (h *fakeHost) Sink() Sink {
	if h.sink == nil {
		return nil
	}
	return h.sink
}

func (h *fakeHost) Stepper(context.Context, int) Stepper { return h.stepper }

func assetsDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("onnx"), 0o644))
	}
	return dir
}
