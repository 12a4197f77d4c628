package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/born/onnx"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/config"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/fieldio"
	"github.com/ai-models/panguweather/internal/forecast"
	"github.com/ai-models/panguweather/internal/progress"
	"github.com/ai-models/panguweather/internal/runtime"
)

var smallGrid = field.Grid{North: 90, West: 0, South: -90, East: 360, DLat: 90, DLon: 90}

type plusOne struct{ path string }

func (s *plusOne) Run(_ context.Context, pl, sfc *tensor.RawTensor) (runtime.Output, error) {
	shift := func(t *tensor.RawTensor) *tensor.RawTensor {
		src := t.AsFloat32()
		data := make([]float32, len(src))
		for i, v := range src {
			data[i] = v + 1
		}
		out, err := runtime.NewFloat32(t.Shape().Clone(), data)
		if err != nil {
			panic(err)
		}
		return out
	}
	return runtime.Output{PL: shift(pl), SFC: shift(sfc)}, nil
}

func (s *plusOne) Path() string { return s.path }
func (s *plusOne) Close() error { return nil }

type fakeEngine struct {
	opened []string
	closed bool
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Open(_ context.Context, path string) (runtime.Session, error) {
	e.opened = append(e.opened, filepath.Base(path))
	return &plusOne{path: path}, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

type recorder struct {
	events []progress.Event
	closed bool
}

func (r *recorder) Publish(_ context.Context, e progress.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

type fixture struct {
	cfg     *config.Config
	app     *App
	engine  *fakeEngine
	engines int
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	assetsDir := filepath.Join(root, "assets")
	require.NoError(t, os.Mkdir(assetsDir, 0o755))
	for _, f := range assets.Files {
		require.NoError(t, os.WriteFile(filepath.Join(assetsDir, f), []byte("onnx"), 0o644))
	}

	m := forecast.New(assetsDir, 24, 1)
	var fields field.List
	for _, p := range m.ParamPL {
		for _, level := range m.LevelsPL {
			fields = append(fields, field.Field{
				Param: p, Level: level, LevelType: field.PressureLevel,
				Grid: smallGrid, Values: make([]float32, smallGrid.Points()),
			})
		}
	}
	for _, p := range m.ParamSfc {
		fields = append(fields, field.Field{
			Param: p, LevelType: field.Surface,
			Grid: smallGrid, Values: make([]float32, smallGrid.Points()),
		})
	}
	input := filepath.Join(root, "input.safetensors")
	require.NoError(t, fieldio.WriteFields(input, fields, map[string]string{fieldio.MetaDate: "2026-10-01T00:00:00Z"}))

	cfg := config.Default()
	cfg.Assets = assetsDir
	cfg.Input = []string{input}
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.LeadTime = 24
	cfg.LogFormat = "json"

	f := &fixture{cfg: cfg, engine: &fakeEngine{}, logs: &bytes.Buffer{}}
	f.app = New(cfg, f.logs)
	f.app.newEngine = func(context.Context, *config.Config) (runtime.Engine, error) {
		f.engines++
		return f.engine, nil
	}
	f.app.newModel = func(cfg *config.Config) *forecast.Model {
		m := forecast.New(cfg.Assets, cfg.LeadTime, cfg.NumThreads)
		m.Grid = smallGrid
		return m
	}
	return f
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Run(context.Background()))

	assert.Equal(t, []string{assets.File24, assets.File6}, f.engine.opened)
	assert.True(t, f.engine.closed)

	// Each session adds one. The 24h model starts again from the initial
	// state, so step 24 is one daily call away from the input, not four
	// 6h calls.
	want := map[int]float32{0: 0, 6: 1, 12: 2, 18: 3, 24: 1}
	for _, step := range []int{0, 6, 12, 18, 24} {
		path := filepath.Join(f.cfg.OutputDir, fmt.Sprintf("pangu-%03d.safetensors", step))
		fields, err := fieldio.ReadFields(path)
		require.NoError(t, err, "step %d", step)
		require.Len(t, fields, 69)
		assert.Equal(t, step, fields[0].Step)
		assert.Equal(t, want[step], fields[0].Values[0], "step %d", step)
		if step > 0 {
			assert.Equal(t, forecast.Expver, fields[0].Metadata[fieldio.MetaExpver])
		}
	}
}

func TestRunPublishesProgress(t *testing.T) {
	f := newFixture(t)
	f.cfg.Progress = &config.Progress{URL: "http://localhost:1/socket.io/"}
	rec := &recorder{}
	f.app.dial = func(context.Context, progress.PublisherConfig) (notifier, error) { return rec, nil }

	require.NoError(t, f.app.Run(context.Background()))
	require.Len(t, rec.events, 5)
	assert.Equal(t, progress.EventDone, rec.events[4].Type)
	assert.True(t, rec.closed)
}

func TestRunProgressDialFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.cfg.Progress = &config.Progress{URL: "http://localhost:1/socket.io/"}
	f.app.dial = func(context.Context, progress.PublisherConfig) (notifier, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, f.app.Run(context.Background()))
	assert.Contains(t, f.logs.String(), "Progress publisher disabled.")
}

func TestRunWithoutInput(t *testing.T) {
	f := newFixture(t)
	f.cfg.Input = nil
	assert.ErrorIs(t, f.app.Run(context.Background()), ErrNoInput)
}

func TestRunInvalidConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.LeadTime = 7
	assert.ErrorIs(t, f.app.Run(context.Background()), config.ErrInvalidConfig)
}

func TestRunMissingAssetCreatesNoEngine(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.cfg.Assets, assets.File6)))

	err := f.app.Run(context.Background())
	require.ErrorIs(t, err, assets.ErrMissingAsset)
	assert.Zero(t, f.engines)

	entries, err := os.ReadDir(f.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunDownloadsMissingAssets(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.cfg.Assets, assets.File6)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("onnx"))
	}))
	defer srv.Close()

	f.cfg.Download = true
	f.cfg.DownloadURL = srv.URL + "/{file}"
	f.app.client = srv.Client()

	require.NoError(t, f.app.Run(context.Background()))
	assert.FileExists(t, filepath.Join(f.cfg.Assets, assets.File6))
}

func TestNewEngineNative(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime = config.RuntimeNative
	e, err := NewEngine(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "born-cpu", e.Name())
	assert.NoError(t, e.Close())
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	orig := modelInfo
	t.Cleanup(func() { modelInfo = orig })

	modelInfo = func(string) (*onnx.ModelInfo, error) {
		return &onnx.ModelInfo{
			IRVersion:    8,
			OpsetVersion: 17,
			InputNames:   []string{"input", "input_surface"},
			OutputNames:  []string{"output", "output_surface"},
		}, nil
	}
	var out bytes.Buffer
	require.NoError(t, f.app.Info(context.Background(), &out))
	assert.Contains(t, out.String(), assets.File24)
	assert.Contains(t, out.String(), "opset: 17")

	modelInfo = func(string) (*onnx.ModelInfo, error) {
		return &onnx.ModelInfo{InputNames: []string{"x"}, OutputNames: []string{"output", "output_surface"}}, nil
	}
	err := f.app.Info(context.Background(), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no input "input_surface"`)
}
