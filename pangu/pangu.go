// Copyright 2026 The panguweather Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package pangu

import (
	"context"
	"fmt"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/forecast"
	"github.com/ai-models/panguweather/internal/progress"
	"github.com/ai-models/panguweather/internal/runtime"
	"github.com/ai-models/panguweather/internal/runtime/native"
	"github.com/ai-models/panguweather/internal/runtime/ort"
)

// Model is the PanguWeather configuration: fixed parameter and level
// tables, grid, assets directory and lead time.
type Model = forecast.Model

// Field is one atmospheric variable on a lat-lon grid.
type Field = field.Field

// Collection is an ordered set of fields supporting selection, ordering
// and conversion to float32.
type Collection = field.Collection

// FieldList is the in-memory Collection.
type FieldList = field.List

// Sink receives forecast fields.
type Sink = forecast.Sink

// Engine loads inference sessions.
type Engine = runtime.Engine

// Options configures session creation.
type Options = runtime.Options

// Step is one iteration of a forecast.
type Step = forecast.Step

// Runtime names accepted by NewEngine.
const (
	RuntimeONNX   = "onnxruntime"
	RuntimeNative = "native"
)

// Errors returned by Run.
var (
	ErrMissingAsset    = assets.ErrMissingAsset
	ErrMissingField    = field.ErrMissingField
	ErrInvalidLeadTime = forecast.ErrInvalidLeadTime
	ErrShape           = forecast.ErrShape
	ErrNoSink          = forecast.ErrNoSink
)

// New returns the model with assets under assetsDir.
func New(assetsDir string, leadTime, numThreads int) *Model {
	return forecast.New(assetsDir, leadTime, numThreads)
}

// DefaultOptions returns single-threaded CPU options with memory reuse
// disabled.
func DefaultOptions() Options {
	return runtime.DefaultOptions()
}

// Schedule returns the forecast steps for leadTime hours.
func Schedule(leadTime int) ([]Step, error) {
	return forecast.Schedule(leadTime)
}

// NewEngine creates an engine. For RuntimeNative the CPU backend is used.
func NewEngine(ctx context.Context, name string, opts Options) (Engine, error) {
	switch name {
	case RuntimeONNX:
		return ort.New(opts)
	case RuntimeNative:
		return native.New(ctx, native.BackendCPU, opts)
	default:
		return nil, fmt.Errorf("unknown runtime %q", name)
	}
}

// RunConfig holds what a run needs besides the model.
type RunConfig struct {
	FieldsPL  Collection
	FieldsSFC Collection
	Engine    Engine
	Sink      Sink
}

// Run produces a forecast, logging progress to the logger in ctx.
func Run(ctx context.Context, m *Model, cfg RunConfig) error {
	return m.Run(ctx, &host{cfg: cfg})
}

type host struct {
	cfg RunConfig
}

func (h *host) FieldsPL(context.Context) (field.Collection, error)  { return h.cfg.FieldsPL, nil }
func (h *host) FieldsSFC(context.Context) (field.Collection, error) { return h.cfg.FieldsSFC, nil }

func (h *host) Engine(context.Context) (runtime.Engine, error) {
	if h.cfg.Engine == nil {
		return nil, fmt.Errorf("no engine configured")
	}
	return h.cfg.Engine, nil
}

func (h *host) Sink() forecast.Sink { return h.cfg.Sink }

func (h *host) Stepper(_ context.Context, steps int) forecast.Stepper {
	return progress.NewStepper(steps, forecast.StepHours, nil)
}
