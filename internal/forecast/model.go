// Package forecast runs the PanguWeather models: it adapts input fields to
// the model tensors, loads the 6-hour and 24-hour sessions, and steps the
// forecast to the requested lead time.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/progress"
	"github.com/ai-models/panguweather/internal/runtime"
)

// Expver is the experiment version stamped on output fields.
const Expver = "pguw"

// ErrNoSink is returned when a host has nowhere to write the forecast.
var ErrNoSink = errors.New("no output sink")

// Host provides the data, engine and outputs of a run.
type Host interface {
	FieldsPL(ctx context.Context) (field.Collection, error)
	FieldsSFC(ctx context.Context) (field.Collection, error)

	// Engine is called once, after the model files have been found.
	Engine(ctx context.Context) (runtime.Engine, error)

	Sink() Sink
	Stepper(ctx context.Context, steps int) Stepper
}

// Model is the PanguWeather configuration.
type Model struct {
	DownloadURL   string
	DownloadFiles []string

	Grid     field.Grid
	ParamSfc []string
	ParamPL  []string
	LevelsPL []int

	Expver string

	NumThreads int
	Assets     string
	LeadTime   int
}

// New returns the model with its fixed tables.
func New(assetsDir string, leadTime, numThreads int) *Model {
	return &Model{
		DownloadURL:   assets.DefaultURL,
		DownloadFiles: append([]string(nil), assets.Files...),
		Grid:          field.Global025,
		ParamSfc:      []string{"msl", "10u", "10v", "2t"},
		ParamPL:       []string{"z", "q", "t", "u", "v"},
		LevelsPL:      []int{1000, 925, 850, 700, 600, 500, 400, 300, 250, 200, 150, 100, 50},
		Expver:        Expver,
		NumThreads:    numThreads,
		Assets:        assetsDir,
		LeadTime:      leadTime,
	}
}

// Adapter returns the field adapter for the model tables.
func (m *Model) Adapter() Adapter {
	return Adapter{
		ParamSfc: m.ParamSfc,
		ParamPL:  m.ParamPL,
		LevelsPL: m.LevelsPL,
		Grid:     m.Grid,
	}
}

// Run produces the forecast. Input fields are adapted first, then the model
// files are checked, so that neither a missing field nor a missing file
// gets as far as loading a session.
func (m *Model) Run(ctx context.Context, host Host) error {
	logger := ctxlog.FromContext(ctx)

	schedule, err := Schedule(m.LeadTime)
	if err != nil {
		return err
	}

	fieldsPL, err := host.FieldsPL(ctx)
	if err != nil {
		return err
	}
	fieldsSFC, err := host.FieldsSFC(ctx)
	if err != nil {
		return err
	}
	in, err := m.Adapter().Prepare(fieldsPL, fieldsSFC)
	if err != nil {
		return err
	}

	paths, err := assets.Resolve(m.Assets)
	if err != nil {
		return err
	}

	sink := host.Sink()
	if sink == nil {
		return ErrNoSink
	}

	engine, err := host.Engine(ctx)
	if err != nil {
		return err
	}
	logger.Info("Using inference engine.", "engine", engine.Name(), "num_threads", m.NumThreads)

	session24, err := open(ctx, engine, paths.Model24)
	if err != nil {
		return err
	}
	defer session24.Close()

	session6, err := open(ctx, engine, paths.Model6)
	if err != nil {
		return err
	}
	defer session6.Close()

	if err := sink.WriteInputFields(ctx, field.Concat(in.PL, in.SFC)); err != nil {
		return fmt.Errorf("failed to write input fields: %w", err)
	}

	stepper := host.Stepper(ctx, len(schedule))
	loop := &Loop{
		Sessions: Sessions{Six: session6, TwentyFour: session24},
		Sink:     sink,
		Stepper:  stepper,
		Points:   m.Grid.Points(),
	}
	if err := loop.Run(ctx, schedule, in); err != nil {
		return err
	}
	stepper.Done(ctx)
	return nil
}

func open(ctx context.Context, engine runtime.Engine, path string) (runtime.Session, error) {
	defer progress.Timer(ctx, "Loading "+path)()
	return engine.Open(ctx, path)
}
