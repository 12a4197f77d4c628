// Package app wires configuration, field store, inference engine and
// progress reporting into a forecast run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/config"
	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/fieldio"
	"github.com/ai-models/panguweather/internal/forecast"
	"github.com/ai-models/panguweather/internal/progress"
	"github.com/ai-models/panguweather/internal/runtime"
	"github.com/ai-models/panguweather/internal/runtime/native"
	"github.com/ai-models/panguweather/internal/runtime/ort"
)

// ErrNoInput is returned by Run when no input file is configured.
var ErrNoInput = errors.New("no input fields configured")

// App runs forecasts for one configuration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	client *http.Client

	newEngine func(ctx context.Context, cfg *config.Config) (runtime.Engine, error)
	newModel  func(cfg *config.Config) *forecast.Model
	dial      func(ctx context.Context, cfg progress.PublisherConfig) (notifier, error)
}

type notifier interface {
	progress.Notifier
	Close() error
}

// New creates an App logging to logOut.
func New(cfg *config.Config, logOut io.Writer) *App {
	return &App{
		cfg:       cfg,
		logger:    ctxlog.New(cfg.LogLevel, cfg.LogFormat, logOut),
		client:    http.DefaultClient,
		newEngine: NewEngine,
		newModel: func(cfg *config.Config) *forecast.Model {
			m := forecast.New(cfg.Assets, cfg.LeadTime, cfg.NumThreads)
			m.DownloadURL = cfg.DownloadURL
			return m
		},
		dial: func(ctx context.Context, cfg progress.PublisherConfig) (notifier, error) {
			return progress.Dial(ctx, cfg)
		},
	}
}

// Context returns ctx carrying the App logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// NewEngine creates the engine selected by cfg.Runtime.
func NewEngine(ctx context.Context, cfg *config.Config) (runtime.Engine, error) {
	opts := cfg.RuntimeOptions()
	switch cfg.Runtime {
	case config.RuntimeNative:
		return native.New(ctx, cfg.NativeBackend, opts)
	default:
		return ort.New(opts)
	}
}

// Download fetches the model files missing from the assets directory.
func (a *App) Download(ctx context.Context) (assets.Paths, error) {
	ctx = a.Context(ctx)
	d := &assets.Downloader{Client: a.client, URL: a.cfg.DownloadURL, Checksums: a.cfg.Checksums}
	return d.Download(ctx, a.cfg.Assets)
}

// Run produces a forecast from the configured input files.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = a.Context(ctx)
	logger := a.logger

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if len(a.cfg.Input) == 0 {
		return ErrNoInput
	}

	if a.cfg.Download {
		if _, err := a.Download(ctx); err != nil {
			return err
		}
	}

	fields, err := fieldio.ReadFields(a.cfg.Input...)
	if err != nil {
		return fmt.Errorf("failed to read input fields: %w", err)
	}
	pl, sfc := field.Split(fields)
	logger.Info("Read input fields.", "pressure_level", len(pl), "surface", len(sfc))

	sink, err := fieldio.NewSink(a.cfg.OutputDir, a.cfg.OutputPrefix, forecast.Expver)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var pub notifier
	if p := a.cfg.Progress; p != nil {
		pub, err = a.dial(ctx, progress.PublisherConfig{
			URL:                p.URL,
			Namespace:          p.Namespace,
			Event:              p.Event,
			InsecureSkipVerify: p.InsecureSkipVerify,
		})
		if err != nil {
			logger.Warn("Progress publisher disabled.", "error", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	h := &host{
		cfg:       a.cfg,
		pl:        pl,
		sfc:       sfc,
		sink:      sink,
		notifier:  pub,
		newEngine: a.newEngine,
	}
	defer h.close(ctx)

	model := a.newModel(a.cfg)
	logger.Info("Starting forecast.", "lead_time", model.LeadTime, "assets", model.Assets, "runtime", a.cfg.Runtime)
	return model.Run(ctx, h)
}

// host implements forecast.Host.
type host struct {
	cfg      *config.Config
	pl, sfc  field.List
	sink     *fieldio.Sink
	notifier progress.Notifier

	newEngine func(ctx context.Context, cfg *config.Config) (runtime.Engine, error)
	engine    runtime.Engine
}

var _ forecast.Host = (*host)(nil)

func (h *host) FieldsPL(context.Context) (field.Collection, error)  { return h.pl, nil }
func (h *host) FieldsSFC(context.Context) (field.Collection, error) { return h.sfc, nil }

func (h *host) Engine(ctx context.Context) (runtime.Engine, error) {
	if h.engine != nil {
		return h.engine, nil
	}
	engine, err := h.newEngine(ctx, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", h.cfg.Runtime, err)
	}
	h.engine = engine
	return engine, nil
}

func (h *host) Sink() forecast.Sink { return h.sink }

func (h *host) Stepper(_ context.Context, steps int) forecast.Stepper {
	return progress.NewStepper(steps, forecast.StepHours, h.notifier)
}

func (h *host) close(ctx context.Context) {
	if h.engine == nil {
		return
	}
	if err := h.engine.Close(); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to close engine.", "error", err)
	}
}
