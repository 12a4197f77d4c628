// Package ort runs PanguWeather sessions on ONNX Runtime.
package ort

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/born-ml/born/tensor"
	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/runtime"
)

// The ONNX Runtime environment is process-wide. It is initialised by the
// first engine and destroyed with the last one, unless it was already
// initialised by someone else.
var (
	envMu    sync.Mutex
	envRefs  int
	envOwned bool
)

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !onnxruntime.IsInitialized() {
		if libraryPath != "" {
			onnxruntime.SetSharedLibraryPath(libraryPath)
		}
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
		envOwned = true
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && envOwned {
		envOwned = false
		return onnxruntime.DestroyEnvironment()
	}
	return nil
}

// Engine opens ONNX Runtime sessions.
type Engine struct {
	opts   runtime.Options
	closed bool
}

var _ runtime.Engine = (*Engine)(nil)

// New initialises the ONNX Runtime environment.
func New(opts runtime.Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Name implements runtime.Engine.
func (e *Engine) Name() string { return "onnxruntime" }

// Open implements runtime.Engine.
func (e *Engine) Open(ctx context.Context, path string) (runtime.Session, error) {
	if e.closed {
		return nil, fmt.Errorf("onnxruntime engine is closed")
	}

	options, err := sessionOptions(ctx, e.opts)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(path,
		[]string{runtime.InputName, runtime.InputSurfaceName},
		[]string{runtime.OutputName, runtime.OutputSurfaceName},
		options)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &Session{path: path, session: session}, nil
}

// Close implements runtime.Engine.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return releaseEnvironment()
}

// sessionOptions translates runtime.Options. ONNX Runtime's C API has no
// switch for memory reuse; isolation between calls comes from copying every
// output into a fresh tensor (see Session.Run).
func sessionOptions(ctx context.Context, opts runtime.Options) (*onnxruntime.SessionOptions, error) {
	logger := ctxlog.FromContext(ctx)

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	fail := func(what string, err error) (*onnxruntime.SessionOptions, error) {
		_ = options.Destroy()
		return nil, fmt.Errorf("failed to set %s: %w", what, err)
	}

	if err := options.SetIntraOpNumThreads(opts.NumThreads); err != nil {
		return fail("intra-op threads", err)
	}
	if err := options.SetCpuMemArena(!opts.DisableMemArena); err != nil {
		return fail("cpu memory arena", err)
	}
	if err := options.SetMemPattern(!opts.DisableMemPattern); err != nil {
		return fail("memory pattern", err)
	}

	for _, provider := range runtime.ExpandProviders(ctx, opts.Providers) {
		switch provider {
		case runtime.ProviderCUDA:
			if err := appendCUDA(options, opts.DeviceID); err != nil {
				return fail("CUDA provider", err)
			}
		case runtime.ProviderCoreML:
			if err := options.AppendExecutionProviderCoreML(0); err != nil {
				return fail("CoreML provider", err)
			}
		case runtime.ProviderCPU:
			// Always available as the fallback.
		default:
			_ = options.Destroy()
			return nil, fmt.Errorf("%w: %q", runtime.ErrUnknownProvider, provider)
		}
		logger.Debug("Execution provider enabled.", "provider", provider)
	}

	return options, nil
}

func appendCUDA(options *onnxruntime.SessionOptions, deviceID int) error {
	cuda, err := onnxruntime.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}

// Session is one loaded ONNX Runtime session.
type Session struct {
	path    string
	session *onnxruntime.DynamicAdvancedSession
}

var _ runtime.Session = (*Session)(nil)

// Path implements runtime.Session.
func (s *Session) Path() string { return s.path }

// Run implements runtime.Session. Outputs have the shapes of the inputs;
// they are preallocated, copied into new tensors and destroyed before
// returning.
func (s *Session) Run(_ context.Context, pl, sfc *tensor.RawTensor) (runtime.Output, error) {
	if s.session == nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, runtime.ErrClosed)
	}
	if err := runtime.CheckFloat32(runtime.InputName, pl); err != nil {
		return runtime.Output{}, err
	}
	if err := runtime.CheckFloat32(runtime.InputSurfaceName, sfc); err != nil {
		return runtime.Output{}, err
	}

	inPL, err := onnxruntime.NewTensor(toShape(pl.Shape()), pl.AsFloat32())
	if err != nil {
		return runtime.Output{}, fmt.Errorf("failed to wrap %s: %w", runtime.InputName, err)
	}
	defer inPL.Destroy()

	inSFC, err := onnxruntime.NewTensor(toShape(sfc.Shape()), sfc.AsFloat32())
	if err != nil {
		return runtime.Output{}, fmt.Errorf("failed to wrap %s: %w", runtime.InputSurfaceName, err)
	}
	defer inSFC.Destroy()

	outPL, err := onnxruntime.NewEmptyTensor[float32](toShape(pl.Shape()))
	if err != nil {
		return runtime.Output{}, fmt.Errorf("failed to allocate %s: %w", runtime.OutputName, err)
	}
	defer outPL.Destroy()

	outSFC, err := onnxruntime.NewEmptyTensor[float32](toShape(sfc.Shape()))
	if err != nil {
		return runtime.Output{}, fmt.Errorf("failed to allocate %s: %w", runtime.OutputSurfaceName, err)
	}
	defer outSFC.Destroy()

	if err := s.session.Run(
		[]onnxruntime.Value{inPL, inSFC},
		[]onnxruntime.Value{outPL, outSFC},
	); err != nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, err)
	}

	var out runtime.Output
	if out.PL, err = runtime.NewFloat32(pl.Shape().Clone(), outPL.GetData()); err != nil {
		return runtime.Output{}, err
	}
	if out.SFC, err = runtime.NewFloat32(sfc.Shape().Clone(), outSFC.GetData()); err != nil {
		return runtime.Output{}, err
	}
	return out, nil
}

// Close implements runtime.Session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func toShape(s tensor.Shape) onnxruntime.Shape {
	dims := make([]int64, len(s))
	for i, d := range s {
		dims[i] = int64(d)
	}
	return onnxruntime.NewShape(dims...)
}
