// Package native runs PanguWeather sessions on the Born ONNX executor, in
// pure Go, without the ONNX Runtime shared library.
package native

import (
	"context"
	"fmt"

	"github.com/born-ml/born/onnx"
	"github.com/born-ml/born/tensor"

	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/runtime"
)

// Backend names.
const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
)

// loadFunc loads a model onto a concrete Born backend.
type loadFunc func(path string) (onnx.Model, error)

// Engine opens Born sessions on one backend.
type Engine struct {
	backend string
	load    loadFunc
	release func()
	closed  bool
}

var _ runtime.Engine = (*Engine)(nil)

// New creates an engine on the named backend. NumThreads and the memory
// switches have no effect on Born and are only logged.
func New(ctx context.Context, backend string, opts runtime.Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		load    loadFunc
		release func()
		err     error
	)
	switch backend {
	case "", BackendCPU:
		backend = BackendCPU
		load = cpuLoader()
	case BackendWebGPU:
		load, release, err = webgpuLoader()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown native backend %q", backend)
	}

	ctxlog.FromContext(ctx).Debug("Native engine ignores thread and memory options.",
		"backend", backend, "num_threads", opts.NumThreads)

	return &Engine{backend: backend, load: load, release: release}, nil
}

// Name implements runtime.Engine.
func (e *Engine) Name() string { return "born-" + e.backend }

// Open implements runtime.Engine.
func (e *Engine) Open(_ context.Context, path string) (runtime.Session, error) {
	if e.closed {
		return nil, fmt.Errorf("native engine is closed")
	}
	model, err := e.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := checkSignature(model); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Session{path: path, model: model}, nil
}

// Close implements runtime.Engine.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.release != nil {
		e.release()
	}
	return nil
}

func checkSignature(model onnx.Model) error {
	if err := hasAll("input", model.InputNames(), runtime.InputName, runtime.InputSurfaceName); err != nil {
		return err
	}
	return hasAll("output", model.OutputNames(), runtime.OutputName, runtime.OutputSurfaceName)
}

func hasAll(kind string, names []string, want ...string) error {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, w := range want {
		if !have[w] {
			return fmt.Errorf("model has no %s named %q (has %v)", kind, w, names)
		}
	}
	return nil
}

// Session wraps a loaded Born model.
type Session struct {
	path  string
	model onnx.Model
}

var _ runtime.Session = (*Session)(nil)

// Path implements runtime.Session.
func (s *Session) Path() string { return s.path }

// Run implements runtime.Session. Born may hand back tensors that share
// buffers with its graph state, so outputs are copied.
func (s *Session) Run(_ context.Context, pl, sfc *tensor.RawTensor) (runtime.Output, error) {
	if s.model == nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, runtime.ErrClosed)
	}
	if err := runtime.CheckFloat32(runtime.InputName, pl); err != nil {
		return runtime.Output{}, err
	}
	if err := runtime.CheckFloat32(runtime.InputSurfaceName, sfc); err != nil {
		return runtime.Output{}, err
	}

	outputs, err := s.model.ForwardNamed(map[string]*tensor.RawTensor{
		runtime.InputName:        pl,
		runtime.InputSurfaceName: sfc,
	})
	if err != nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, err)
	}

	var out runtime.Output
	if out.PL, err = detach(runtime.OutputName, outputs[runtime.OutputName]); err != nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, err)
	}
	if out.SFC, err = detach(runtime.OutputSurfaceName, outputs[runtime.OutputSurfaceName]); err != nil {
		return runtime.Output{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return out, nil
}

// Close implements runtime.Session.
func (s *Session) Close() error {
	s.model = nil
	return nil
}

func detach(name string, t *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := runtime.CheckFloat32(name, t); err != nil {
		return nil, err
	}
	return runtime.NewFloat32(t.Shape().Clone(), t.AsFloat32())
}
