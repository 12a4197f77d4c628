// Package runtime defines the inference engine abstraction used by the
// forecast loop, and the options shared by its implementations.
//
// Two engines exist:
//   - ort: ONNX Runtime through github.com/yalue/onnxruntime_go
//   - native: the pure Go Born ONNX executor (CPU or WebGPU backend)
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Graph input and output names of both PanguWeather models.
const (
	InputName         = "input"
	InputSurfaceName  = "input_surface"
	OutputName        = "output"
	OutputSurfaceName = "output_surface"
)

// ErrClosed is returned by Session.Run after Close.
var ErrClosed = errors.New("session is closed")

// Output is the pair of tensors produced by one session call.
type Output struct {
	PL  *tensor.RawTensor
	SFC *tensor.RawTensor
}

// Session is a loaded inference graph bound to one model file.
//
// Run is functional from the caller's side: the returned tensors are freshly
// allocated and never alias the inputs, runtime buffers, or the output of
// another call.
type Session interface {
	// Run maps (pressure-level, surface) inputs to (pressure-level, surface)
	// outputs. Runtime errors are returned wrapped but otherwise unmodified.
	Run(ctx context.Context, pl, sfc *tensor.RawTensor) (Output, error)

	// Path returns the model file the session was loaded from.
	Path() string

	// Close releases the session.
	Close() error
}

// Engine loads sessions.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Open loads the model file at path.
	Open(ctx context.Context, path string) (Session, error)

	// Close releases engine-wide resources. Sessions must be closed first.
	Close() error
}

// NewFloat32 allocates a CPU float32 tensor of the given shape holding a copy
// of data.
func NewFloat32(shape tensor.Shape, data []float32) (*tensor.RawTensor, error) {
	if n := shape.NumElements(); n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// CheckFloat32 verifies that t is a float32 tensor.
func CheckFloat32(name string, t *tensor.RawTensor) error {
	if t == nil {
		return fmt.Errorf("%s: nil tensor", name)
	}
	if t.DType() != tensor.Float32 {
		return fmt.Errorf("%s: dtype %s, expected float32", name, t.DType())
	}
	return nil
}
