//go:build windows

package native

import (
	"fmt"

	"github.com/born-ml/born/backend/webgpu"
	"github.com/born-ml/born/onnx"
)

func webgpuLoader() (loadFunc, func(), error) {
	if !webgpu.IsAvailable() {
		return nil, nil, fmt.Errorf("webgpu backend: no compatible adapter")
	}
	gpu, err := webgpu.New()
	if err != nil {
		return nil, nil, fmt.Errorf("webgpu backend: %w", err)
	}
	load := func(path string) (onnx.Model, error) {
		return onnx.Load(path, gpu)
	}
	return load, gpu.Release, nil
}
