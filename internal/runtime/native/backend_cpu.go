package native

import (
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/onnx"
)

func cpuLoader() loadFunc {
	b := cpu.New()
	return func(path string) (onnx.Model, error) {
		return onnx.Load(path, b)
	}
}
