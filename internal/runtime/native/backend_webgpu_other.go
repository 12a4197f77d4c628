//go:build !windows

package native

import "fmt"

func webgpuLoader() (loadFunc, func(), error) {
	return nil, nil, fmt.Errorf("webgpu backend is only available on windows builds")
}
