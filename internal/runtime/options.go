package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Execution provider names, as used by ONNX Runtime.
const (
	ProviderCPU    = "CPUExecutionProvider"
	ProviderCUDA   = "CUDAExecutionProvider"
	ProviderCoreML = "CoreMLExecutionProvider"

	// ProviderAuto expands to CUDA when a GPU is detected, then CPU.
	ProviderAuto = "auto"
)

// ErrUnknownProvider is returned for provider names no engine understands.
var ErrUnknownProvider = errors.New("unknown execution provider")

// Options configures session creation.
type Options struct {
	// NumThreads bounds intra-operation parallelism (default 1).
	NumThreads int

	// Providers lists execution providers in order of preference.
	Providers []string

	// DeviceID selects the GPU for GPU providers.
	DeviceID int

	// LibraryPath is the ONNX Runtime shared library. Empty uses the
	// binding's platform default.
	LibraryPath string

	// Memory switches. All default to true so that every call gets its own
	// buffers.
	DisableMemArena   bool
	DisableMemPattern bool
	DisableMemReuse   bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		NumThreads:        1,
		Providers:         []string{ProviderCPU},
		DisableMemArena:   true,
		DisableMemPattern: true,
		DisableMemReuse:   true,
	}
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.NumThreads < 1 {
		return fmt.Errorf("num_threads must be >= 1, got %d", o.NumThreads)
	}
	for _, p := range o.Providers {
		switch p {
		case ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderAuto:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
		}
	}
	return nil
}

// gpuLister runs "nvidia-smi -L". Replaced in tests.
var gpuLister = func(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
}

// DetectGPUs returns the number of NVIDIA GPUs reported by nvidia-smi, or 0
// when the tool is missing or fails.
func DetectGPUs(ctx context.Context) int {
	out, err := gpuLister(ctx)
	if err != nil {
		return 0
	}
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "GPU") {
			n++
		}
	}
	return n
}

// ExpandProviders replaces ProviderAuto and drops duplicates. An empty list
// becomes [CPU].
func ExpandProviders(ctx context.Context, providers []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range providers {
		if p != ProviderAuto {
			add(p)
			continue
		}
		if DetectGPUs(ctx) > 0 {
			add(ProviderCUDA)
		}
		add(ProviderCPU)
	}
	if len(out) == 0 {
		out = []string{ProviderCPU}
	}
	return out
}
