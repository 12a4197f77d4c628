package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/born-ml/born/onnx"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/runtime"
)

// modelInfo is replaced in tests.
var modelInfo = onnx.GetModelInfo

// Info prints the graph signature of both model files and checks the
// input and output names the forecast relies on.
func (a *App) Info(ctx context.Context, out io.Writer) error {
	ctx = a.Context(ctx)

	paths, err := assets.Resolve(a.cfg.Assets)
	if err != nil {
		return err
	}

	var bad []string
	for _, path := range []string{paths.Model24, paths.Model6} {
		info, err := modelInfo(path)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", path, err)
		}
		sum, err := assets.Checksum(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		fmt.Fprintf(out, "%s\n", filepath.Base(path))
		fmt.Fprintf(out, "  sha256: %s\n", sum)
		fmt.Fprintf(out, "  producer: %s %s\n", info.ProducerName, info.ProducerVersion)
		fmt.Fprintf(out, "  ir version: %d, opset: %d\n", info.IRVersion, info.OpsetVersion)
		fmt.Fprintf(out, "  nodes: %d, weights: %d\n", info.NodeCount, info.WeightCount)
		fmt.Fprintf(out, "  inputs: %s\n", strings.Join(info.InputNames, ", "))
		fmt.Fprintf(out, "  outputs: %s\n", strings.Join(info.OutputNames, ", "))

		for _, name := range []string{runtime.InputName, runtime.InputSurfaceName} {
			if !slices.Contains(info.InputNames, name) {
				bad = append(bad, fmt.Sprintf("%s: no input %q", filepath.Base(path), name))
			}
		}
		for _, name := range []string{runtime.OutputName, runtime.OutputSurfaceName} {
			if !slices.Contains(info.OutputNames, name) {
				bad = append(bad, fmt.Sprintf("%s: no output %q", filepath.Base(path), name))
			}
		}
	}

	if len(bad) > 0 {
		a.logger.WarnContext(ctx, "Unexpected model signature.", "problems", bad)
		return fmt.Errorf("unexpected model signature: %s", strings.Join(bad, "; "))
	}
	return nil
}
