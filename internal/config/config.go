// Package config loads the run configuration from an HCL file. Attribute
// values may reference environment variables as env.NAME.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/ctxlog"
	"github.com/ai-models/panguweather/internal/runtime"
)

// Runtime names.
const (
	RuntimeONNX   = "onnxruntime"
	RuntimeNative = "native"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Progress configures the socket.io progress publisher.
type Progress struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

// Config is the full run configuration.
type Config struct {
	Assets       string   `hcl:"assets,optional"`
	Input        []string `hcl:"input,optional"`
	OutputDir    string   `hcl:"output_dir,optional"`
	OutputPrefix string   `hcl:"output_prefix,optional"`
	LeadTime     int      `hcl:"lead_time,optional"`

	NumThreads    int      `hcl:"num_threads,optional"`
	Runtime       string   `hcl:"runtime,optional"`
	Providers     []string `hcl:"providers,optional"`
	LibraryPath   string   `hcl:"library_path,optional"`
	DeviceID      int      `hcl:"device_id,optional"`
	NativeBackend string   `hcl:"native_backend,optional"`

	Download    bool              `hcl:"download,optional"`
	DownloadURL string            `hcl:"download_url,optional"`
	Checksums   map[string]string `hcl:"checksums,optional"`

	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`

	Progress *Progress `hcl:"progress,block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Assets:        ".",
		OutputDir:     "output",
		OutputPrefix:  "pangu",
		LeadTime:      240,
		NumThreads:    1,
		Runtime:       RuntimeONNX,
		Providers:     []string{runtime.ProviderCPU},
		NativeBackend: "cpu",
		DownloadURL:   assets.DefaultURL,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads path on top of the defaults. An empty path returns the
// defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	diags = gohcl.DecodeBody(file.Body, evalContext(os.Environ()), cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	logger.Debug("Configuration loaded.", "path", path)

	return cfg, nil
}

// evalContext exposes the environment as the env object.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.LeadTime <= 0 || c.LeadTime%6 != 0 {
		add("lead_time must be a positive multiple of 6, got %d", c.LeadTime)
	}
	switch c.Runtime {
	case RuntimeONNX, RuntimeNative:
	default:
		add("runtime must be %q or %q, got %q", RuntimeONNX, RuntimeNative, c.Runtime)
	}
	switch c.NativeBackend {
	case "cpu", "webgpu":
	default:
		add("native_backend must be \"cpu\" or \"webgpu\", got %q", c.NativeBackend)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		add("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	if c.DeviceID < 0 {
		add("device_id must be >= 0, got %d", c.DeviceID)
	}
	for name := range c.Checksums {
		if !slices.Contains(assets.Files, name) {
			add("checksums: unknown model file %q", name)
		}
	}
	if c.Progress != nil && c.Progress.URL == "" {
		add("progress.url is required")
	}
	if err := c.RuntimeOptions().Validate(); err != nil {
		add("%v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RuntimeOptions returns the session options. Memory arenas, memory
// patterns and memory reuse are always disabled.
func (c *Config) RuntimeOptions() runtime.Options {
	opts := runtime.DefaultOptions()
	opts.NumThreads = c.NumThreads
	if len(c.Providers) > 0 {
		opts.Providers = append([]string(nil), c.Providers...)
	}
	opts.DeviceID = c.DeviceID
	opts.LibraryPath = c.LibraryPath
	return opts
}
