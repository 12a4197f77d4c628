package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ai-models/panguweather/internal/config"
	"github.com/ai-models/panguweather/internal/ctxlog"
)

// Version is the program version.
const Version = "v0.1.0"

// Commands.
const (
	CmdRun      = "run"
	CmdDownload = "download"
	CmdInfo     = "info"
	CmdVersion  = "version"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is a parsed invocation.
type Command struct {
	Name   string
	Config *config.Config
}

// listFlag collects comma-separated or repeated values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

const usage = `
panguweather - PanguWeather forecasts with ONNX models.

Usage:
  panguweather <command> [options]

Commands:
  run        Run a forecast from input field files.
  download   Download missing model files into the assets directory.
  info       Show the inputs and outputs of the model files.
  version    Print the version.

Options:
`

// Parse processes command-line arguments. It returns the command to run,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(ctx context.Context, args []string, output io.Writer) (*Command, bool, error) {
	logger := ctxlog.FromContext(ctx)

	flagSet := flag.NewFlagSet("panguweather", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	if len(args) == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	name := args[0]
	switch name {
	case CmdVersion:
		fmt.Fprintf(output, "panguweather %s\n", Version)
		return nil, true, nil
	case "help", "-h", "-help", "--help":
		flagSet.Usage()
		return nil, true, nil
	case CmdRun, CmdDownload, CmdInfo:
	default:
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", name)}
	}

	var (
		inputs    listFlag
		providers listFlag
	)
	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	assetsFlag := flagSet.String("assets", "", "Directory holding the model files.")
	flagSet.Var(&inputs, "input", "Input field file(s), comma-separated or repeated.")
	outputFlag := flagSet.String("output", "", "Output directory.")
	leadTimeFlag := flagSet.Int("lead-time", 0, "Forecast lead time in hours, a multiple of 6.")
	threadsFlag := flagSet.Int("num-threads", 0, "Intra-op threads of the inference runtime.")
	runtimeFlag := flagSet.String("runtime", "", "Inference runtime: 'onnxruntime' or 'native'.")
	flagSet.Var(&providers, "providers", "Execution providers in order of preference, or 'auto'.")
	backendFlag := flagSet.String("native-backend", "", "Backend of the native runtime: 'cpu' or 'webgpu'.")
	libraryFlag := flagSet.String("library-path", "", "Path to the ONNX Runtime shared library.")
	deviceFlag := flagSet.Int("device-id", 0, "GPU device id.")
	downloadFlag := flagSet.Bool("download", false, "Download missing model files before running.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	progressFlag := flagSet.String("progress-url", "", "socket.io URL receiving progress events.")

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
	}

	cfg, err := config.Load(ctx, *configFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// Flags given explicitly override the file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "assets":
			cfg.Assets = *assetsFlag
		case "input":
			cfg.Input = inputs
		case "output":
			cfg.OutputDir = *outputFlag
		case "lead-time":
			cfg.LeadTime = *leadTimeFlag
		case "num-threads":
			cfg.NumThreads = *threadsFlag
		case "runtime":
			cfg.Runtime = strings.ToLower(*runtimeFlag)
		case "providers":
			cfg.Providers = providers
		case "native-backend":
			cfg.NativeBackend = strings.ToLower(*backendFlag)
		case "library-path":
			cfg.LibraryPath = *libraryFlag
		case "device-id":
			cfg.DeviceID = *deviceFlag
		case "download":
			cfg.Download = *downloadFlag
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		case "log-format":
			cfg.LogFormat = strings.ToLower(*logFormatFlag)
		case "progress-url":
			if cfg.Progress == nil {
				cfg.Progress = &config.Progress{}
			}
			cfg.Progress.URL = *progressFlag
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if name == CmdRun && len(cfg.Input) == 0 {
		return nil, false, &ExitError{Code: 2, Message: "run needs at least one -input file"}
	}

	logger.Debug("CLI parser finished successfully.", "command", name)
	return &Command{Name: name, Config: cfg}, false, nil
}
