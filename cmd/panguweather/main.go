// Package main provides the panguweather command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ai-models/panguweather/internal/app"
	"github.com/ai-models/panguweather/internal/cli"
)

func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run parses args and executes the command. Logs go to logW, command
// output to outW.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(ctx, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	a := app.New(cmd.Config, logW)
	switch cmd.Name {
	case cli.CmdDownload:
		paths, err := a.Download(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(outW, paths.Model24)
		fmt.Fprintln(outW, paths.Model6)
		return nil
	case cli.CmdInfo:
		return a.Info(ctx, outW)
	default:
		return a.Run(ctx)
	}
}
