// sbt generates one batch script per combination of a parameter matrix and
// submits them to slurm or docker.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sbt/internal/apperrors"
	"sbt/internal/cli"
	"sbt/internal/config"
	"syscall"

	"github.com/fatih/color"
)

func main() {
	os.Exit(run())
}

func run() int {
	tool := config.LoadToolConfig()
	slog.SetDefault(slog.New(newHandler(tool)))
	if tool.NoColor {
		color.NoColor = true
	}

	// Scripts already submitted stay queued; cancellation only stops the rest.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewCommand(tool).ExecuteContext(ctx); err != nil {
		slog.Error("Run failed", "error", err)
		return apperrors.ExitCode(err)
	}
	return apperrors.ExitOK
}

func newHandler(tool *config.ToolConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: tool.LogLevel}
	if tool.LogFormat == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}
