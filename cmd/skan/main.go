package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/macropower/skan/internal/cli"
	"github.com/macropower/skan/pkg/telemetry"
	"github.com/macropower/skan/pkg/version"
)

func main() {
	err := run()
	if err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, "skan", version.GetVersion())
	if err != nil {
		slog.Warn("telemetry setup", slog.Any("err", err))
	}
	if shutdown != nil {
		defer func() {
			err := shutdown(context.Background())
			if err != nil {
				slog.Error("telemetry shutdown", slog.Any("err", err))
			}
		}()
	}

	return fang.Execute(ctx, cli.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithErrorHandler(cli.ErrorHandler),
		fang.WithColorSchemeFunc(cli.ColorSchemeFunc),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}
