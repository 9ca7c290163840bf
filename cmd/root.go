// Package cmd wires Astrid's process entrypoints: seq (dispatcher),
// render (scheduler), midibridge (notemap maintenance), and send (the
// message-injector CLI). Flag parsing and subcommand wiring follow this
// codebase's cobra.Command + slog/tint setup pattern.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/logging"
)

// NewCommand builds the astridctl root command.
func NewCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:          "astridctl",
		Short:        "Astrid event scheduling and mixing substrate",
		Version:      fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage: true,
	}

	root.AddCommand(newSeqCommand())
	root.AddCommand(newRenderCommand())
	root.AddCommand(newMidibridgeCommand())
	root.AddCommand(newSendCommand())

	return root
}

// setupLogger loads config, installs the tint-backed slog default, and
// returns both for subcommands to share.
func setupLogger() (*config.Config, *slog.Logger) {
	cfg := config.Get()
	logger := logging.Setup(cfg.LogLevel)
	return cfg, logger
}

// runUntilShutdown runs work in a goroutine and blocks until it returns or
// SIGINT/SIGTERM arrives, then cancels ctx and waits up to 10s for work to
// observe cancellation before giving up — the same bounded-wait pattern
// this codebase's shutdown handler uses.
func runUntilShutdown(logger *slog.Logger, work func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		work(ctx)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	case <-done:
		return
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out waiting for workers")
	}
}
