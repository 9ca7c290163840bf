package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/dispatch"
	"github.com/astrid-audio/astrid/internal/ipc"
	"github.com/astrid-audio/astrid/internal/metrics"
	"github.com/astrid-audio/astrid/internal/queue"
	"github.com/astrid-audio/astrid/internal/session"
)

func newSeqCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seq",
		Short: "Run the deadline dispatcher (feeder + dispatcher) against the broker queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeq(cmd.Context())
		},
	}
}

func runSeq(parentCtx context.Context) error {
	cfg, logger := setupLogger()

	store, err := ipc.New(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	voiceCounterPath := ipc.Path(cfg, "voice-id")
	if _, err := ipc.NewCounter(parentCtx, store, voiceCounterPath); err != nil {
		return err
	}

	broker, err := queue.NewBroker(cfg)
	if err != nil {
		return err
	}
	defer broker.Close()

	sessionStore, err := session.Open(cfg.SessionDSN)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	m := metrics.New()
	metricsSrv := metrics.Server(parentCtx, cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil {
			logger.Debug("metrics server stopped", "error", err)
		}
	}()

	svc := dispatch.NewService(cfg, broker, broker, m, logger, sessionStore)

	runUntilShutdown(logger, func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			svc.Run(ctx)
			close(done)
		}()

		<-ctx.Done()
		// Unblock the feeder, which is parked in a blocking Read on the
		// broker queue: inject an in-band SHUTDOWN message so it wakes up
		// instead of blocking forever.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := broker.Send(shutdownCtx, astridmsg.Message{Type: astridmsg.Shutdown}); err != nil {
			logger.Warn("failed to inject shutdown message", "error", err)
		}
		<-done
	})

	logger.Info("sequencer stopped")
	return nil
}
