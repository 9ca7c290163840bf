package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrid-audio/astrid/internal/adc"
	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/audio"
	"github.com/astrid-audio/astrid/internal/metrics"
	"github.com/astrid-audio/astrid/internal/queue"
	"github.com/astrid-audio/astrid/internal/scheduler"
	"github.com/astrid-audio/astrid/internal/session"
)

func newRenderCommand() *cobra.Command {
	var instrument string
	c := &cobra.Command{
		Use:   "render",
		Short: "Run one instance of the audio event scheduler for an instrument's play queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), instrument)
		},
	}
	c.Flags().StringVar(&instrument, "instrument", "", "instrument name whose play queue this renderer reads")
	return c
}

// runRender is the renderer's main loop: it reads PLAY messages from its
// instrument's play queue and schedules a buffer for each. Producing the
// actual rendered audio is the embedded interpreter's job and is out of
// scope here; stubInstrument stands in for it so the scheduler has
// something real to mix.
func runRender(parentCtx context.Context, instrument string) error {
	cfg, logger := setupLogger()
	if instrument == "" {
		instrument = "default"
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
	sched := scheduler.New(cfg.Channels, cfg.SampleRate, true, scheduler.WithMetrics(m))
	ring := adc.New(cfg.SampleRate, cfg.Channels)

	runUntilShutdown(logger, func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				msg, err := broker.ReadPlay(ctx, instrument)
				if err != nil {
					return
				}
				switch msg.Type {
				case astridmsg.Shutdown:
					return
				case astridmsg.Play, astridmsg.Trigger:
					buf := stubInstrument(cfg.Channels, cfg.SampleRate, msg)
					sched.ScheduleEvent(buf, 0)
					if err := sessionStore.RecordRender(msg.VoiceID); err != nil {
						logger.Warn("session record render failed", "voice_id", msg.VoiceID, "error", err)
					}
				}
			}
		}()

		ticker := time.NewTicker(time.Second / time.Duration(cfg.SampleRate))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				<-done
				return
			case <-done:
				return
			case <-ticker.C:
				sched.Tick()
				frame := sched.CurrentFrame()
				if err := ring.Write(frame); err != nil {
					logger.Warn("adc write failed, emitting silent frame", "error", err)
					m.SilentFramesTotal.Inc()
				}
			}
		}
	})

	logger.Info("renderer stopped", "instrument", instrument)
	return nil
}

// stubInstrument renders a tenth-of-a-second constant-level (0.1) burst in
// place of real instrument code, just enough signal for the scheduler to
// have something to mix.
func stubInstrument(channels, sampleRate int, msg astridmsg.Message) *audio.Buffer {
	length := sampleRate / 10
	buf := audio.NewBuffer(length, channels, sampleRate)
	for i := 0; i < length; i++ {
		v := float32(0.1)
		for c := 0; c < channels; c++ {
			buf.Data[i*channels+c] = v
		}
	}
	return buf
}
