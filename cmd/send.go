package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/ipc"
	"github.com/astrid-audio/astrid/internal/queue"
)

// newSendCommand builds the message-injector CLI: a single-char
// discriminant (p/t/l/s/k) followed by an instrument name and optional
// trailing arguments, enqueued onto the broker queue. Exit code is 0 on
// successful enqueue and non-zero on any transport failure, so send is
// scriptable from shell and MIDI-bridge processes alike.
func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <msgtype> [instrument] [args...]",
		Short: "Inject a control message onto the broker queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), args)
		},
	}
}

func runSend(ctx context.Context, args []string) error {
	cfg, logger := setupLogger()

	if len(args[0]) != 1 {
		return fmt.Errorf("msgtype must be a single character, got %q", args[0])
	}
	t, ok := astridmsg.TypeFromCLIChar(args[0][0])
	if !ok {
		return fmt.Errorf("unknown msgtype %q, want one of p/t/l/s/k", args[0])
	}

	msg := astridmsg.Message{Type: t}
	rest := args[1:]

	if t != astridmsg.Shutdown {
		if len(rest) < 1 {
			return fmt.Errorf("msgtype %q requires an instrument name", args[0])
		}
		msg.InstrumentName = rest[0]
		rest = rest[1:]
	}

	switch t {
	case astridmsg.Trigger, astridmsg.StopVoice:
		if len(rest) < 1 {
			return fmt.Errorf("msgtype %q requires a voice id", args[0])
		}
		voiceID, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid voice id %q: %w", rest[0], err)
		}
		msg.VoiceID = voiceID
		rest = rest[1:]
	case astridmsg.Play:
		store, err := ipc.New(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		counter, err := ipc.NewCounter(ctx, store, ipc.Path(cfg, "voice-id"))
		if err != nil {
			return err
		}
		voiceID, err := counter.ReadAndIncrement(ctx)
		if err != nil {
			return err
		}
		msg.VoiceID = voiceID
	}

	if len(rest) > 0 {
		msg.Msg = strings.Join(rest, " ")
	}

	broker, err := queue.NewBroker(cfg)
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := broker.Send(ctx, msg); err != nil {
		return err
	}

	logger.Info("message sent", "type", t.String(), "instrument", msg.InstrumentName, "voice_id", msg.VoiceID)
	return nil
}
