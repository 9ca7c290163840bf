package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/midi"
	"github.com/astrid-audio/astrid/internal/queue"
)

// newMidibridgeCommand wires notemap maintenance: append/remove/trigger
// against the per-(device, note) trigger-map file. Converting raw MIDI
// bytes into these calls is a transport-layer concern outside this stub's
// scope; midibridge only maintains and fires the notemap itself.
func newMidibridgeCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "midibridge",
		Short: "Maintain and trigger per-note trigger maps",
	}
	root.AddCommand(newMidibridgeAddCommand())
	root.AddCommand(newMidibridgeRemoveCommand())
	root.AddCommand(newMidibridgeTriggerCommand())
	return root
}

func newMidibridgeAddCommand() *cobra.Command {
	var device, note int
	var instrument, msgArg string
	c := &cobra.Command{
		Use:   "add <msgtype> --device N --note N --instrument NAME [--msg TEXT]",
		Short: "Append a message to a note's trigger map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := setupLogger()
			t, ok := astridmsg.TypeFromCLIChar(args[0][0])
			if !ok {
				return fmt.Errorf("unknown message type %q", args[0])
			}
			nm := midi.Open(cfg, device, note)
			return nm.Append(astridmsg.Message{
				Type:           t,
				InstrumentName: instrument,
				Msg:            msgArg,
			})
		},
	}
	c.Flags().IntVar(&device, "device", 0, "MIDI device index")
	c.Flags().IntVar(&note, "note", 0, "MIDI note number")
	c.Flags().StringVar(&instrument, "instrument", "", "target instrument name")
	c.Flags().StringVar(&msgArg, "msg", "", "message payload")
	return c
}

func newMidibridgeRemoveCommand() *cobra.Command {
	var device, note int
	c := &cobra.Command{
		Use:   "remove <index> --device N --note N",
		Short: "Tombstone a slot in a note's trigger map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := setupLogger()
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			nm := midi.Open(cfg, device, note)
			return nm.Remove(index)
		},
	}
	c.Flags().IntVar(&device, "device", 0, "MIDI device index")
	c.Flags().IntVar(&note, "note", 0, "MIDI note number")
	return c
}

func newMidibridgeTriggerCommand() *cobra.Command {
	var device, note int
	c := &cobra.Command{
		Use:   "trigger --device N --note N",
		Short: "Fire every live message in a note's trigger map onto the broker queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setupLogger()
			broker, err := queue.NewBroker(cfg)
			if err != nil {
				return err
			}
			defer broker.Close()

			nm := midi.Open(cfg, device, note)
			if err := nm.Trigger(cmd.Context(), broker); err != nil {
				return err
			}
			logger.Info("notemap triggered", "device", device, "note", note)
			return nil
		},
	}
	c.Flags().IntVar(&device, "device", 0, "MIDI device index")
	c.Flags().IntVar(&note, "note", 0, "MIDI note number")
	return c
}
