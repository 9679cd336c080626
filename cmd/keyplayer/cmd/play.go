package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keyplayer/internal/logging"
	"keyplayer/internal/notemap"
)

var playCmd = &cobra.Command{
	Use:   "play FILE.mid",
	Short: "Play a standard MIDI file",
	Long: `Play every note of a standard MIDI file. Channel 0 sounds notes.base_note
and each following channel one semitone higher; notes outside the installed
channels are skipped. Notes refused by the safety limits are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	p := &notemap.Player{
		Mapper: notemap.Mapper{
			Base:        uint8(rt.cfg.Notes.BaseNote),
			Channels:    rt.drv.ChannelCount(),
			MIDIChannel: rt.cfg.Notes.MIDIChannel,
		},
		Sweep: rt.cfg.Notes.SweepInterval,
		Log:   logging.Component(rt.log, "player"),
	}
	rt.log.WithField("file", args[0]).Info("playing")
	err = p.Play(cmd.Context(), f, rt.drv)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "played %s\n", args[0])
	return nil
}
