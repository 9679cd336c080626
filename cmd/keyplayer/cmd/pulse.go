package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"keyplayer/internal/solenoid"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse CHANNEL DURATION",
	Short: "Energize one channel for a duration",
	Long: `Energize one channel, wait, and release it. The duration is clamped to
safety.max_on_time.

Examples:
  keyplayer pulse 0 80ms
  keyplayer --sim pulse 63 1s`,
	Args: cobra.ExactArgs(2),
	RunE: runPulse,
}

func init() {
	rootCmd.AddCommand(pulseCmd)
}

func runPulse(cmd *cobra.Command, args []string) error {
	ch, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid channel %q: %w", args[0], err)
	}
	d, err := time.ParseDuration(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[1], err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be > 0")
	}

	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.drv.Pulse(cmd.Context(), solenoid.Channel(ch), d); err != nil {
		return err
	}
	st, _ := rt.drv.Stats(solenoid.Channel(ch))
	fmt.Fprintf(cmd.OutOrStdout(), "pulsed channel %d (board %d pin %d) for %s\n", ch, st.Board, st.Pin, st.TotalOnTime.Round(time.Millisecond))
	return nil
}
