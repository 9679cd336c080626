package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"keyplayer/internal/control"
)

var runDuration time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Initialize the boards and execute commands from stdin",
	Long: `Initialize every configured board, then read control lines from stdin
while running the safety sweep. Commands:

  on N | off N | toggle N      switch one channel
  pulse N 120ms                on now, off after the duration
  board B 0xA5                 set all eight channels of board B
  allon | alloff | stop        bulk and emergency stop
  status [N] | read B | reset  inspect and clear statistics

Several commands may share a line separated by ';'. Closing stdin does not
stop the sweep; send SIGINT or SIGTERM, or pass --duration.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runDuration, "duration", 0,
		"stop after this long (0 runs until signalled)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctl, err := control.New(rt.drv, cmd.OutOrStdout(), rt.log)
	if err != nil {
		return err
	}
	go func() {
		if err := ctl.Serve(ctx, cmd.InOrStdin()); err != nil {
			rt.log.WithError(err).Warn("control input failed")
			return
		}
		rt.log.Debug("control input closed")
	}()

	ticker := time.NewTicker(rt.cfg.Notes.SweepInterval)
	defer ticker.Stop()

	rt.log.Info("keyplayer running")
	for {
		select {
		case <-ctx.Done():
			rt.log.Info("keyplayer stopping")
			return nil
		case <-ticker.C:
			// Failures are already logged and published by the driver.
			_ = rt.drv.Update()
		}
	}
}
