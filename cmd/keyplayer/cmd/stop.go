package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Force every output off",
	Long: `Force every output on every configured board low and drop the supply
interlock. Use it to recover after a crash left coils energized.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.drv.EmergencyStop(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "all outputs off on %d board(s)\n", rt.drv.BoardCount())
	return nil
}
