package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List MCP23017 expanders that answer on the bus",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	configured := map[uint8]bool{}
	for _, a := range rt.cfg.Addresses() {
		configured[a] = true
	}

	found := rt.drv.Scan()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d device(s)\n", len(found))
	seen := map[uint8]bool{}
	for _, a := range found {
		seen[a] = true
		note := ""
		if configured[a] {
			note = " (configured)"
		}
		fmt.Fprintf(out, "  0x%02X%s\n", a, note)
	}
	for _, a := range rt.cfg.Addresses() {
		if !seen[a] {
			fmt.Fprintf(out, "  0x%02X configured but missing\n", a)
		}
	}
	return nil
}
