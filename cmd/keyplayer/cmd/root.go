package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	simulate   bool
)

var rootCmd = &cobra.Command{
	Use:   "keyplayer",
	Short: "Solenoid key player for MCP23017 driver boards",
	Long: `Drives up to 64 solenoids through MCP23017 I2C expanders with on-time,
cooldown and duty-cycle protection.

Examples:
  keyplayer scan                               # List expanders on the bus
  keyplayer --sim pulse 3 120ms                # Pulse channel 3 without hardware
  keyplayer --config /etc/keyplayer.yaml play song.mid
  keyplayer --config /etc/keyplayer.yaml run   # Read commands from stdin`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; every command releases all outputs on the way out.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "sim", false,
		"use an in-memory bus instead of /dev/i2c-*")
}
