// Package cli implements the ember command-line interface using Cobra.
// Each subcommand talks to the local daemon state directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ember",
	Short: "ember — Thermal-aware task supervision",
	Long: `ember schedules and supervises background work on a single device,
keeping it inside its thermal envelope. Tasks are forecast before they
run, checkpointed while they run, and aborted safely when the device
overheats.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
