// Package cli implements the fitquest command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myeasy-ai/fitquest/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "fitquest",
	Short: "fitquest: streaks, XP, trophies and challenges for training apps",
	Long: `fitquest keeps per-user gamification state for a fitness app:
streaks, levels, trophies, badges, daily and weekly challenges and goals.

Run 'fitquest serve' for the HTTP API, or record activity directly.`,
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

// openDaemon is replaced in tests.
var openDaemon = daemon.New
