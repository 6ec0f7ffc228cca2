package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fmsync",
	Short: "FMSync keeps the local media catalog in sync with the server.",
	Long: `FMSync is the offline-first sync daemon of the media catalog app.
It mirrors artists, albums, tracks and discographies into the local store,
retries failed fetches with typed backoff, and catches up after reconnects.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
