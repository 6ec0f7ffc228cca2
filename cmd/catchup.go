package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"fmsync/config"
	"fmsync/db"
	"fmsync/repository"

	"github.com/spf13/cobra"
)

var catchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Reset stuck items and report what is pending",
	Long: `Catchup resets items left mid-fetch by a crashed run back to idle and
prints how many items are waiting for the daemon to pick up.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)

		if err := db.ConnectDB(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer db.CloseDB()

		if err := db.InitDB(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		ctx := context.Background()
		repo := repository.NewMySQLFetchStateRepository(db.DB)

		reset, err := repo.ResetStuckLoadingToIdle(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		pending, err := repo.GetIdlePastDue(ctx, time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Printf("reset %d stuck items, %d pending\n", reset, len(pending))
	},
}

func init() {
	rootCmd.AddCommand(catchupCmd)
}
