package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fmsync/config"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the running daemon's status",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/status", cfg.StatusAddr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "daemon not reachable at %s: %v\n", cfg.StatusAddr, err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Println(string(body))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
