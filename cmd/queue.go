package cmd

import (
	"context"
	"fmt"
	"os"

	"fmsync/config"
	"fmsync/db"
	"fmsync/model"
	"fmsync/repository"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue <item-type> <item-id>",
	Short: "Queue a catalog item for background fetching",
	Long:  `Queue marks an artist, album, track or discography for fetching by the running daemon.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		itemType := model.ItemType(args[0])
		itemID := args[1]

		switch itemType {
		case model.ItemTypeArtist, model.ItemTypeAlbum, model.ItemTypeTrack, model.ItemTypeDiscography:
		default:
			fmt.Fprintf(os.Stderr, "unknown item type %q (want artist, album, track or discography)\n", args[0])
			os.Exit(1)
		}

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

		repo := repository.NewMySQLFetchStateRepository(db.DB)
		state := &model.FetchState{
			ItemID:   itemID,
			ItemType: itemType,
			Status:   model.FetchStatusIdle,
		}
		if err := repo.Upsert(context.Background(), state); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Printf("queued %s %s\n", itemType, itemID)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
