package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/messages"
	"github.com/alfredjeanlab/roundtable/internal/store/postgres"
)

var historyCmd = &cobra.Command{
	Use:     "history <session-id>",
	Short:   "Print a session's persisted messages",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		from, _ := cmd.Flags().GetString("from")

		var src messages.HistorySource
		switch from {
		case "api":
			src = apiClient
		case "db":
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("--from db needs ROUNDTABLE_DATABASE_URL")
			}
			db, err := postgres.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			src = db
		default:
			return fmt.Errorf("unknown source %q (must be api or db)", from)
		}

		store := messages.New(id, messages.WithLogger(logger))
		if err := store.Load(cmd.Context(), src); err != nil {
			return err
		}
		msgs := store.Messages()
		if jsonOutput {
			printJSON(msgs)
			return nil
		}
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no messages")
			return nil
		}
		printMessages(cmd.OutOrStdout(), msgs)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("from", "api", "history source (api or db)")
}
