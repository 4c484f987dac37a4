package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/store"
	"github.com/alfredjeanlab/roundtable/internal/store/postgres"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	Short:   "Manage the local Postgres message mirror",
	GroupID: "data",
}

func openDB() (*postgres.PostgresStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("ROUNDTABLE_DATABASE_URL is not set")
	}
	return postgres.Open(cfg.DatabaseURL)
}

var dbMigrateCmd = &cobra.Command{
	Use:               "migrate",
	Short:             "Apply schema migrations",
	Args:              cobra.NoArgs,
	PersistentPreRunE: localOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
		return nil
	},
}

var dbMirrorCmd = &cobra.Command{
	Use:   "mirror <session-id>",
	Short: "Copy a session's history from the API into Postgres",
	Long: `Copy a session's history from the API into Postgres in one
transaction. Rows already present are left alone, so the command can be
rerun.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		ctx := cmd.Context()

		recs, err := apiClient.LoadHistory(ctx, id)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		added := 0
		err = db.RunInTransaction(ctx, func(tx store.Store) error {
			for i := range recs {
				if recs[i].SessionID == "" {
					recs[i].SessionID = id
				}
				ok, err := tx.AppendMessage(ctx, &recs[i])
				if err != nil {
					return err
				}
				if ok {
					added++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %s: %d new, %d already present\n", id, added, len(recs)-added)
		return nil
	},
}

var dbSessionsCmd = &cobra.Command{
	Use:               "sessions",
	Short:             "List sessions in the mirror, most recent first",
	Args:              cobra.NoArgs,
	PersistentPreRunE: localOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ids, err := db.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(ids)
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbMirrorCmd)
	dbCmd.AddCommand(dbSessionsCmd)
}
