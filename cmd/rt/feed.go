package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/feed"
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	Short:   "Insert feed plumbing",
	GroupID: "data",
}

var feedRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward Postgres message inserts to NATS",
	Long: `Listen for message inserts in Postgres and publish each row to its
session subject on NATS, so followers only need a NATS connection.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: localOnly,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" || cfg.NATSURL == "" {
			return fmt.Errorf("relay needs both ROUNDTABLE_DATABASE_URL and ROUNDTABLE_NATS_URL")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pg, err := feed.NewPGFeed(cfg.DatabaseURL, db, logger)
		if err != nil {
			return err
		}
		defer pg.Close()

		pub, err := feed.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()

		logger.Info("relaying message inserts", "nats_url", cfg.NATSURL)
		n, err := feed.Relay(ctx, pg, pub, logger)
		if err != nil {
			return err
		}
		if err := pub.Flush(); err != nil {
			logger.Warn("flushing NATS", "error", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Relayed %d messages\n", n)
		return nil
	},
}

func init() {
	feedCmd.AddCommand(feedRelayCmd)
}
