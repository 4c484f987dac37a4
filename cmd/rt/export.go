package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session transcript as JSONL",
	Long: `Export a session transcript as JSONL: a header line followed by one
line per message.

Without --dir or --s3 the transcript is written to stdout. --s3 uploads to
ROUNDTABLE_S3_BUCKET. --watch keeps exporting on an interval until
interrupted, then writes a final copy.`,
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		dir, _ := cmd.Flags().GetString("dir")
		toS3, _ := cmd.Flags().GetBool("s3")
		watch, _ := cmd.Flags().GetBool("watch")
		interval, _ := cmd.Flags().GetDuration("interval")
		ctx := cmd.Context()

		var dests []export.Destination
		if dir != "" {
			dests = append(dests, export.NewFileDestination(dir))
		}
		if toS3 {
			if cfg.S3Bucket == "" {
				return fmt.Errorf("--s3 needs ROUNDTABLE_S3_BUCKET")
			}
			d, err := export.NewS3Destination(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
			if err != nil {
				return err
			}
			dests = append(dests, d)
		}

		if len(dests) == 0 {
			if watch {
				return fmt.Errorf("--watch needs --dir or --s3")
			}
			var opts []export.Option
			if s, err := apiClient.GetSession(ctx, id); err == nil {
				opts = append(opts, export.WithSession(s))
			} else {
				logger.Warn("exporting without session header", "error", err)
			}
			return export.Transcript(ctx, apiClient, id, cmd.OutOrStdout(), opts...)
		}

		if watch {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			sched := export.NewScheduler(apiClient, id, dests, interval, nil, logger)
			sched.Start(ctx)
			fmt.Fprintf(cmd.ErrOrStderr(), "Exporting %s every %s (Ctrl-C to stop)\n", id, interval)
			<-ctx.Done()
			sched.Stop()
			return nil
		}

		var buf bytes.Buffer
		if err := export.Transcript(ctx, apiClient, id, &buf); err != nil {
			return err
		}
		name := export.ObjectName(id)
		for _, d := range dests {
			if err := d.Write(ctx, name, buf.Bytes()); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %d destination(s)\n", name, len(dests))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("dir", "", "write the transcript into this directory")
	exportCmd.Flags().Bool("s3", false, "upload the transcript to S3")
	exportCmd.Flags().Bool("watch", false, "keep exporting until interrupted")
	exportCmd.Flags().Duration("interval", time.Minute, "export interval for --watch")
}
