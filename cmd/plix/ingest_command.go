package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pountzas/plix/internal/blobstore"
	"github.com/pountzas/plix/internal/config"
	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/ingest"
	"github.com/pountzas/plix/internal/library"
	"github.com/pountzas/plix/internal/notifications"
	"github.com/pountzas/plix/internal/parse"
	"github.com/pountzas/plix/internal/preflight"
	"github.com/pountzas/plix/internal/resolve"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var ownerFlag string

	cmd := &cobra.Command{
		Use:   "ingest <directory>",
		Short: "Scan a directory and add its videos to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			if err := preflightIngest(cfg); err != nil {
				return err
			}

			files, err := ingest.ScanDirectory(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No video files found")
				return nil
			}

			client, err := ctx.metadataClient()
			if err != nil {
				return fmt.Errorf("metadata client: %w", err)
			}

			blobs, err := blobstore.Open(cfg.BlobStorePath())
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			defer blobs.Close()

			docs, err := docstore.Open(cfg.DocumentStorePath())
			if err != nil {
				return fmt.Errorf("open document store: %w", err)
			}
			defer docs.Close()

			ownerID := cfg.Library.OwnerID
			if ownerFlag != "" {
				ownerID = ownerFlag
			}

			gateway := library.New(docs, logger,
				library.WithCacheTTL(time.Duration(cfg.Library.CacheMinutes)*time.Minute))

			coordinator, err := ingest.New(ingest.Options{
				Resolver: resolve.New(client, logger),
				Blobs:    blobs,
				Gateway:  gateway,
				Notifier: notifications.NewService(cfg),
				Logger:   logger,
				OwnerID:  ownerID,
				LockDir:  cfg.Paths.DataDir,
			})
			if err != nil {
				return err
			}

			summary, err := coordinator.Run(cmd.Context(), files)
			if summary != nil {
				printSummary(cmd, summary)
			}
			if err != nil {
				return err
			}
			if summary.AuthFailed {
				return fmt.Errorf("metadata API rejected the configured key; fix tmdb.api_key and retry")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerFlag, "owner", "", "Owner ID override (empty uses library.owner_id)")
	return cmd
}

// preflightIngest verifies the working directories before any file is
// touched, so a misconfigured data dir fails the run up front.
func preflightIngest(cfg *config.Config) error {
	checks := []preflight.Result{
		preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	for _, check := range checks {
		if !check.Passed {
			return fmt.Errorf("preflight failed: %s: %s", check.Name, check.Detail)
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary *ingest.Summary) {
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		title := ""
		if outcome.Record != nil {
			title = outcome.Record.Title
		} else if outcome.Status == ingest.StatusUnidentified {
			title = parse.DisplayTitle(outcome.File.Name)
		}
		detail := outcome.Reason
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		rows = append(rows, []string{outcome.File.Name, string(outcome.Status), title, detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Status", "Title", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))

	fmt.Fprintf(out, "Batch %s: %d added, %d updated, %d skipped, %d unidentified, %d failed in %s\n",
		summary.BatchID,
		summary.Added,
		summary.Updated,
		summary.Skipped,
		summary.Unidentified,
		summary.Failed,
		summary.Duration.Round(time.Millisecond))
}
