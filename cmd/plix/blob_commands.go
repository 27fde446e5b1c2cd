package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pountzas/plix/internal/blobstore"
)

func newBlobCommand(ctx *commandContext) *cobra.Command {
	blobCmd := &cobra.Command{
		Use:   "blob",
		Short: "Local blob store utilities",
	}
	blobCmd.AddCommand(newBlobStatsCommand(ctx))
	blobCmd.AddCommand(newBlobClearCommand(ctx))
	return blobCmd
}

func newBlobStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show blob store usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			blobs, err := blobstore.Open(cfg.BlobStorePath())
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			defer blobs.Close()

			count, totalBytes, err := blobs.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:  %s\n", blobs.Path())
			fmt.Fprintf(out, "Blobs: %d\n", count)
			fmt.Fprintf(out, "Size:  %.1f MB\n", float64(totalBytes)/(1024*1024))
			return nil
		},
	}
}

func newBlobClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to clear the blob store without --force")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			blobs, err := blobstore.Open(cfg.BlobStorePath())
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			defer blobs.Close()

			if err := blobs.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Blob store cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion")
	return cmd
}
