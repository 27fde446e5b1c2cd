package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/library"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <catalog-id>",
		Short: "Remove a movie or series from the library",
		Long:  "Soft-deletes every record with the given catalog ID. For a series this removes all of its episodes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || catalogID <= 0 {
				return fmt.Errorf("invalid catalog id %q", args[0])
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Library.OwnerID == "" {
				return fmt.Errorf("library.owner_id is not configured; nothing to remove")
			}

			docs, err := docstore.Open(cfg.DocumentStorePath())
			if err != nil {
				return fmt.Errorf("open document store: %w", err)
			}
			defer docs.Close()

			gateway := library.New(docs, ctx.ensureLogger(),
				library.WithCacheTTL(time.Duration(cfg.Library.CacheMinutes)*time.Minute))

			if err := gateway.Remove(cmd.Context(), cfg.Library.OwnerID, catalogID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed catalog id %d\n", catalogID)
			return nil
		},
	}
}
