package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/library"
	"github.com/pountzas/plix/internal/media"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var showsOnly bool
	var moviesOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the library collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			docs, err := docstore.Open(cfg.DocumentStorePath())
			if err != nil {
				return fmt.Errorf("open document store: %w", err)
			}
			defer docs.Close()

			gateway := library.New(docs, ctx.ensureLogger(),
				library.WithCacheTTL(time.Duration(cfg.Library.CacheMinutes)*time.Minute))

			out := cmd.OutOrStdout()
			plain := !isatty.IsTerminal(os.Stdout.Fd())

			if !showsOnly {
				movies := gateway.LoadMovies(cmd.Context(), cfg.Library.OwnerID)
				printRecords(out, "Movies", movies, plain)
			}
			if !moviesOnly {
				shows := gateway.LoadTVShows(cmd.Context(), cfg.Library.OwnerID)
				printRecords(out, "TV Episodes", shows, plain)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showsOnly, "shows", false, "List only TV episodes")
	cmd.Flags().BoolVar(&moviesOnly, "movies", false, "List only movies")
	return cmd
}

func printRecords(out io.Writer, heading string, records []media.Record, plain bool) {
	if len(records) == 0 {
		fmt.Fprintf(out, "%s: none\n", heading)
		return
	}

	if plain {
		for _, rec := range records {
			fmt.Fprintf(out, "%s\t%d\t%s\t%s\n", rec.Kind, rec.CatalogID, recordLabel(rec), rec.FileName)
		}
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.CatalogID, 10),
			recordLabel(rec),
			rec.ReleaseInfo,
			fmt.Sprintf("%.1f", rec.Rating),
			rec.FileName,
		})
	}
	fmt.Fprintf(out, "%s:\n", heading)
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "Released", "Rating", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func recordLabel(rec media.Record) string {
	if rec.Kind == media.KindEpisode {
		return fmt.Sprintf("%s S%02dE%02d", rec.Title, rec.Season, rec.Episode)
	}
	return rec.Title
}
