package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pountzas/plix/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{result.Name, yesNo(result.Passed), result.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "OK", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if !preflight.AllPassed(results) {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}
