package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newLinesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lines [QUERY...]",
		Short: "List spectral lines",
		Long: `List spectral lines from the configured database.

Queries use the same vocabulary as generate --line; without a query every
line is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.lineDatabase()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"all"}
			}
			lines, err := db.Resolve(args...)
			if err != nil {
				return err
			}

			columns := []column{col("Name"), col("Identifier"), num("Wavelength"), num("f"), num("Gamma"), col("Field")}
			rows := make([][]string, 0, len(lines))
			for _, l := range lines {
				rows = append(rows, []string{
					l.Name,
					l.Identifier,
					strconv.FormatFloat(l.Wavelength, 'f', 4, 64),
					strconv.FormatFloat(l.FValue, 'g', 4, 64),
					strconv.FormatFloat(l.Gamma, 'e', 3, 64),
					l.Field,
				})
			}
			writeRows(cmd.OutOrStdout(), columns, rows)
			return nil
		},
	}
}
