package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/spf13/cobra"

	"misty/internal/spectrum"
)

func newInspectCommand() *cobra.Command {
	var showCards bool

	cmd := &cobra.Command{
		Use:         "inspect FILE",
		Short:       "Summarize a spectrum product",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := spectrum.ReadContainer(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			columns := []column{num("#"), col("Section"), num("Rows"), num("Cards"), col("Columns")}
			rows := make([][]string, 0, c.Len())
			for i, s := range c.Sections() {
				name := s.Name
				if i == 0 {
					name = "PRIMARY"
				}
				rows = append(rows, []string{
					strconv.Itoa(i),
					name,
					strconv.Itoa(s.Rows()),
					strconv.Itoa(s.Header.Len()),
					strings.Join(s.ColumnNames(), ","),
				})
			}
			writeRows(out, columns, rows)

			if !showCards {
				return nil
			}
			for i, s := range c.Sections() {
				name := s.Name
				if i == 0 {
					name = "PRIMARY"
				}
				fmt.Fprintf(out, "\n[%s]\n", name)
				cardRows := make([][]string, 0, s.Header.Len())
				for _, card := range s.Header.Cards() {
					cardRows = append(cardRows, []string{card.Name, cardValue(card)})
				}
				writeRows(out, []column{col("Key"), col("Value")}, cardRows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCards, "cards", false, "Also print every header card")
	return cmd
}

func cardValue(c fitsio.Card) string {
	switch v := c.Value.(type) {
	case nil:
		return c.Comment
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
