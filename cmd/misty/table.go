package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// column describes one output column. Numeric columns are right aligned in
// terminal tables.
type column struct {
	Title   string
	Numeric bool
}

func col(title string) column { return column{Title: title} }

func num(title string) column { return column{Title: title, Numeric: true} }

// writeRows renders a rounded table on terminals and tab-separated values
// otherwise so output stays pipeable. Short rows are padded with blanks.
func writeRows(out io.Writer, columns []column, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	if !isTerminal(out) {
		titles := make([]string, len(columns))
		for i, c := range columns {
			titles[i] = c.Title
		}
		fmt.Fprintln(out, strings.Join(titles, "\t"))
		for _, row := range rows {
			fmt.Fprintln(out, strings.Join(padRow(row, len(columns)), "\t"))
		}
		return
	}
	fmt.Fprintln(out, renderTable(columns, rows))
}

func renderTable(columns []column, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Title
		align := text.AlignLeft
		if c.Numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := padRow(row, len(columns))
		r := make(table.Row, len(cells))
		for i, cell := range cells {
			r[i] = cell
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
