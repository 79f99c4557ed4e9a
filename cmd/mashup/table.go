package main

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxColumnWidth = 60

// renderTable draws a rounded table for terminals and tab-separated lines
// otherwise, so piped output stays easy to cut and grep.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, pretty bool) string {
	if len(headers) == 0 {
		return ""
	}
	if !pretty {
		return renderPlain(headers, rows)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(padRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(padRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            alignmentAt(aligns, i),
			AlignHeader:      text.AlignLeft,
			WidthMax:         maxColumnWidth,
			WidthMaxEnforcer: text.WrapSoft,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// padRow converts cells to a table.Row of exactly width columns.
func padRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

func alignmentAt(aligns []columnAlignment, i int) text.Align {
	if i < len(aligns) && aligns[i] == alignRight {
		return text.AlignRight
	}
	return text.AlignLeft
}

func renderPlain(headers []string, rows [][]string) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(headers, "\t"))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "\t"))
	}
	return strings.Join(lines, "\n")
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
