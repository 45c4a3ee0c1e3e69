package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers in a rounded box. Short rows are
// padded; cells past the header count are dropped.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for idx := range configs {
		configs[idx] = table.ColumnConfig{Number: idx + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if idx < len(aligns) && aligns[idx] == alignRight {
			configs[idx].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for idx := range row {
		row[idx] = ""
		if idx < len(cells) {
			row[idx] = cells[idx]
		}
	}
	return row
}
