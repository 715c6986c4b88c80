package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/erikbryant/optionchain/chain"
)

// printTable renders a chain table the way it would appear in its tab.
func printTable(w io.Writer, t chain.Table, layout chain.Layout) {
	s := t.Summarize()
	fmt.Fprintf(w, "%s %s  CE OI %d  PE OI %d  PCR %s\n", t.Symbol, t.Expiry, s.CallOpenInterest, s.PutOpenInterest, s.PutCallRatio)

	printGrid(w, layout.Header(), layout.Rows(t))
}

// printGrid renders sink-ready rows. Nil cells print empty.
func printGrid(w io.Writer, header []string, rows [][]interface{}) {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(r))
		for i, c := range r {
			if c != nil {
				row[i] = fmt.Sprint(c)
			}
		}
		cells = append(cells, row)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.AppendBulk(cells)
	table.Render()
}

// printRows renders rows read back from a sink; the first row is the header.
func printRows(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(rows[0])
	table.AppendBulk(rows[1:])
	table.Render()
}
