// Package sink defines where normalized tables are written.
package sink

import "context"

// Sink is a spreadsheet-like store of named tabs.
type Sink interface {
	// ReplaceTab clears the tab, creating it if absent, and writes header then rows from the top-left cell.
	ReplaceTab(ctx context.Context, tab string, header []string, rows [][]interface{}) error
	// ReadTab returns every row of the tab, header included, as displayed text.
	ReadTab(ctx context.Context, tab string) ([][]string, error)
	// Tabs lists the tab names in display order.
	Tabs(ctx context.Context) ([]string, error)
}
