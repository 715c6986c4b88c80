// Package sheets writes tables to the tabs of a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/sheets/v4"

	"github.com/erikbryant/optionchain/sink"
)

// Size of a newly added tab, grown to fit the first write.
const (
	newTabRows = 200
	newTabCols = 30
)

// Sink is one spreadsheet.
type Sink struct {
	srv           *sheets.Service
	spreadsheetID string
	log           logrus.FieldLogger
}

// New returns a sink writing to the spreadsheet with the given ID.
func New(srv *sheets.Service, spreadsheetID string, log logrus.FieldLogger) *Sink {
	return &Sink{srv: srv, spreadsheetID: spreadsheetID, log: log}
}

// a1Range quotes a tab name for A1 notation: 'It''s a tab'.
func a1Range(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// Tabs returns the tab titles in display order.
func (s *Sink) Tabs(ctx context.Context) ([]string, error) {
	spreadsheet, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read spreadsheet %s: %w", s.spreadsheetID, err)
	}

	var tabs []string
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			tabs = append(tabs, sheet.Properties.Title)
		}
	}

	return tabs, nil
}

// ensureTab adds the tab if the spreadsheet does not have it.
func (s *Sink) ensureTab(ctx context.Context, tab string, rows, cols int) error {
	tabs, err := s.Tabs(ctx)
	if err != nil {
		return err
	}
	for _, t := range tabs {
		if t == tab {
			return nil
		}
	}

	if rows < newTabRows {
		rows = newTabRows
	}
	if cols < newTabCols {
		cols = newTabCols
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: tab,
						GridProperties: &sheets.GridProperties{
							RowCount:    int64(rows),
							ColumnCount: int64(cols),
						},
					},
				},
			},
		},
	}

	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to add tab %q: %w", tab, err)
	}

	if s.log != nil {
		s.log.WithField("tab", tab).Info("Added missing tab")
	}

	return nil
}

// ReplaceTab clears the tab and writes header and rows starting at A1.
func (s *Sink) ReplaceTab(ctx context.Context, tab string, header []string, rows [][]interface{}) error {
	values := make([][]interface{}, 0, len(rows)+1)

	h := make([]interface{}, len(header))
	for i, c := range header {
		h[i] = c
	}
	values = append(values, h)
	values = append(values, rows...)

	if err := s.ensureTab(ctx, tab, len(values), len(header)); err != nil {
		return err
	}

	_, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, a1Range(tab), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear tab %q: %w", tab, err)
	}

	vr := &sheets.ValueRange{Values: values}
	_, err = s.srv.Spreadsheets.Values.Update(s.spreadsheetID, a1Range(tab)+"!A1", vr).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to write tab %q: %w", tab, err)
	}

	return nil
}

// ReadTab returns the formatted values of every row in the tab.
func (s *Sink) ReadTab(ctx context.Context, tab string) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, a1Range(tab)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read tab %q: %w", tab, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, len(r))
		for i, c := range r {
			row[i] = fmt.Sprint(c)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

var _ sink.Sink = (*Sink)(nil)
