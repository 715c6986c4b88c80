package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSpreadsheet serves the handful of Sheets v4 calls the sink makes, keeping tabs in memory.
type fakeSpreadsheet struct {
	mu     sync.Mutex
	order  []string
	tabs   map[string][][]interface{}
	calls  []string
	update string
}

func tabOf(r string) string {
	r = strings.TrimSuffix(r, ":clear")
	if i := strings.LastIndex(r, "!"); i >= 0 {
		r = r[:i]
	}
	r = strings.TrimSuffix(strings.TrimPrefix(r, "'"), "'")
	return strings.ReplaceAll(r, "''", "'")
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1")
	f.calls = append(f.calls, r.Method+" "+rest)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && rest == "":
		var resp sheets.Spreadsheet
		for _, t := range f.order {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPost && rest == ":batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			p := rq.AddSheet.Properties
			if p.GridProperties.RowCount < 200 || p.GridProperties.ColumnCount < 30 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.order = append(f.order, p.Title)
			f.tabs[p.Title] = nil
		}
		_, _ = w.Write([]byte(`{}`))

	case strings.HasPrefix(rest, "/values/"):
		tab := tabOf(strings.TrimPrefix(rest, "/values/"))
		if _, ok := f.tabs[tab]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "Unable to parse range"}}`))
			return
		}
		switch r.Method {
		case http.MethodPost:
			f.tabs[tab] = nil
			_, _ = w.Write([]byte(`{}`))
		case http.MethodPut:
			f.update = r.URL.Query().Get("valueInputOption")
			var vr sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			f.tabs[tab] = vr.Values
			_, _ = w.Write([]byte(`{}`))
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: f.tabs[tab]})
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestSink(t *testing.T, tabs ...string) (*Sink, *fakeSpreadsheet, *test.Hook) {
	t.Helper()
	f := &fakeSpreadsheet{tabs: map[string][][]interface{}{}}
	for _, tab := range tabs {
		f.order = append(f.order, tab)
		f.tabs[tab] = [][]interface{}{{"stale"}}
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	ctx := context.Background()
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(server.Client()), option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	return New(srv, "sheet-1", log), f, hook
}

func TestA1Range(t *testing.T) {
	testCases := []struct {
		tab      string
		expected string
	}{
		{"NIFTY", "'NIFTY'"},
		{"NIFTY Weekly", "'NIFTY Weekly'"},
		{"Trader's", "'Trader''s'"},
	}

	for _, tc := range testCases {
		answer := a1Range(tc.tab)
		if answer != tc.expected {
			t.Errorf("For %v expected %v, got %v", tc.tab, tc.expected, answer)
		}
	}
}

func TestReplaceExistingTab(t *testing.T) {
	s, f, hook := newTestSink(t, "Sheet1", "NIFTY")
	ctx := context.Background()

	err := s.ReplaceTab(ctx, "NIFTY", []string{"Strike Price", "CE OI"}, [][]interface{}{{24500.0, int64(10)}})
	require.NoError(t, err)

	assert.Equal(t, "USER_ENTERED", f.update)
	assert.Equal(t, []string{"Sheet1", "NIFTY"}, f.order)
	assert.Empty(t, hook.Entries)

	rows, err := s.ReadTab(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Strike Price", "CE OI"}, {"24500", "10"}}, rows)

	// Cleared before it was written.
	require.Len(t, f.calls, 4)
	assert.True(t, strings.HasSuffix(f.calls[1], ":clear"), f.calls[1])
	assert.True(t, strings.HasPrefix(f.calls[2], "PUT"), f.calls[2])
}

func TestReplaceAddsMissingTab(t *testing.T) {
	s, f, hook := newTestSink(t, "Sheet1")
	ctx := context.Background()

	require.NoError(t, s.ReplaceTab(ctx, "BANKNIFTY Weekly", []string{"Strike Price"}, nil))

	tabs, err := s.Tabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "BANKNIFTY Weekly"}, tabs)
	assert.Equal(t, [][]interface{}{{"Strike Price"}}, f.tabs["BANKNIFTY Weekly"])
	assert.Len(t, hook.Entries, 1)

	// Second write finds the tab.
	require.NoError(t, s.ReplaceTab(ctx, "BANKNIFTY Weekly", []string{"Strike Price"}, nil))
	assert.Len(t, hook.Entries, 1)
}

func TestReadMissingTab(t *testing.T) {
	s, _, _ := newTestSink(t)

	_, err := s.ReadTab(context.Background(), "nope")
	assert.Error(t, err)
}
