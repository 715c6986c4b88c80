// Package csv keeps each tab as a CSV file in a directory.
package csv

import (
	"context"
	ecsv "encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/erikbryant/optionchain/sink"
)

const ext = ".csv"

// Sink writes <dir>/<tab>.csv.
type Sink struct {
	dir string
}

// New returns a sink rooted at dir, creating it if needed.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create CSV directory %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// file returns the path of a tab's file. Path separators in the tab name become underscores.
func (s *Sink) file(tab string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(tab)
	return filepath.Join(s.dir, name+ext)
}

// cell renders a value the way a spreadsheet would display it.
func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// ReplaceTab writes the whole tab to a temporary file and renames it over the old one, so readers see
// either the previous contents or the new ones.
func (s *Sink) ReplaceTab(ctx context.Context, tab string, header []string, rows [][]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(s.dir, ".tab-*"+ext)
	if err != nil {
		return fmt.Errorf("unable to create file for tab %q: %w", tab, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := ecsv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("unable to write tab %q: %w", tab, err)
	}
	for _, r := range rows {
		record := make([]string, len(r))
		for i, c := range r {
			record[i] = cell(c)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("unable to write tab %q: %w", tab, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("unable to write tab %q: %w", tab, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to write tab %q: %w", tab, err)
	}

	if err := os.Rename(tmp, s.file(tab)); err != nil {
		return fmt.Errorf("unable to replace tab %q: %w", tab, err)
	}

	return nil
}

// ReadTab returns every record of the tab, header included.
func (s *Sink) ReadTab(ctx context.Context, tab string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.file(tab))
	if err != nil {
		return nil, fmt.Errorf("unable to read tab %q: %w", tab, err)
	}
	defer f.Close()

	r := ecsv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to parse tab %q: %w", tab, err)
	}

	return rows, nil
}

// Tabs lists the tabs in name order.
func (s *Sink) Tabs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", s.dir, err)
	}

	var tabs []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		tabs = append(tabs, strings.TrimSuffix(name, ext))
	}
	sort.Strings(tabs)

	return tabs, nil
}

var _ sink.Sink = (*Sink)(nil)
