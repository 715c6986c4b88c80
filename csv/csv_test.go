package csv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	header := []string{"CE OI", "Strike Price", "Expiry Date"}
	rows := [][]interface{}{
		{int64(1200), 24500.0, "28-Aug-2025"},
		{int64(0), 24550.5, "28-Aug-2025"},
	}
	require.NoError(t, s.ReplaceTab(ctx, "NIFTY, weekly", header, rows))

	read, err := s.ReadTab(ctx, "NIFTY, weekly")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"CE OI", "Strike Price", "Expiry Date"},
		{"1200", "24500", "28-Aug-2025"},
		{"0", "24550.5", "28-Aug-2025"},
	}, read)

	// Full replace, not append.
	require.NoError(t, s.ReplaceTab(ctx, "NIFTY, weekly", header, nil))
	read, err = s.ReadTab(ctx, "NIFTY, weekly")
	require.NoError(t, err)
	assert.Len(t, read, 1)

	// No temporary files left behind.
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestTabs(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, tab := range []string{"NIFTY", "BANKNIFTY", "a/b"} {
		require.NoError(t, s.ReplaceTab(ctx, tab, []string{"x"}, nil))
	}

	tabs, err := s.Tabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BANKNIFTY", "NIFTY", "a_b"}, tabs)
}

func TestReadMissingTab(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadTab(context.Background(), "nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCell(t *testing.T) {
	testCases := []struct {
		value    interface{}
		expected string
	}{
		{nil, ""},
		{"-", "-"},
		{210.5, "210.5"},
		{float32(1.25), "1.25"},
		{int64(-50), "-50"},
		{true, "true"},
	}

	for _, tc := range testCases {
		answer := cell(tc.value)
		if answer != tc.expected {
			t.Errorf("For %v expected %v, got %v", tc.value, tc.expected, answer)
		}
	}
}
