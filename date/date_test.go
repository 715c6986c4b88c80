package date

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	testCases := []struct {
		raw         string
		expected    Expiry
		shouldError bool
	}{
		{"21-Aug-2025", NewExpiry(2025, time.August, 21), false},
		{"02-Sep-2025", NewExpiry(2025, time.September, 2), false},
		{"2-Jan-2026", NewExpiry(2026, time.January, 2), false},
		{"21-AUG-2025", NewExpiry(2025, time.August, 21), false},
		{"2025-09-16", NewExpiry(2025, time.September, 16), false},
		{"  2025-09-16 ", NewExpiry(2025, time.September, 16), false},
		{"2025/09/23", NewExpiry(2025, time.September, 23), false},
		{"", Expiry{}, true},
		{"not a date", Expiry{}, true},
	}

	for _, testCase := range testCases {
		answer, err := ParseExpiry(testCase.raw)
		if testCase.shouldError {
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "For %q expected a ParseError, got %v", testCase.raw, err)
			continue
		}
		require.NoError(t, err, "For %q", testCase.raw)
		assert.True(t, answer.Equal(testCase.expected), "For %q expected %v, got %v", testCase.raw, testCase.expected, answer)
	}
}

func TestExpiryOrderingIsByCalendarDate(t *testing.T) {
	// As strings "2-Jan-2026" < "31-Dec-2025"; as dates it is later.
	jan := MustParseExpiry("2-Jan-2026")
	dec := MustParseExpiry("31-Dec-2025")

	assert.True(t, dec.Before(jan))
	assert.True(t, jan.After(dec))
	assert.False(t, jan.Equal(dec))
	assert.True(t, MustParseExpiry("2025-12-31").Equal(dec))
}

func TestExpiryFormatting(t *testing.T) {
	e := NewExpiry(2025, time.September, 2)

	assert.Equal(t, "02-Sep-2025", e.String())
	assert.Equal(t, "2025-09-02", e.ISO())
	assert.Equal(t, "", Expiry{}.String())

	text, err := e.MarshalText()
	require.NoError(t, err)

	var back Expiry
	require.NoError(t, back.UnmarshalText(text))
	assert.True(t, back.Equal(e))
}

func TestFromTimeUsesLocalCalendarDate(t *testing.T) {
	// 20:00 UTC on the 20th is already the 21st in Kolkata.
	utc := time.Date(2025, time.August, 20, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "20-Aug-2025", FromTime(utc).String())
	assert.Equal(t, "21-Aug-2025", FromTime(utc.In(Kolkata())).String())
}
