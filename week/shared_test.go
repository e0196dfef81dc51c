package week_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/week"
)

func TestParseSharedRange_Valid(t *testing.T) {
	r, ok := week.ParseSharedRangeIn("05-03-2025--to--11-03-2025", time.UTC)

	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 5), r.Start)
	assert.Equal(t, date(2025, time.March, 11), r.End)
}

func TestParseSharedRange_LocalTime(t *testing.T) {
	r, ok := week.ParseSharedRange("03-03-2025--to--09-03-2025")

	require.True(t, ok)
	assert.Equal(t, time.Local, r.Start.Location())
	assert.Equal(t, 0, r.Start.Hour())
	assert.Equal(t, time.Monday, r.Start.Weekday())
}

func TestParseSharedRange_Unpadded(t *testing.T) {
	r, ok := week.ParseSharedRangeIn("5-3-2025--to--11-3-2025", time.UTC)

	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 5), r.Start)
}

func TestParseSharedRange_Invalid(t *testing.T) {
	tokens := []string{
		"",
		"garbage",
		"05-03-2025",
		"05-03-2025--to--",
		"--to--11-03-2025",
		"32-13-2024--to--01-01-2025",
		"31-02-2025--to--01-03-2025",
		"29-02-2025--to--06-03-2025", // 2025 is not a leap year
		"05-03-2025--to--11-03-2025--to--18-03-2025",
		"05/03/2025--to--11/03/2025",
		"aa-03-2025--to--11-03-2025",
		"+5-03-2025--to--11-03-2025",
		"05-03-2025-1--to--11-03-2025",
		"00-03-2025--to--11-03-2025",
	}
	for _, tok := range tokens {
		t.Run(tok, func(t *testing.T) {
			_, ok := week.ParseSharedRangeIn(tok, time.UTC)
			assert.False(t, ok)
		})
	}
}

func TestParseSharedRange_LeapDay(t *testing.T) {
	r, ok := week.ParseSharedRangeIn("29-02-2024--to--03-03-2024", time.UTC)

	require.True(t, ok)
	assert.Equal(t, date(2024, time.February, 29), r.Start)
}

func TestFormatSharedRange_RoundTrip(t *testing.T) {
	w := week.MustOf(date(2025, time.March, 5))

	token := week.FormatSharedRange(w.Range())

	assert.Equal(t, "03-03-2025--to--09-03-2025", token)
	r, ok := week.ParseSharedRangeIn(token, time.UTC)
	require.True(t, ok)
	assert.True(t, week.SameDay(r.Start, w.Start))
	assert.True(t, week.SameDay(r.End, w.End))
}
