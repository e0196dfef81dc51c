package week_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/week"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekEnd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// =============================================================================
// OF
// =============================================================================

func TestOf_Wednesday(t *testing.T) {
	// GIVEN: Wednesday 5 March 2025, mid-afternoon
	wed := time.Date(2025, time.March, 5, 14, 30, 0, 0, time.UTC)

	// WHEN
	w, err := week.Of(wed)

	// THEN: the week runs Monday 3 to Sunday 9 March
	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-3", w.ID)
	assert.Equal(t, date(2025, time.March, 3), w.Start)
	assert.Equal(t, weekEnd(2025, time.March, 9), w.End)
}

func TestOf_SundayRollsBackSixDays(t *testing.T) {
	sun := time.Date(2025, time.March, 9, 23, 0, 0, 0, time.UTC)

	w, err := week.Of(sun)

	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-3", w.ID)
	assert.Equal(t, date(2025, time.March, 3), w.Start)
}

func TestOf_MondayMidnightIsItsOwnStart(t *testing.T) {
	w, err := week.Of(date(2025, time.March, 10))

	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-10", w.ID)
	assert.Equal(t, date(2025, time.March, 10), w.Start)
}

func TestOf_CrossesYear(t *testing.T) {
	// GIVEN: New Year's Day 2025 is a Wednesday
	w, err := week.Of(date(2025, time.January, 1))

	// THEN: the week starts in 2024 and the id uses the start's year
	require.NoError(t, err)
	assert.Equal(t, "week-2024-12-30", w.ID)
	assert.Equal(t, weekEnd(2025, time.January, 5), w.End)
	assert.Equal(t, "Dec 30, 2024 - Jan 5, 2025", w.Label())
}

func TestOf_ZeroTimeIsInvalid(t *testing.T) {
	_, err := week.Of(time.Time{})

	require.Error(t, err)
	assert.ErrorIs(t, err, week.ErrInvalidDate)
	var dateErr *week.InvalidDateError
	assert.ErrorAs(t, err, &dateErr)
	assert.True(t, week.IsClientError(err))
}

func TestOf_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 20:00 UTC on Sunday is already Monday in UTC+10
	t1 := time.Date(2025, time.March, 9, 20, 0, 0, 0, time.UTC).In(loc)

	w, err := week.Of(t1)

	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-10", w.ID)
	assert.Equal(t, loc, w.Start.Location())
}

func TestOf_DaylightSavingWeek(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// GIVEN: clocks go forward on Sunday 30 March 2025
	sun := time.Date(2025, time.March, 30, 12, 0, 0, 0, berlin)

	w, err := week.Of(sun)

	// THEN: boundaries stay on local wall-clock times
	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-24", w.ID)
	assert.Equal(t, time.Date(2025, time.March, 24, 0, 0, 0, 0, berlin), w.Start)
	assert.Equal(t, 23, w.End.Hour())
	assert.Equal(t, 59, w.End.Minute())
	assert.Equal(t, 30, w.End.Day())
}

func TestOf_PropertiesOverAYear(t *testing.T) {
	// Every day of a leap year, at a few times of day
	for d := date(2024, time.January, 1); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		for _, hour := range []int{0, 11, 23} {
			ts := d.Add(time.Duration(hour) * time.Hour)
			w, err := week.Of(ts)
			require.NoError(t, err)

			assert.Equal(t, time.Monday, w.Start.Weekday(), ts)
			assert.Equal(t, time.Sunday, w.End.Weekday(), ts)
			assert.True(t, w.Contains(ts), ts)
			assert.Equal(t, week.IDFor(w.Start), w.ID)

			again, err := week.Of(w.Start)
			require.NoError(t, err)
			assert.Equal(t, w, again, "Of must be stable on its own start")
		}
	}
}

// =============================================================================
// NAVIGATION, LABELS, IDS
// =============================================================================

func TestIdentity_NextPrevious(t *testing.T) {
	w := week.MustOf(date(2025, time.March, 5))

	assert.Equal(t, "week-2025-3-10", w.Next().ID)
	assert.Equal(t, "week-2025-2-24", w.Previous().ID)
	assert.Equal(t, w, w.Next().Previous())
}

func TestIdentity_Days(t *testing.T) {
	days := week.MustOf(date(2025, time.March, 5)).Days()

	require.Len(t, days, 7)
	assert.Equal(t, date(2025, time.March, 3), days[0])
	assert.Equal(t, date(2025, time.March, 9), days[6])
}

func TestIdentity_Label(t *testing.T) {
	assert.Equal(t, "Mar 3 - Mar 9, 2025", week.MustOf(date(2025, time.March, 5)).Label())
}

func TestParseID(t *testing.T) {
	w, err := week.ParseID("week-2025-3-3", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, week.MustOf(date(2025, time.March, 3)), w)

	invalid := []string{
		"",
		"2025-3-3",
		"week-2025-3",
		"week-2025-3-4", // Tuesday
		"week-2025-13-1",
		"week-2025-2-30",
		"week-2025-x-3",
	}
	for _, id := range invalid {
		t.Run(id, func(t *testing.T) {
			_, err := week.ParseID(id, time.UTC)
			assert.ErrorIs(t, err, week.ErrInvalidWeekID)
		})
	}
}

func TestCurrent_UsesClock(t *testing.T) {
	restore := week.Now
	t.Cleanup(func() { week.Now = restore })
	week.Now = func() time.Time { return time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC) }

	assert.Equal(t, "week-2025-3-3", week.Current().ID)
}

func TestSameDay(t *testing.T) {
	assert.True(t, week.SameDay(date(2025, time.March, 9), weekEnd(2025, time.March, 9)))
	assert.False(t, week.SameDay(date(2025, time.March, 9), date(2025, time.March, 10)))
}
