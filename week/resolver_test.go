package week_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/weekplan/week"
)

func canonical(y int, m time.Month, d int) week.Record {
	return week.NewRecord(week.MustOf(date(y, m, d)))
}

func TestResolve_Empty(t *testing.T) {
	_, ok := week.Resolve(nil, week.Range{Start: date(2025, time.March, 5), End: date(2025, time.March, 11)})

	assert.False(t, ok)
}

func TestResolve_ExactMatchByCalendarDay(t *testing.T) {
	// GIVEN: a shared token range, whose end is a midnight
	records := []week.Record{canonical(2025, time.March, 3), canonical(2025, time.March, 10)}
	target := week.Range{Start: date(2025, time.March, 10), End: date(2025, time.March, 16)}

	// WHEN
	got, ok := week.Resolve(records, target)

	// THEN: the stored 23:59:59.999 end still counts as the same day
	assert.True(t, ok)
	assert.Equal(t, "week-2025-3-10", got.ID)
}

func TestResolve_ExactBeatsContainment(t *testing.T) {
	wide := week.Record{ID: "wide", StartDate: date(2025, time.March, 3), EndDate: weekEnd(2025, time.March, 16)}
	exact := canonical(2025, time.March, 10)
	target := week.Range{Start: date(2025, time.March, 10), End: date(2025, time.March, 16)}

	got, ok := week.Resolve([]week.Record{wide, exact}, target)

	assert.True(t, ok)
	assert.Equal(t, exact.ID, got.ID)
}

func TestResolve_Containment(t *testing.T) {
	// GIVEN: a range starting mid-week
	records := []week.Record{canonical(2025, time.February, 24), canonical(2025, time.March, 3), canonical(2025, time.March, 10)}
	target := week.Range{Start: date(2025, time.March, 5), End: date(2025, time.March, 11)}

	got, ok := week.Resolve(records, target)

	// THEN: the week containing the start wins
	assert.True(t, ok)
	assert.Equal(t, "week-2025-3-3", got.ID)
}

func TestResolve_ContainmentIncludesBoundaries(t *testing.T) {
	records := []week.Record{canonical(2025, time.March, 3)}

	got, ok := week.Resolve(records, week.Range{Start: weekEnd(2025, time.March, 9), End: date(2025, time.March, 15)})

	assert.True(t, ok)
	assert.Equal(t, "week-2025-3-3", got.ID)
}

func TestResolve_Nearest(t *testing.T) {
	records := []week.Record{canonical(2025, time.February, 24), canonical(2025, time.March, 10)}
	target := week.Range{Start: date(2025, time.April, 1), End: date(2025, time.April, 7)}

	got, ok := week.Resolve(records, target)

	assert.True(t, ok)
	assert.Equal(t, "week-2025-3-10", got.ID)
}

func TestResolve_NearestBeforeTarget(t *testing.T) {
	records := []week.Record{canonical(2025, time.June, 2), canonical(2025, time.January, 6)}
	target := week.Range{Start: date(2024, time.December, 1), End: date(2024, time.December, 7)}

	got, ok := week.Resolve(records, target)

	assert.True(t, ok)
	assert.Equal(t, "week-2025-1-6", got.ID)
}

func TestResolve_NearestTieKeepsInputOrder(t *testing.T) {
	// GIVEN: two weeks exactly seven days either side of the target start
	first := canonical(2025, time.March, 17)
	second := canonical(2025, time.March, 3)
	target := week.Range{Start: date(2025, time.March, 10), End: date(2025, time.March, 12)}

	got, _ := week.Resolve([]week.Record{first, second}, target)
	assert.Equal(t, first.ID, got.ID)

	got, _ = week.Resolve([]week.Record{second, first}, target)
	assert.Equal(t, second.ID, got.ID)
}

func TestResolve_Deterministic(t *testing.T) {
	records := []week.Record{canonical(2025, time.March, 3), canonical(2025, time.March, 10), canonical(2025, time.March, 17)}
	target := week.Range{Start: date(2025, time.March, 12), End: date(2025, time.March, 18)}

	first, _ := week.Resolve(records, target)
	for i := 0; i < 10; i++ {
		got, _ := week.Resolve(records, target)
		assert.Equal(t, first, got)
	}
}
