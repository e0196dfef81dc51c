package week

import (
	"math"
	"time"
)

// Resolve picks the stored record that best matches target.
//
// Rules, first match wins:
//  1. exact: StartDate and EndDate fall on the same days as target
//  2. containment: target.Start lies in [StartDate, EndDate]
//  3. nearest: smallest |StartDate - target.Start|, earliest in records on ties
//
// Resolve reports false only when records is empty. It never modifies records.
func Resolve(records []Record, target Range) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}

	for _, r := range records {
		if SameDay(r.StartDate, target.Start) && SameDay(r.EndDate, target.End) {
			return r, true
		}
	}

	for _, r := range records {
		if !target.Start.Before(r.StartDate) && !target.Start.After(r.EndDate) {
			return r, true
		}
	}

	best := 0
	bestDist := distance(records[0].StartDate, target.Start)
	for i := 1; i < len(records); i++ {
		if d := distance(records[i].StartDate, target.Start); d < bestDist {
			best, bestDist = i, d
		}
	}
	return records[best], true
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d == math.MinInt64 {
		return math.MaxInt64
	}
	if d < 0 {
		return -d
	}
	return d
}
