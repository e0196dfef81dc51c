package week

import (
	"strconv"
	"strings"
	"time"
)

// SharedSeparator joins the two dates of a shared-plan token.
const SharedSeparator = "--to--"

const sharedDateLayout = "02-01-2006"

// Range is a pair of boundaries supplied from outside the planner,
// e.g. decoded from a shared plan link.
type Range struct {
	Start time.Time
	End   time.Time
}

// ParseSharedRange decodes "DD-MM-YYYY--to--DD-MM-YYYY" in the local time zone.
// It reports false for anything that does not name two real calendar days;
// callers fall back to the current week.
func ParseSharedRange(token string) (Range, bool) {
	return ParseSharedRangeIn(token, time.Local)
}

// ParseSharedRangeIn is ParseSharedRange with an explicit location.
func ParseSharedRangeIn(token string, loc *time.Location) (Range, bool) {
	sides := strings.Split(token, SharedSeparator)
	if len(sides) != 2 {
		return Range{}, false
	}
	start, ok := parseSharedDate(sides[0], loc)
	if !ok {
		return Range{}, false
	}
	end, ok := parseSharedDate(sides[1], loc)
	if !ok {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// FormatSharedRange encodes r as a shared-plan token.
func FormatSharedRange(r Range) string {
	return r.Start.Format(sharedDateLayout) + SharedSeparator + r.End.Format(sharedDateLayout)
}

func parseSharedDate(s string, loc *time.Location) (time.Time, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	var nums [3]int
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return time.Time{}, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	// token order is day, month, year
	return calendarDate(nums[2], nums[1], nums[0], loc)
}
