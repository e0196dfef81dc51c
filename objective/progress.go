package objective

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Progress returns the percentage of completed tasks, rounded half up.
// An empty list is 0%.
func Progress(tasks []Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return percent(completed, len(tasks))
}

// PlanProgress is Progress over every task of every objective in a plan.
func PlanProgress(objectives []Objective) int {
	total, completed := 0, 0
	for _, o := range objectives {
		for _, t := range o.Tasks {
			total++
			if t.Completed {
				completed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return percent(completed, total)
}

// percent computes round(100*part/whole) exactly; decimal rounds halves
// away from zero, which is half up for non-negative values.
func percent(part, whole int) int {
	ratio := decimal.NewFromInt(int64(part)).Mul(hundred).DivRound(decimal.NewFromInt(int64(whole)), 8)
	return int(ratio.Round(0).IntPart())
}
