package week

import (
	"context"
	"strings"
	"time"
)

// Run is the persisted summary of one reconciliation pass.
type Run struct {
	ID         string
	Trigger    string // "scheduler", "api", "cli"
	SeedWeekID string
	Checked    int
	Corrected  int
	Created    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunLog stores reconciliation run summaries. Optional: stores that do not
// implement it simply do not keep history.
type RunLog interface {
	SaveReconciliationRun(ctx context.Context, run Run) error
	GetReconciliationRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run converts a report into a run summary.
func (r Report) Run(id, trigger string) Run {
	run := Run{
		ID:         id,
		Trigger:    trigger,
		SeedWeekID: r.SeedWeekID,
		Checked:    r.Checked,
		Corrected:  r.Corrected,
		Created:    r.Created,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if len(r.Failures) > 0 {
		msgs := make([]string, len(r.Failures))
		for i, err := range r.Failures {
			msgs[i] = err.Error()
		}
		run.Error = strings.Join(msgs, "; ")
	}
	return run
}
