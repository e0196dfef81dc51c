/*
scheduler.go - Automated week range reconciliation

PURPOSE:
  Periodically runs week.Reconciler so drifted week ranges are corrected and
  the seed week exists, without waiting for an operator.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one pass immediately on start, then on every tick
  - Records every pass (scheduler, API or CLI) as a week.Run for audit

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(reconciler, store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile endpoint (manual reconciliation)
  - week/reconcile.go: Reconciler
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/weekplan/week"
)

// Run triggers.
const (
	TriggerScheduler = "scheduler"
	TriggerAPI       = "api"
	TriggerCLI       = "cli"
)

// ReconciliationScheduler runs week range reconciliation on a ticker.
type ReconciliationScheduler struct {
	Reconciler    *week.Reconciler
	Runs          week.RunLog
	CheckInterval time.Duration
	Enabled       bool
	Log           zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler. runs may be nil.
func NewReconciliationScheduler(rc *week.Reconciler, runs week.RunLog, log zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Reconciler:    rc,
		Runs:          runs,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Log:           log,
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info().Msg("reconciliation scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	// the loop gets its own copies; a later Start replaces the fields
	go rs.run(rs.ticker, rs.stop)

	rs.Log.Info().Dur("interval", rs.CheckInterval).Msg("reconciliation scheduler started")
}

// Stop stops the scheduler and waits for a pass in progress to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Log.Info().Msg("reconciliation scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess(stop)

	for {
		select {
		case <-ticker.C:
			rs.checkAndProcess(stop)
		case <-stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndProcess(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// abort a long pass when Stop is called
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	_, _, _ = RunReconciliation(ctx, rs.Reconciler, rs.Runs, TriggerScheduler, rs.Log)
}

// RunReconciliation runs one pass and records it in runs (when non-nil).
// It returns the run id and the pass report.
func RunReconciliation(ctx context.Context, rc *week.Reconciler, runs week.RunLog, trigger string, log zerolog.Logger) (string, week.Report, error) {
	runID := "run-" + uuid.NewString()

	report, err := rc.ReconcileWeekRanges(ctx)

	if runs != nil {
		run := report.Run(runID, trigger)
		if err != nil {
			if run.Error != "" {
				run.Error += "; "
			}
			run.Error += err.Error()
		}
		// record even when ctx was cancelled
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if saveErr := runs.SaveReconciliationRun(saveCtx, run); saveErr != nil {
			log.Error().Err(saveErr).Str("run_id", runID).Msg("failed to record reconciliation run")
		}
	}

	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Str("trigger", trigger).Msg("reconciliation pass aborted")
		return runID, report, err
	}

	event := log.Info()
	if report.Failed > 0 {
		event = log.Warn()
	}
	event.
		Str("run_id", runID).
		Str("trigger", trigger).
		Int("corrected", report.Corrected).
		Int("created", report.Created).
		Int("failed", report.Failed).
		Msg("reconciliation pass recorded")
	return runID, report, nil
}
