// Package monitor runs one check cycle: probe every active target, detect
// status transitions, notify on them, persist the new status, and report a
// summary whose exit code the scheduler uses.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/notify"
	"github.com/MrSnakeDoc/uptimer/internal/retention"
)

// DefaultWorkers bounds concurrent probes when no value is configured.
const DefaultWorkers = 8

// ─────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────

type TargetSource interface {
	Load(ctx context.Context) ([]domain.Target, error)
}

type Prober interface {
	Check(ctx context.Context, url string) domain.CheckResult
}

type StatusLedger interface {
	Snapshot(ctx context.Context) (ledger.StatusDocument, error)
	Persist(ctx context.Context, result domain.CheckResult) error
}

type Notifier interface {
	NotifyDown(ctx context.Context, target domain.Target, result domain.CheckResult) notify.Report
	NotifyUp(ctx context.Context, target domain.Target, result domain.CheckResult) notify.Report
}

type Retention interface {
	RunIfDue(ctx context.Context, today time.Time) (retention.Report, bool, error)
}

type DailyMarker interface {
	Claim(ctx context.Context, name string, today time.Time) (bool, error)
}

type AlertLister interface {
	List(ctx context.Context, f ledger.AlertFilter) ([]domain.AlertRecord, error)
}

// Deps groups the engine's collaborators. Retention, Markers and Alerts are
// optional.
type Deps struct {
	Targets   TargetSource
	Prober    Prober
	Status    StatusLedger
	Notifier  Notifier
	Retention Retention
	Markers   DailyMarker
	Alerts    AlertLister
}

// Options tunes a cycle.
type Options struct {
	Workers  int
	Location *time.Location
	Now      func() time.Time
}

// Engine is stateless between cycles; everything it remembers lives in the
// ledgers.
type Engine struct {
	deps    Deps
	workers int
	loc     *time.Location
	now     func() time.Time
	log     logger.Logger
}

// New builds an Engine.
func New(deps Deps, opts Options, log logger.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		deps:    deps,
		workers: opts.Workers,
		loc:     opts.Location,
		now:     opts.Now,
		log:     log,
	}
}

// Run executes one cycle and maps its outcome to a process exit code.
func (e *Engine) Run(ctx context.Context) int {
	summary, err := e.RunCycle(ctx)
	if err != nil {
		e.log.Error("FATAL ERROR: monitoring cycle aborted", logger.Error(err))
		return ExitFatal
	}
	code := summary.ExitCode()
	e.log.Info("monitor completed", logger.Int("exit_code", code))
	return code
}

// RunCycle loads the targets, runs retention if due, checks every active
// target and returns the aggregated summary. Only an unreadable target list
// or status ledger is returned as an error.
func (e *Engine) RunCycle(ctx context.Context) (Summary, error) {
	start := e.now()
	today := start.In(e.loc)

	e.log.Info("starting uptime monitoring check")

	all, err := e.deps.Targets.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load targets: %w", err)
	}

	summary := Summary{Total: len(all)}
	summary.RetentionRan = e.runRetention(ctx, today)

	active := domain.ActiveTargets(all)
	summary.Skipped = len(all) - len(active)
	if len(active) == 0 {
		e.log.Info("no active targets configured", logger.Int("configured", len(all)))
		summary.Duration = e.now().Sub(start)
		return summary, nil
	}

	previous, err := e.deps.Status.Snapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load status ledger: %w", err)
	}

	e.log.Infof("checking %d monitored URL(s)...", len(active))

	outcomes := make([]TargetOutcome, len(active))
	runPool(ctx, e.workers, len(active), func(ctx context.Context, i int) {
		outcomes[i] = e.checkTarget(ctx, active[i], previous)
	})

	for _, o := range outcomes {
		if !o.Checked {
			summary.Skipped++
		}
		summary.add(o)
	}
	summary.Duration = e.now().Sub(start)

	e.log.Infof("monitoring complete: %d UP, %d DOWN", summary.Up, summary.Down)
	if summary.Down > 0 {
		e.log.Warnf("WARNING: %d site(s) are down!", summary.Down)
	}
	e.log.Info("cycle summary",
		logger.Int("total", summary.Total),
		logger.Int("checked", summary.Checked),
		logger.Int("skipped", summary.Skipped),
		logger.Int("notified", summary.Notified),
		logger.Int("suppressed", summary.Suppressed),
		logger.Int("delivery_failures", summary.DeliveryFailures),
		logger.Int("persist_failures", summary.PersistFailures),
		logger.Duration("duration", summary.Duration))

	e.dailySummary(ctx, today, summary)
	return summary, nil
}

// checkTarget is the per-target state machine.
func (e *Engine) checkTarget(ctx context.Context, t domain.Target, previous ledger.StatusDocument) TargetOutcome {
	var prev *domain.StatusRecord
	if rec, ok := previous[t.URL]; ok {
		prev = &rec
	}

	result := e.deps.Prober.Check(ctx, t.URL)
	kind := ledger.Transition(prev, result)
	o := TargetOutcome{
		Target:     t,
		Result:     result,
		Transition: kind,
		FirstSeen:  prev == nil,
		Checked:    true,
	}

	log := e.log.With(logger.String("url", t.URL), logger.String("transition", string(kind)))
	log.Debug("checking: " + t.URL)
	if result.Reachable {
		log.Info(fmt.Sprintf("UP - %s (%.2fms)", result.Detail, result.LatencyMS))
	} else {
		log.Warn(fmt.Sprintf("DOWN - %s (%.2fms)", result.Detail, result.LatencyMS))
	}

	switch kind {
	case ledger.UpDown:
		r := e.deps.Notifier.NotifyDown(ctx, t, result)
		o.Report = &r
	case ledger.DownUp:
		r := e.deps.Notifier.NotifyUp(ctx, t, result)
		o.Report = &r
	}

	if err := e.deps.Status.Persist(ctx, result); err != nil {
		log.Error("failed to persist status", logger.Error(err))
		o.PersistErr = err
	}
	return o
}

func (e *Engine) runRetention(ctx context.Context, today time.Time) bool {
	if e.deps.Retention == nil {
		return false
	}
	report, ran, err := e.deps.Retention.RunIfDue(ctx, today)
	if err != nil {
		e.log.Error("retention failed", logger.Error(err))
	}
	if n := report.Failed(); n > 0 {
		e.log.Warn("retention finished with failures", logger.Int("failed", n))
	}
	return ran
}

// dailySummary logs one overview line per calendar day.
func (e *Engine) dailySummary(ctx context.Context, today time.Time, s Summary) {
	if e.deps.Markers == nil {
		return
	}
	claimed, err := e.deps.Markers.Claim(ctx, ledger.LastSummary, today)
	if err != nil {
		e.log.Warn("failed to update summary marker", logger.Error(err))
		return
	}
	if !claimed {
		return
	}

	activeAlerts := -1
	if e.deps.Alerts != nil {
		alerts, err := e.deps.Alerts.List(ctx, ledger.AlertFilter{State: domain.AlertActive})
		if err != nil {
			e.log.Warn("failed to count active alerts", logger.Error(err))
		} else {
			activeAlerts = len(alerts)
		}
	}

	e.log.Info("daily summary",
		logger.String("date", ledger.Day(today)),
		logger.Int("targets", s.Total),
		logger.Int("up", s.Up),
		logger.Int("down", s.Down),
		logger.Int("active_alerts", activeAlerts))
}
