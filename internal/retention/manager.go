// Package retention keeps the data directory bounded: it rotates oversized
// logs, deletes old backups, temp files and quarantined documents, and prunes
// resolved alerts and orphaned status records. It runs at most once per
// calendar day.
package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/logsink"
)

const (
	DefaultLogMaxSize     = 10 * 1024 * 1024
	DefaultLogRetention   = 30 * 24 * time.Hour
	DefaultAlertRetention = 90 * 24 * time.Hour
	DefaultTempMaxAge     = 24 * time.Hour

	tempSuffix = ".tmp"
)

// Config holds the thresholds. Zero values fall back to the defaults.
type Config struct {
	// TempDir is scanned for orphaned *.tmp files. Empty disables the scan.
	TempDir        string
	LogMaxSize     int64
	LogRetention   time.Duration
	AlertRetention time.Duration
	TempMaxAge     time.Duration
}

func (c Config) withDefaults() Config {
	if c.LogMaxSize <= 0 {
		c.LogMaxSize = DefaultLogMaxSize
	}
	if c.LogRetention <= 0 {
		c.LogRetention = DefaultLogRetention
	}
	if c.AlertRetention <= 0 {
		c.AlertRetention = DefaultAlertRetention
	}
	if c.TempMaxAge <= 0 {
		c.TempMaxAge = DefaultTempMaxAge
	}
	return c
}

// AlertPruner is the part of the alert ledger retention uses.
type AlertPruner interface {
	CountOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// StatusPruner is the part of the status ledger retention uses.
type StatusPruner interface {
	OrphansOf(ctx context.Context, keep []string) ([]string, error)
	PruneExcept(ctx context.Context, keep []string) (int, error)
}

// QuarantineCleaner is the part of the quarantine retention uses.
type QuarantineCleaner interface {
	List(ctx context.Context) ([]ledger.Quarantined, error)
	Remove(ctx context.Context, key string) error
}

// DailyGate is the part of the markers retention uses.
type DailyGate interface {
	IsDue(ctx context.Context, name string, today time.Time) (bool, error)
	Mark(ctx context.Context, name string, today time.Time) error
}

// URLLister returns every URL present in the target configuration, active
// or not.
type URLLister func(ctx context.Context) ([]string, error)

// ─────────────────────────────────────────────────────────────────
// Actions
// ─────────────────────────────────────────────────────────────────

// ActionKind names a cleanup step.
type ActionKind string

const (
	RotateLog    ActionKind = "rotate_log"
	DeleteBackup ActionKind = "delete_backup"
	PruneAlerts  ActionKind = "prune_alerts"
	DeleteTemp   ActionKind = "delete_temp"
	PruneStatus  ActionKind = "prune_status"

	DeleteQuarantine ActionKind = "delete_quarantine"
)

// Action is one planned cleanup step.
type Action struct {
	Kind        ActionKind
	Path        string
	Size        int64
	Age         time.Duration
	Count       int
	Description string

	artifact logsink.Artifact
	cutoff   time.Time
	keep     []string
	key      string
}

// Outcome is the executed form of an Action.
type Outcome struct {
	Action
	Removed int
	Freed   int64
	Err     error
}

// Report summarizes one run.
type Report struct {
	DryRun   bool
	Planned  []Action
	Outcomes []Outcome
	Freed    int64
}

// Failed counts the outcomes that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────
// Manager
// ─────────────────────────────────────────────────────────────────

// Manager plans and applies cleanup actions.
type Manager struct {
	cfg        Config
	logs       []logsink.Artifact
	alerts     AlertPruner
	status     StatusPruner
	quarantine QuarantineCleaner
	markers    DailyGate
	urls       URLLister
	log        logger.Logger
}

// New builds a Manager. status and urls may be nil, in which case orphaned
// status records are left alone. A nil quarantine leaves quarantined
// documents alone.
func New(cfg Config, logs []logsink.Artifact, alerts AlertPruner, status StatusPruner, quarantine QuarantineCleaner, markers DailyGate, urls URLLister, log logger.Logger) *Manager {
	return &Manager{
		cfg:        cfg.withDefaults(),
		logs:       logs,
		alerts:     alerts,
		status:     status,
		quarantine: quarantine,
		markers:    markers,
		urls:       urls,
		log:        log,
	}
}

// RunIfDue runs the cleanup unless it already ran on today's calendar day
// and reports whether it ran. The marker is written after the actions ran,
// whatever their outcome.
func (m *Manager) RunIfDue(ctx context.Context, today time.Time) (Report, bool, error) {
	due, err := m.markers.IsDue(ctx, ledger.LastCleanup, today)
	if err != nil {
		return Report{}, false, fmt.Errorf("failed to read cleanup marker: %w", err)
	}
	if !due {
		m.log.Debug("retention already ran today", logger.String("date", ledger.Day(today)))
		return Report{}, false, nil
	}

	report := m.RunNow(ctx, today)

	if err := m.markers.Mark(ctx, ledger.LastCleanup, today); err != nil {
		return report, true, fmt.Errorf("failed to update cleanup marker: %w", err)
	}
	return report, true, nil
}

// RunNow plans and applies every action immediately, ignoring the marker.
func (m *Manager) RunNow(ctx context.Context, now time.Time) Report {
	plan := m.Plan(ctx, now)
	report := Report{Planned: plan}

	if len(plan) == 0 {
		m.log.Info("retention: nothing to clean up")
		return report
	}

	for _, a := range plan {
		o := m.apply(ctx, a, now)
		report.Outcomes = append(report.Outcomes, o)
		report.Freed += o.Freed

		if o.Err != nil {
			m.log.Error("retention action failed",
				logger.String("action", string(a.Kind)),
				logger.String("target", a.Description),
				logger.Error(o.Err))
			continue
		}
		m.log.Info("retention action done",
			logger.String("action", string(a.Kind)),
			logger.String("target", a.Description),
			logger.Int("removed", o.Removed))
	}

	m.log.Info("retention completed",
		logger.Int("actions", len(report.Outcomes)),
		logger.Int("failed", report.Failed()),
		logger.String("freed", humanize.Bytes(uint64(report.Freed))))
	return report
}

// DryRun reports what RunNow would do without changing anything.
func (m *Manager) DryRun(ctx context.Context, now time.Time) Report {
	plan := m.Plan(ctx, now)
	for _, a := range plan {
		m.log.Info("retention would run",
			logger.String("action", string(a.Kind)),
			logger.String("target", a.Description))
	}
	return Report{DryRun: true, Planned: plan}
}

// Plan inspects logs, backups, alerts, temp files, quarantined documents and
// status records and returns the actions due at now. Inspection failures are
// logged and skipped.
func (m *Manager) Plan(ctx context.Context, now time.Time) []Action {
	var plan []Action
	plan = append(plan, m.planLogs()...)
	plan = append(plan, m.planBackups(now)...)
	plan = append(plan, m.planAlerts(ctx, now)...)
	plan = append(plan, m.planTemp(now)...)
	plan = append(plan, m.planQuarantine(ctx, now)...)
	plan = append(plan, m.planStatus(ctx)...)
	return plan
}

func (m *Manager) planLogs() []Action {
	var plan []Action
	for _, art := range m.logs {
		size, err := art.Size()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				m.log.Warn("failed to stat log", logger.String("path", art.Path()), logger.Error(err))
			}
			continue
		}
		if size <= m.cfg.LogMaxSize {
			m.log.Debug("log within limit",
				logger.String("path", art.Path()),
				logger.String("size", humanize.Bytes(uint64(size))))
			continue
		}
		plan = append(plan, Action{
			Kind: RotateLog,
			Path: art.Path(),
			Size: size,
			Description: fmt.Sprintf("rotate %s (%s > %s limit)",
				filepath.Base(art.Path()), humanize.Bytes(uint64(size)), humanize.Bytes(uint64(m.cfg.LogMaxSize))),
			artifact: art,
		})
	}
	return plan
}

func (m *Manager) planBackups(now time.Time) []Action {
	cutoff := now.Add(-m.cfg.LogRetention)
	var plan []Action
	for _, art := range m.logs {
		matches, err := filepath.Glob(logsink.BackupGlob(art.Path()))
		if err != nil {
			m.log.Warn("invalid backup pattern", logger.String("path", art.Path()), logger.Error(err))
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			age := now.Sub(info.ModTime())
			plan = append(plan, Action{
				Kind:        DeleteBackup,
				Path:        path,
				Size:        info.Size(),
				Age:         age,
				Description: fmt.Sprintf("delete backup %s (age %s)", filepath.Base(path), days(age)),
			})
		}
	}
	return plan
}

func (m *Manager) planAlerts(ctx context.Context, now time.Time) []Action {
	if m.alerts == nil {
		return nil
	}
	cutoff := now.Add(-m.cfg.AlertRetention)
	n, err := m.alerts.CountOlderThan(ctx, cutoff)
	if err != nil {
		m.log.Warn("failed to inspect alerts", logger.Error(err))
		return nil
	}
	if n == 0 {
		return nil
	}
	return []Action{{
		Kind:        PruneAlerts,
		Count:       n,
		Description: fmt.Sprintf("remove %s resolved alerts older than %s", humanize.Comma(int64(n)), days(m.cfg.AlertRetention)),
		cutoff:      cutoff,
	}}
}

func (m *Manager) planTemp(now time.Time) []Action {
	if m.cfg.TempDir == "" {
		return nil
	}
	entries, err := os.ReadDir(m.cfg.TempDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn("failed to scan temp dir", logger.String("dir", m.cfg.TempDir), logger.Error(err))
		}
		return nil
	}

	cutoff := now.Add(-m.cfg.TempMaxAge)
	var plan []Action
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(m.cfg.TempDir, e.Name())
		plan = append(plan, Action{
			Kind:        DeleteTemp,
			Path:        path,
			Size:        info.Size(),
			Age:         now.Sub(info.ModTime()),
			Description: "delete temp file " + e.Name(),
		})
	}
	return plan
}

// planQuarantine expires corrupt-document copies after the log retention
// period.
func (m *Manager) planQuarantine(ctx context.Context, now time.Time) []Action {
	if m.quarantine == nil {
		return nil
	}
	items, err := m.quarantine.List(ctx)
	if err != nil {
		m.log.Warn("failed to list quarantined documents", logger.Error(err))
		return nil
	}

	cutoff := now.Add(-m.cfg.LogRetention)
	var plan []Action
	for _, q := range items {
		if !q.At.Before(cutoff) {
			continue
		}
		age := now.Sub(q.At)
		plan = append(plan, Action{
			Kind:        DeleteQuarantine,
			Path:        q.Key,
			Age:         age,
			Description: fmt.Sprintf("delete quarantined %s (age %s)", q.Key, days(age)),
			key:         q.Key,
		})
	}
	return plan
}

func (m *Manager) planStatus(ctx context.Context) []Action {
	if m.status == nil || m.urls == nil {
		return nil
	}
	keep, err := m.urls(ctx)
	if err != nil {
		m.log.Warn("failed to list configured urls, keeping status records", logger.Error(err))
		return nil
	}
	orphans, err := m.status.OrphansOf(ctx, keep)
	if err != nil {
		m.log.Warn("failed to inspect status records", logger.Error(err))
		return nil
	}
	if len(orphans) == 0 {
		return nil
	}
	return []Action{{
		Kind:        PruneStatus,
		Count:       len(orphans),
		Description: fmt.Sprintf("remove %d status records for unconfigured urls", len(orphans)),
		keep:        keep,
	}}
}

func (m *Manager) apply(ctx context.Context, a Action, now time.Time) Outcome {
	o := Outcome{Action: a}
	switch a.Kind {
	case RotateLog:
		backup, err := a.artifact.Rotate(now)
		if err != nil {
			o.Err = err
			break
		}
		o.Removed = 1
		m.log.Info("log rotated", logger.String("path", a.Path), logger.String("backup", backup))

	case DeleteBackup, DeleteTemp:
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.Err = err
			break
		}
		o.Removed = 1
		o.Freed = a.Size

	case PruneAlerts:
		o.Removed, o.Err = m.alerts.PruneOlderThan(ctx, a.cutoff)

	case PruneStatus:
		o.Removed, o.Err = m.status.PruneExcept(ctx, a.keep)

	case DeleteQuarantine:
		if err := m.quarantine.Remove(ctx, a.key); err != nil {
			o.Err = err
			break
		}
		o.Removed = 1

	default:
		o.Err = fmt.Errorf("unknown action %q", a.Kind)
	}
	return o
}

func days(d time.Duration) string {
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
