package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/mailer/mailertest"
	"github.com/MrSnakeDoc/uptimer/internal/notify"
	"github.com/MrSnakeDoc/uptimer/internal/retention"
	"github.com/MrSnakeDoc/uptimer/internal/state/memory"
)

// staticTargets serves a fixed list.
type staticTargets struct {
	targets []domain.Target
	err     error
}

func (s staticTargets) Load(context.Context) ([]domain.Target, error) {
	return s.targets, s.err
}

// scriptedProber answers from a per-URL table; unknown URLs are up.
type scriptedProber struct {
	mu      sync.Mutex
	results map[string]bool
	calls   map[string]int
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{results: map[string]bool{}, calls: map[string]int{}}
}

func (p *scriptedProber) set(url string, up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[url] = up
}

func (p *scriptedProber) Check(_ context.Context, url string) domain.CheckResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[url]++
	up, ok := p.results[url]
	if !ok {
		up = true
	}
	if up {
		code := 200
		return domain.CheckResult{TargetURL: url, Reachable: true, HTTPStatus: &code, LatencyMS: 12, Detail: "SUCCESS: HTTP 200", CheckedAt: cycleAt}
	}
	return domain.CheckResult{TargetURL: url, LatencyMS: 10000, Detail: "CONNECTION ERROR: operation timed out after 10s", CheckedAt: cycleAt}
}

var cycleAt = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	prober *scriptedProber
	status *ledger.StatusLedger
	alerts *ledger.AlertLedger
	mail   *mailertest.Recorder
}

func newHarness(t *testing.T, targets ...domain.Target) *harness {
	t.Helper()
	store := memory.New()
	composer, err := notify.NewComposer("", "UTC")
	require.NoError(t, err)

	h := &harness{
		prober: newScriptedProber(),
		status: ledger.NewStatusLedger(store),
		alerts: ledger.NewAlertLedger(store),
		mail:   mailertest.New(),
	}
	h.engine = New(Deps{
		Targets:  staticTargets{targets: targets},
		Prober:   h.prober,
		Status:   h.status,
		Notifier: notify.New(h.alerts, h.mail, composer, logger.Nop()),
		Markers:  ledger.NewMarkers(store),
		Alerts:   h.alerts,
	}, Options{Workers: 4, Location: time.UTC, Now: func() time.Time { return cycleAt }}, logger.Nop())
	return h
}

func (h *harness) cycle(t *testing.T) Summary {
	t.Helper()
	s, err := h.engine.RunCycle(context.Background())
	require.NoError(t, err)
	return s
}

func target(url string, recipients ...string) domain.Target {
	return domain.Target{URL: url, Recipients: recipients, Active: true}
}

func activeAlerts(t *testing.T, h *harness, url string) []domain.AlertRecord {
	t.Helper()
	list, err := h.alerts.List(context.Background(), ledger.AlertFilter{State: domain.AlertActive, TargetURL: url})
	require.NoError(t, err)
	return list
}

func TestUnseenTargetUpStaysQuiet(t *testing.T) {
	h := newHarness(t, target("https://a.example", "ops@x.com"))

	s := h.cycle(t)

	assert.Equal(t, 1, s.Up)
	assert.Equal(t, ExitAllUp, s.ExitCode())
	assert.Zero(t, h.mail.Calls())

	rec, err := h.status.Previous(context.Background(), "https://a.example")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.StatusUp, rec.Status)
}

func TestUnseenTargetDownAlertsOnce(t *testing.T) {
	h := newHarness(t, target("https://a.example", "ops@x.com"))
	h.prober.set("https://a.example", false)

	s := h.cycle(t)

	assert.Equal(t, 1, s.Down)
	assert.Equal(t, 1, s.Notified)
	assert.Equal(t, ExitSomeDown, s.ExitCode())
	assert.Len(t, h.mail.SentTo("ops@x.com"), 1)
	assert.Len(t, activeAlerts(t, h, "https://a.example"), 1)
	require.Len(t, s.Outcomes, 1)
	assert.Equal(t, ledger.UpDown, s.Outcomes[0].Transition)
	assert.True(t, s.Outcomes[0].FirstSeen)
}

func TestRecoveryResolvesAlert(t *testing.T) {
	h := newHarness(t, target("https://a.example", "ops@x.com"))
	h.prober.set("https://a.example", false)
	h.cycle(t)

	h.prober.set("https://a.example", true)
	s := h.cycle(t)

	assert.Equal(t, ExitAllUp, s.ExitCode())
	assert.Equal(t, ledger.DownUp, s.Outcomes[0].Transition)
	msgs := h.mail.SentTo("ops@x.com")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Subject, "RECOVERED")
	assert.Empty(t, activeAlerts(t, h, "https://a.example"))

	resolved, err := h.alerts.List(context.Background(), ledger.AlertFilter{State: domain.AlertResolved})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	rec, err := h.status.Previous(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, rec.Status)
}

func TestPersistentOutageNotifiesOnce(t *testing.T) {
	h := newHarness(t, target("https://a.example", "ops@x.com"))
	h.cycle(t)

	h.prober.set("https://a.example", false)
	first := h.cycle(t)
	second := h.cycle(t)
	third := h.cycle(t)

	assert.Equal(t, ledger.UpDown, first.Outcomes[0].Transition)
	assert.Equal(t, ledger.DownDown, second.Outcomes[0].Transition)
	assert.Equal(t, ledger.DownDown, third.Outcomes[0].Transition)
	assert.Nil(t, second.Outcomes[0].Report)
	assert.Len(t, h.mail.Sent(), 1)
	assert.Len(t, activeAlerts(t, h, "https://a.example"), 1)
}

func TestRecipientsAlertedIndependently(t *testing.T) {
	h := newHarness(t, target("https://a.example", "a@x.com,b@x.com"))
	h.prober.set("https://a.example", false)
	h.mail.FailFor("b@x.com", nil)

	s := h.cycle(t)

	assert.Equal(t, 1, s.Notified)
	assert.Equal(t, 1, s.DeliveryFailures)
	active := activeAlerts(t, h, "https://a.example")
	require.Len(t, active, 1)
	assert.Equal(t, "a@x.com", active[0].Recipient)

	// b never got the down mail, so recovery only reaches a
	h.mail.Heal("b@x.com")
	h.prober.set("https://a.example", true)
	h.cycle(t)

	assert.Len(t, h.mail.SentTo("a@x.com"), 2)
	assert.Empty(t, h.mail.SentTo("b@x.com"))
}

func TestSteadyStateSendsNothing(t *testing.T) {
	h := newHarness(t,
		target("https://a.example", "ops@x.com"),
		target("https://b.example", "ops@x.com"),
	)
	for i := 0; i < 3; i++ {
		s := h.cycle(t)
		assert.Equal(t, 2, s.Up)
	}
	assert.Zero(t, h.mail.Calls())
}

func TestInactiveTargetsAreSkipped(t *testing.T) {
	off := target("https://off.example", "ops@x.com")
	off.Active = false
	h := newHarness(t, target("https://on.example", "ops@x.com"), off)
	h.prober.set("https://off.example", false)

	s := h.cycle(t)

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Checked)
	assert.Equal(t, 1, s.Skipped)
	assert.Zero(t, h.prober.calls["https://off.example"])

	rec, err := h.status.Previous(context.Background(), "https://off.example")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestNoTargetsExitsClean(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ExitAllUp, h.engine.Run(context.Background()))
	assert.Zero(t, h.mail.Calls())
}

func TestTargetLoadFailureIsFatal(t *testing.T) {
	e := New(Deps{Targets: staticTargets{err: errors.New("no such file")}}, Options{}, logger.Nop())

	_, err := e.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, ExitFatal, e.Run(context.Background()))
}

type failingStatus struct{}

func (failingStatus) Snapshot(context.Context) (ledger.StatusDocument, error) {
	return nil, errors.New("disk gone")
}

func (failingStatus) Persist(context.Context, domain.CheckResult) error { return nil }

func TestStatusSnapshotFailureIsFatal(t *testing.T) {
	e := New(Deps{
		Targets: staticTargets{targets: []domain.Target{target("https://a.example")}},
		Prober:  newScriptedProber(),
		Status:  failingStatus{},
	}, Options{}, logger.Nop())

	assert.Equal(t, ExitFatal, e.Run(context.Background()))
}

type countingRetention struct {
	calls int
	err   error
}

func (r *countingRetention) RunIfDue(context.Context, time.Time) (retention.Report, bool, error) {
	r.calls++
	return retention.Report{}, r.err == nil, r.err
}

func TestRetentionErrorDoesNotAbortCycle(t *testing.T) {
	h := newHarness(t, target("https://a.example", "ops@x.com"))
	r := &countingRetention{err: errors.New("log dir unwritable")}
	h.engine.deps.Retention = r

	s := h.cycle(t)

	assert.Equal(t, 1, r.calls)
	assert.False(t, s.RetentionRan)
	assert.Equal(t, 1, s.Up)
}

func TestDailySummaryClaimedOncePerDay(t *testing.T) {
	h := newHarness(t, target("https://a.example"))
	markers := h.engine.deps.Markers.(*ledger.Markers)

	h.cycle(t)
	last, err := markers.Last(context.Background(), ledger.LastSummary)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", last)

	claimed, err := markers.Claim(context.Background(), ledger.LastSummary, cycleAt)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRunPool(t *testing.T) {
	var running, peak, total int32
	runPool(context.Background(), 3, 20, func(context.Context, int) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&total, 1)
	})

	assert.Equal(t, int32(20), total)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestRunPoolStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var total int32
	runPool(ctx, 1, 100, func(context.Context, int) { atomic.AddInt32(&total, 1) })

	assert.Less(t, total, int32(100))
}
