package monitor

import (
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/notify"
)

// Exit codes returned to the scheduler.
const (
	ExitAllUp    = 0
	ExitSomeDown = 1
	ExitFatal    = 2
)

// TargetOutcome is what happened to one target during a cycle.
type TargetOutcome struct {
	Target     domain.Target
	Result     domain.CheckResult
	Transition ledger.TransitionKind
	FirstSeen  bool
	Report     *notify.Report
	PersistErr error
	Checked    bool
}

// Summary aggregates one cycle.
type Summary struct {
	Total            int
	Checked          int
	Up               int
	Down             int
	Skipped          int
	Notified         int
	Suppressed       int
	DeliveryFailures int
	PersistFailures  int
	RetentionRan     bool
	Duration         time.Duration
	Outcomes         []TargetOutcome
}

// ExitCode is 0 when every checked target ended the cycle up, 1 otherwise.
func (s Summary) ExitCode() int {
	if s.Down > 0 {
		return ExitSomeDown
	}
	return ExitAllUp
}

func (s *Summary) add(o TargetOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if !o.Checked {
		return
	}
	s.Checked++
	if o.Result.Reachable {
		s.Up++
	} else {
		s.Down++
	}
	if o.PersistErr != nil {
		s.PersistFailures++
	}
	if o.Report != nil {
		s.Notified += o.Report.Sent()
		s.Suppressed += o.Report.Count(notify.OutcomeDuplicateSuppressed)
		s.DeliveryFailures += o.Report.Count(notify.OutcomeDeliveryFailed)
	}
}
