// Package scheduler repeats monitoring cycles in-process for deployments
// without cron: the long-running status API and `uptimer -every`.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/monitor"
)

// CycleFunc runs one monitoring cycle.
type CycleFunc func(ctx context.Context) (monitor.Summary, error)

// CycleScheduler runs a cycle on start, then every interval and whenever
// the manual trigger fires. Cycles never overlap.
type CycleScheduler struct {
	run           CycleFunc
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	done          chan struct{}
	manualTrigger <-chan struct{}
	stopOnce      sync.Once
}

// NewCycleScheduler creates a scheduler. manualTrigger may be nil.
func NewCycleScheduler(run CycleFunc, log logger.Logger, interval time.Duration, manualTrigger <-chan struct{}) *CycleScheduler {
	return &CycleScheduler{
		run:           run,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs the first cycle in the background and keeps repeating until
// Stop is called or ctx is cancelled.
func (s *CycleScheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.Tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(ctx)
			case <-s.manualTrigger:
				s.logger.Info("manual check triggered")
				s.Tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *CycleScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

// Done is closed once the scheduler loop has exited.
func (s *CycleScheduler) Done() <-chan struct{} { return s.done }

// Tick runs one cycle and logs its outcome.
func (s *CycleScheduler) Tick(ctx context.Context) {
	summary, err := s.run(ctx)
	if err != nil {
		s.logger.Error("monitoring cycle failed", logger.Error(err))
		return
	}
	s.logger.Debug("monitoring cycle finished",
		logger.Int("exit_code", summary.ExitCode()),
		logger.Duration("next_in", s.interval))
}
