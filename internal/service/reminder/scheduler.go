package reminder

import (
	"context"
	"time"

	"github.com/dentalert/dentalert-api/pkg/logger"
)

// Scheduler owns the recurring timer that drives the engine. It holds no
// reminder logic of its own; cycles stay safe under overlap because the
// engine's state transitions are conditional.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	clock    Clock
	logger   *logger.Logger
}

func NewScheduler(engine *Engine, interval time.Duration, clock Clock, logger *logger.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start runs cycles on the configured interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reminder scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler shutting down")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	stats, err := s.engine.RunCycle(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error(err, "reminder cycle failed")
		return
	}
	if stats.FirstSent+stats.SecondSent+stats.Failures > 0 {
		s.logger.Info("reminder cycle finished",
			"first_sent", stats.FirstSent,
			"second_sent", stats.SecondSent,
			"failures", stats.Failures,
			"skipped", stats.Skipped)
	}
}
