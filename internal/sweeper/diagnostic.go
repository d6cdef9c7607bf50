package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
)

// DefaultSweepInterval is the time between diagnostic cycles
const DefaultSweepInterval = 15 * time.Minute

// DiagnosticSweeperConfig holds configuration for the diagnostic sweeper
type DiagnosticSweeperConfig struct {
	// Interval between diagnostic cycles; non-positive falls back to
	// DefaultSweepInterval
	Interval time.Duration
	// RepairOnCritical triggers an auto-repair scan whenever a cycle reports
	// critical overall health
	RepairOnCritical bool
}

// diagnosticSweeper runs the supervisory control loop: every cycle it
// persists a metrics snapshot, runs the threshold diagnostic, and on a
// critical report kicks off an auto-repair scan
type diagnosticSweeper struct {
	config    *DiagnosticSweeperConfig
	monitor   *monitor.Service
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewDiagnosticSweeper creates a new diagnostic sweeper
func NewDiagnosticSweeper(config *DiagnosticSweeperConfig, mon *monitor.Service, clock adapter.Clock) Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	return &diagnosticSweeper{
		config:    config,
		monitor:   mon,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *diagnosticSweeper) Name() string {
	return "diagnostic-sweeper"
}

// Start begins the sweeper's main loop
func (s *diagnosticSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting diagnostic sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("repair_on_critical", s.config.RepairOnCritical),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run one cycle immediately so a fresh deployment reports health without
	// waiting a full interval
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Diagnostic sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Diagnostic sweeper stop requested")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle performs one snapshot + diagnose + repair pass. Failures are
// logged, never fatal: the loop always survives to the next cycle.
func (s *diagnosticSweeper) runCycle(ctx context.Context) {
	start := s.clock.Now()

	if _, err := s.monitor.SnapshotMetrics(ctx); err != nil {
		logger.WarnCtx(ctx, "Failed to persist metrics snapshot", zap.Error(err))
	}

	report := s.monitor.RunDiagnostic(ctx)
	logger.InfoCtx(ctx, "Diagnostic cycle completed",
		zap.String("overall", string(report.Overall)),
		zap.Int("issues", len(report.Issues)),
		zap.Duration("elapsed", s.clock.Since(start)),
	)
	for _, issue := range report.Issues {
		logger.WarnCtx(ctx, "Diagnostic issue",
			zap.String("severity", string(issue.Severity)),
			zap.String("description", issue.Description),
		)
	}

	if report.Overall == domain.HealthCritical && s.config.RepairOnCritical {
		result := s.monitor.AutoRepair(ctx)
		logger.InfoCtx(ctx, "Auto-repair triggered by critical diagnostic",
			zap.Int("attempted", result.Attempted),
			zap.Int("successful", result.Successful),
			zap.Int("errors", len(result.Errors)),
		)
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *diagnosticSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		// Already stopped or never started
		return nil
	}
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for sweeper to stop: %w", ctx.Err())
	}
}
