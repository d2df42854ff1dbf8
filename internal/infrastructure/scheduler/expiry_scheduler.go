package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/barterloop/backend/internal/domain/shared"
)

// ProposalExpirer reaps proposals whose acceptance window has closed.
// It returns how many proposals were expired in this pass.
type ProposalExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpirySchedulerConfig holds configuration for the expiry scheduler
type ExpirySchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration // how often the sweep runs
	SweepBatch    int           // proposals reaped per pass
	SweepTimeout  time.Duration // budget for a single pass
}

// DefaultExpirySchedulerConfig returns default expiry scheduler configuration
func DefaultExpirySchedulerConfig() ExpirySchedulerConfig {
	return ExpirySchedulerConfig{
		Enabled:       true,
		SweepInterval: 5 * time.Minute,
		SweepBatch:    100,
		SweepTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for usable values
func (c ExpirySchedulerConfig) Validate() error {
	if c.SweepInterval <= 0 || c.SweepBatch <= 0 || c.SweepTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ExpiryScheduler periodically expires overdue proposals so their items
// return to the open pool even when nobody touches the proposal again.
type ExpiryScheduler struct {
	config  ExpirySchedulerConfig
	expirer ProposalExpirer
	clock   shared.Clock
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewExpiryScheduler creates a new expiry scheduler. A nil clock falls
// back to the system clock.
func NewExpiryScheduler(config ExpirySchedulerConfig, expirer ProposalExpirer, clock shared.Clock, logger *zap.Logger) *ExpiryScheduler {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &ExpiryScheduler{
		config:  config,
		expirer: expirer,
		clock:   clock,
		logger:  logger,
	}
}

// Start starts the background sweep loop
func (s *ExpiryScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Proposal expiry scheduler started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Int("sweep_batch", s.config.SweepBatch),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *ExpiryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Proposal expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Proposal expiry scheduler stop timed out")
		return ctx.Err()
	}
}

// run is the sweep loop
func (s *ExpiryScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs a single expiry pass with its own timeout
func (s *ExpiryScheduler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	expired, err := s.expirer.ExpireDue(sweepCtx, s.clock.Now(), s.config.SweepBatch)
	if err != nil {
		s.logger.Error("Proposal expiry sweep failed", zap.Error(err))
		return
	}

	if expired > 0 {
		s.logger.Info("Expired overdue proposals", zap.Int("count", expired))
	}
}

// RunOnce triggers a single sweep immediately. Used by tests and by the
// admin surface to force a pass outside the regular interval.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return 0, ErrSchedulerNotRunning
	}

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	return s.expirer.ExpireDue(sweepCtx, s.clock.Now(), s.config.SweepBatch)
}
