package scheduler

import (
	"context"
	"sync"
	"time"

	appstock "github.com/stockcore/backend/internal/application/stock"
	"go.uber.org/zap"
)

// ExpirySweeper runs one expiry pass over overdue reservations
type ExpirySweeper interface {
	ExpireDue(ctx context.Context, now time.Time) (appstock.ExpirySweepStats, error)
}

// SweeperConfig holds reservation sweeper configuration
type SweeperConfig struct {
	Interval time.Duration
}

// DefaultSweeperConfig returns the default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: time.Minute}
}

// ReservationSweeper drives the reservation expiry service on a ticker. One
// sweep runs at a time; a slow sweep simply delays the next tick.
type ReservationSweeper struct {
	config  SweeperConfig
	sweeper ExpirySweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReservationSweeper creates a new ReservationSweeper
func NewReservationSweeper(config SweeperConfig, sweeper ExpirySweeper, logger *zap.Logger) *ReservationSweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationSweeper{
		config:  config,
		sweeper: sweeper,
		logger:  logger.Named("reservation_sweeper"),
	}
}

// Start starts the ticker loop
func (s *ReservationSweeper) Start(ctx context.Context) error {
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

	s.logger.Info("reservation sweeper started",
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop stops the ticker loop and waits for an in-flight sweep to finish
func (s *ReservationSweeper) Stop(ctx context.Context) error {
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
		s.logger.Info("reservation sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("reservation sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *ReservationSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *ReservationSweeper) sweepOnce(ctx context.Context) {
	stats, err := s.sweeper.ExpireDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if stats.Scanned > 0 {
		s.logger.Info("expiry sweep completed",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}
}
