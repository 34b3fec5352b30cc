package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSchedulerTick = 15 * time.Minute

// SyncScheduler periodically checks whether the user's sync is due and runs
// it in the background, off the caller's interaction path.
type SyncScheduler struct {
	sync   *SyncService
	userID string
	logger *zap.Logger

	tick   time.Duration
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSyncScheduler(syncSvc *SyncService, userID string, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		sync:   syncSvc,
		userID: userID,
		logger: logger,
		tick:   defaultSchedulerTick,
		stopCh: make(chan struct{}),
	}
}

func (s *SyncScheduler) SetTick(d time.Duration) {
	s.tick = d
}

// Start runs the scheduler in a background goroutine.
func (s *SyncScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		s.logger.Info("sync scheduler started", zap.Duration("tick", s.tick))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("sync scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *SyncScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *SyncScheduler) run(ctx context.Context) {
	due, err := s.sync.Due(ctx, s.userID)
	if err != nil {
		s.logger.Error("failed to check sync schedule", zap.Error(err))
		return
	}
	if !due {
		return
	}

	result, err := s.sync.SyncToBackend(ctx, s.userID, false)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
		return
	}
	if result.Error != "" {
		s.logger.Warn("scheduled sync push rejected", zap.String("error", result.Error))
	}
}
