package services

import (
	"context"
	"sync"
	"time"

	"civic-reporter/internal/logger"
)

const sweepBatchSize = 500

// AgingSweeper periodically escalates issues that have stayed open too long.
type AgingSweeper struct {
	issues   *IssueService
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAgingSweeper(issues *IssueService, interval time.Duration) *AgingSweeper {
	return &AgingSweeper{
		issues:   issues,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. A non-positive interval disables it.
func (s *AgingSweeper) Start() {
	if s.interval <= 0 {
		logger.Info("Aging sweeper disabled", nil)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// RunOnce performs a single sweep.
func (s *AgingSweeper) RunOnce() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	changed, err := s.issues.SweepAging(ctx, sweepBatchSize)
	if err != nil {
		logger.WithError(err, "aging_sweeper").Error("Aging sweep failed")
		return changed
	}
	if changed > 0 {
		logger.Info("Aging sweep escalated issues", map[string]interface{}{"changed": changed})
	}
	return changed
}

func (s *AgingSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
