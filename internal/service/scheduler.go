package service

import (
	"context"
	"sync"
	"time"

	"whatsflow/internal/constants"
	"whatsflow/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Cleaner deletes messages older than the retention window.
type Cleaner interface {
	CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler enforces message retention: one sweep at start, then one per
// interval. Conversations are never deleted.
type Scheduler struct {
	cleaner       Cleaner
	retentionDays int
	interval      time.Duration
	logger        *logrus.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(cleaner Cleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	s := &Scheduler{
		cleaner:       cleaner,
		retentionDays: constants.DefaultRetentionDays,
		interval:      constants.DefaultCleanupIntervalHours * time.Hour,
		logger:        logger,
		done:          make(chan struct{}),
	}
	if retentionDays > 0 {
		s.retentionDays = retentionDays
	}
	if intervalHours > 0 {
		s.interval = time.Duration(intervalHours) * time.Hour
	}
	return s
}

// Start blocks until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	log := s.logger.WithField("retention_days", s.retentionDays)
	log.WithField("interval", s.interval.String()).Info("Retention scheduler running")

	next := time.NewTimer(0)
	defer next.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Retention scheduler stopped")
			return
		case <-s.done:
			log.Info("Retention scheduler stopped")
			return
		case <-next.C:
			s.sweep(ctx, log)
			next.Reset(s.interval)
		}
	}
}

// Stop is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) sweep(ctx context.Context, log *logrus.Entry) {
	started := time.Now()
	deleted, err := s.cleaner.CleanupOldMessages(ctx, s.retentionDays)
	if err != nil {
		log.WithError(err).Error("Retention sweep failed")
		return
	}

	metrics.AddToCounter(metrics.RetentionDeletedTotal, float64(deleted), nil, "Messages deleted by retention")
	log.WithFields(logrus.Fields{
		LogFieldCount:    deleted,
		LogFieldDuration: time.Since(started).Milliseconds(),
	}).Info("Retention sweep completed")
}
