package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CacheSweepSpec is how often expired cache entries are swept
const CacheSweepSpec = "@every 1s"

// QueueProcessor handles one download queue row per call
type QueueProcessor interface {
	ProcessNext(ctx context.Context) (bool, error)
}

// CycleRunner runs one full series tracking cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// CacheSweeper drops expired entries from every registered cache
type CacheSweeper interface {
	SweepAll() map[string]int
}

// Config holds the background job timings
type Config struct {
	TrackInterval time.Duration // between two tracking cycles
	QueueSleep    time.Duration // after every download worker iteration
}

// Scheduler runs the cache sweep and the series checker on cron and the
// download worker as a long-running loop
type Scheduler struct {
	cron    *cron.Cron
	queue   QueueProcessor
	tracker CycleRunner
	sweeper CacheSweeper
	metrics *metrics.Metrics
	cfg     Config
	logger  *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(queue QueueProcessor, tracker CycleRunner, sweeper CacheSweeper, m *metrics.Metrics, cfg Config, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		queue:   queue,
		tracker: tracker,
		sweeper: sweeper,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the jobs and starts every background worker
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler")

	if s.cfg.TrackInterval < time.Second {
		return fmt.Errorf("track interval %s is below one second", s.cfg.TrackInterval)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(CacheSweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("failed to add cache sweep job: %w", err)
	}

	// The first tracking cycle runs one full interval after start
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.TrackInterval), s.runTrackCycle); err != nil {
		return fmt.Errorf("failed to add track series job: %w", err)
	}

	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runQueueWorker()
	}()

	s.logger.WithFields(logrus.Fields{
		"track_interval": s.cfg.TrackInterval.String(),
		"queue_sleep":    s.cfg.QueueSleep.String(),
	}).Info("Scheduler started")

	return nil
}

// Stop cancels the running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// runSweep executes the cache sweep job
func (s *Scheduler) runSweep() {
	for name, removed := range s.sweeper.SweepAll() {
		if removed == 0 {
			continue
		}
		s.metrics.CacheEvictions.WithLabelValues(name).Add(float64(removed))
		s.logger.WithFields(logrus.Fields{
			"cache":   name,
			"removed": removed,
		}).Debug("Expired cache entries swept")
	}
}

// runTrackCycle executes the series tracking job
func (s *Scheduler) runTrackCycle() {
	s.logger.Debug("Running scheduled track series check")

	if err := s.tracker.RunCycle(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.WithError(err).Error("Track series job failed")
	}
}

// runQueueWorker drains the download queue one row per iteration until
// the scheduler stops
func (s *Scheduler) runQueueWorker() {
	s.logger.Info("Download queue worker started")

	for {
		s.processQueueItem()

		select {
		case <-s.ctx.Done():
			s.logger.Info("Download queue worker stopped")
			return
		case <-time.After(s.cfg.QueueSleep):
		}
	}
}

// processQueueItem runs one worker iteration. A panic is logged and the
// worker keeps going.
func (s *Scheduler) processQueueItem() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Download queue worker panicked")
		}
	}()

	processed, err := s.queue.ProcessNext(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.WithError(err).Error("Download queue item failed")
		return
	}
	if !processed {
		s.logger.Trace("Download queue is empty")
	}
}
