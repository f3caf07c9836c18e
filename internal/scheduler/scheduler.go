package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/session"
)

// DefaultInterval is how often quotes are refreshed while a session is active.
const DefaultInterval = 120 * time.Second

// Refresher is the task the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Scheduler runs the quote refresh immediately and then on a fixed interval for
// as long as a session is active.
type Scheduler struct {
	Feed     Refresher
	Interval time.Duration
	Ctx      context.Context

	log    logrus.FieldLogger
	mu     sync.Mutex
	cron   *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. A non-positive interval selects DefaultInterval.
func NewScheduler(ctx context.Context, feed Refresher, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Feed:     feed,
		Interval: interval,
		Ctx:      ctx,
		log:      log.WithField("component", "scheduler"),
	}
}

// Start begins polling on behalf of sess and registers Stop to run when the
// session ends.
func (s *Scheduler) Start(sess *session.Session) error {
	if !sess.Active() {
		return errors.New("session is not active")
	}

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	ctx, cancel := context.WithCancel(s.Ctx)
	c := cron.New(cron.WithLogger(cron.PrintfLogger(s.log)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() { s.Feed.Refresh(ctx) }); err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("register refresh task: %w", err)
	}
	s.cron = c
	s.runCtx = ctx
	s.cancel = cancel
	c.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Feed.Refresh(ctx)
	}()
	s.mu.Unlock()

	sess.OnEnd(s.Stop)
	s.log.WithField("session", sess.ID).Infof("scheduler started, refreshing every %s", s.Interval)
	return nil
}

// Running reports whether the schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RefreshNow triggers a manual refresh in the background. It is dropped by the
// feed when another refresh is outstanding.
func (s *Scheduler) RefreshNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	ctx := s.runCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Feed.Refresh(ctx)
	}()
}

// Stop cancels the schedule and waits for any running refresh to return.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.runCtx, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}
