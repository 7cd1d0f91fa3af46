// Package jobs runs periodic maintenance inside the API process.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PurgeSpec runs the purge once a day at 03:15 UTC.
const PurgeSpec = "15 3 * * *"

type UsagePurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ReportPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	log       *zap.Logger
	usage     UsagePurger
	reports   ReportPurger
	retention time.Duration
	now       func() time.Time
}

// zapCron adapts zap to cron.Logger.
type zapCron struct{ s *zap.SugaredLogger }

func (l zapCron) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l zapCron) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

func New(log *zap.Logger, usage UsagePurger, reports ReportPurger, retention time.Duration) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := zapCron{s: log.Named("cron").Sugar()}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:       log,
		usage:     usage,
		reports:   reports,
		retention: retention,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the scheduler in its own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(PurgeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.RunPurge(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for a running job up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunPurge deletes usage rows past retention and expired exam reports.
func (s *Scheduler) RunPurge(ctx context.Context) {
	if s.usage != nil && s.retention > 0 {
		cutoff := s.now().Add(-s.retention)
		n, err := s.usage.PurgeBefore(ctx, cutoff)
		if err != nil {
			s.log.Error("usage purge failed", zap.Error(err))
		} else {
			s.log.Info("usage purged", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
		}
	}
	if s.reports != nil {
		n, err := s.reports.PurgeExpired(ctx)
		if err != nil {
			s.log.Error("report purge failed", zap.Error(err))
		} else {
			s.log.Info("expired reports purged", zap.Int("reports", n))
		}
	}
}
