// Package scheduler runs the hierarchy repair for every owner on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"taskhub/hierarchy"
	"taskhub/logging"
)

const defaultRunTimeout = 5 * time.Minute

type Repairer interface {
	RepairAll(ctx context.Context) (*hierarchy.RepairReport, error)
}

type Scheduler struct {
	cron       *cron.Cron
	repairer   Repairer
	runTimeout time.Duration
}

func NewScheduler(repairer Repairer) *Scheduler {
	logger := cron.PrintfLogger(logging.Logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		repairer:   repairer,
		runTimeout: defaultRunTimeout,
	}
}

// Start registers the repair job on spec (six fields, seconds first) and
// starts the cron loop. An empty spec disables the job.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		logging.Logger.Info("Repair schedule empty, scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule repair %q: %w", spec, err)
	}

	s.cron.Start()
	logging.Logger.WithField("schedule", spec).Info("Cron scheduler started")
	return nil
}

// Stop stops scheduling and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.repairer.RepairAll(ctx)

	log := logging.Logger.WithField("duration", time.Since(start))
	if report != nil {
		log = log.WithFields(logrus.Fields{
			"owners":             report.Owners,
			"checked":            report.Checked,
			"ancestors_cleared":  report.AncestorsCleared,
			"cycles_broken":      report.CyclesBroken,
			"children_rewritten": report.ChildrenRewritten,
			"skipped":            report.Skipped,
		})
	}
	if err != nil {
		log.WithError(err).Error("Scheduled repair failed")
		return
	}
	log.Info("Scheduled repair completed")
}
