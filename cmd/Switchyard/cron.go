package main

import (
	"context"
	"time"

	"Switchyard/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	// defaultRetentionSpec runs daily at 03:30 (sec min hour dom month dow).
	defaultRetentionSpec = "0 30 3 * * *"
	retentionJobTimeout  = 10 * time.Minute
)

// RetentionCron schedules the decision log purge. It implements the kratos
// transport.Server interface so the app owns its lifecycle.
type RetentionCron struct {
	cron   *cron.Cron
	spec   string
	logger *log.Helper
}

// NewRetentionCron registers the purge job without starting the scheduler.
func NewRetentionCron(task *biz.DecisionRetentionTask, logger log.Logger) (*RetentionCron, error) {
	helper := log.NewHelper(log.With(logger, "module", "cron/retention"))

	spec := task.Spec()
	if spec == "" {
		spec = defaultRetentionSpec
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		helper.Info("Starting decision log retention task...")
		ctx, cancel := context.WithTimeout(context.Background(), retentionJobTimeout)
		defer cancel()

		if _, err := task.PurgeExpired(ctx); err != nil {
			helper.Errorw("msg", "decision log retention task failed", "error", err)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register retention cron job", "spec", spec, "error", err)
		return nil, err
	}

	return &RetentionCron{cron: c, spec: spec, logger: helper}, nil
}

// Start starts the scheduler in its own goroutine.
func (r *RetentionCron) Start(context.Context) error {
	r.cron.Start()
	r.logger.Infow("msg", "retention cron job started", "spec", r.spec)
	return nil
}

// Stop stops the scheduler and waits for a running job or ctx.
func (r *RetentionCron) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
