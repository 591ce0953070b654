package biz

import (
	"context"
	"fmt"
	"time"

	"Switchyard/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultDecisionLogDays = 30

// DecisionRetentionTask purges selection decisions past their retention.
type DecisionRetentionTask struct {
	repo      DecisionLogRepo
	retention time.Duration
	spec      string
	now       func() time.Time
	logger    *log.Helper
}

// NewDecisionRetentionTask creates the retention task.
func NewDecisionRetentionTask(c *conf.Retention, repo DecisionLogRepo, logger log.Logger) *DecisionRetentionTask {
	days := defaultDecisionLogDays
	spec := ""
	if c != nil {
		if c.DecisionLogDays > 0 {
			days = c.DecisionLogDays
		}
		spec = c.CronSpec
	}
	return &DecisionRetentionTask{
		repo:      repo,
		retention: time.Duration(days) * 24 * time.Hour,
		spec:      spec,
		now:       time.Now,
		logger:    log.NewHelper(log.With(logger, "module", "biz/retention")),
	}
}

// Spec returns the cron schedule configured for the task.
func (t *DecisionRetentionTask) Spec() string {
	return t.spec
}

// PurgeExpired deletes decisions older than the retention period.
func (t *DecisionRetentionTask) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := t.now().Add(-t.retention)
	deleted, err := t.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge decisions before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	t.logger.Infow("msg", "decision log retention completed",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", deleted,
	)
	return deleted, nil
}
