package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// SelectionLog is the GORM model for the provider_selection_logs table.
type SelectionLog struct {
	ID               int64     `gorm:"primaryKey;column:id"`
	DecisionID       string    `gorm:"column:decision_id;type:varchar(36);not null;uniqueIndex"`
	SelectedProvider string    `gorm:"column:selected_provider;type:varchar(128);not null;index"`
	Score            float64   `gorm:"column:score;not null"`
	EstimatedCost    float64   `gorm:"column:estimated_cost;not null"`
	EstimatedTimeMs  int64     `gorm:"column:estimated_time_ms;not null"`
	Criteria         string    `gorm:"column:criteria;type:json"`
	Rules            string    `gorm:"column:rules;type:json"`
	Candidates       string    `gorm:"column:candidates;type:json"`
	Fallbacks        string    `gorm:"column:fallbacks;type:json"`
	Reasoning        string    `gorm:"column:reasoning;type:json"`
	DecidedAt        time.Time `gorm:"column:decided_at;not null;index"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (SelectionLog) TableName() string {
	return "provider_selection_logs"
}

// newSelectionLog flattens a decision into a row; structured fields become JSON columns.
func newSelectionLog(d *model.SelectionDecision) (*SelectionLog, error) {
	row := &SelectionLog{
		DecisionID:       d.ID,
		SelectedProvider: d.SelectedProvider,
		Score:            d.Score,
		EstimatedCost:    d.EstimatedCost,
		EstimatedTimeMs:  d.EstimatedTime.Milliseconds(),
		DecidedAt:        d.Timestamp,
	}

	columns := []struct {
		dst *string
		src interface{}
	}{
		{&row.Criteria, d.Criteria},
		{&row.Rules, d.Rules},
		{&row.Candidates, d.Candidates},
		{&row.Fallbacks, d.Fallbacks},
		{&row.Reasoning, d.Reasoning},
	}
	for _, c := range columns {
		b, err := json.Marshal(c.src)
		if err != nil {
			return nil, fmt.Errorf("failed to encode decision %s: %w", d.ID, err)
		}
		*c.dst = string(b)
	}

	return row, nil
}

// DecisionLogRepo appends selection decisions to MySQL through an async writer.
type DecisionLogRepo struct {
	db     *gorm.DB
	writer *asyncWriter[*SelectionLog]
	logger *log.Helper
}

// NewDecisionLogRepo creates the repository and starts its writer goroutine.
// The cleanup function drains pending rows.
func NewDecisionLogRepo(d *Data, logger log.Logger) (*DecisionLogRepo, func()) {
	helper := log.NewHelper(log.With(logger, "module", "data/decision_log"))
	r := &DecisionLogRepo{
		db:     d.GetDB(),
		logger: helper,
	}
	r.writer = newAsyncWriter("decision_log", asyncWriterBuffer, r.insert, helper)

	return r, func() {
		helper.Info("flushing decision log")
		r.writer.Close()
	}
}

func (r *DecisionLogRepo) insert(ctx context.Context, row *SelectionLog) error {
	if r.db == nil {
		return fmt.Errorf("decision log database is not configured")
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// Append queues the decision for insertion. It returns an error when the
// decision cannot be encoded or the queue is full; the row is then dropped.
func (r *DecisionLogRepo) Append(_ context.Context, decision *model.SelectionDecision) error {
	row, err := newSelectionLog(decision)
	if err != nil {
		return err
	}
	if !r.writer.enqueue(row) {
		return fmt.Errorf("decision log queue full, dropped decision %s", decision.ID)
	}
	return nil
}

// PurgeBefore deletes decisions made before cutoff and returns the row count.
func (r *DecisionLogRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("decision log database is not configured")
	}

	result := r.db.WithContext(ctx).Where("decided_at < ?", cutoff).Delete(&SelectionLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge decision log: %w", result.Error)
	}

	r.logger.Infow("msg", "decision log purged",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", result.RowsAffected)

	return result.RowsAffected, nil
}
