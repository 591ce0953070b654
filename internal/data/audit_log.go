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

// CircuitAuditLog is the GORM model for the provider_circuit_audit_logs table.
type CircuitAuditLog struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	ProviderID string    `gorm:"column:provider_id;type:varchar(128);not null;index"`
	ActionType string    `gorm:"column:action_type;type:varchar(50);not null"`
	FromState  string    `gorm:"column:from_state;type:varchar(16);not null"`
	ToState    string    `gorm:"column:to_state;type:varchar(16);not null"`
	Reason     string    `gorm:"column:reason;type:varchar(255)"`
	Manual     bool      `gorm:"column:manual;not null;default:false"`
	Details    string    `gorm:"column:details;type:json"` // snapshot after the transition
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (CircuitAuditLog) TableName() string {
	return "provider_circuit_audit_logs"
}

func newCircuitAuditLog(t model.CircuitTransition) (*CircuitAuditLog, error) {
	details, err := json.Marshal(t.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit log details: %w", err)
	}

	reason := t.Reason
	if len(reason) > 255 {
		reason = reason[:255]
	}

	return &CircuitAuditLog{
		ProviderID: t.ProviderID,
		ActionType: AuditEventFor(t).String(),
		FromState:  t.From.String(),
		ToState:    t.To.String(),
		Reason:     reason,
		Manual:     t.Manual,
		Details:    string(details),
		OccurredAt: t.At,
	}, nil
}

// CircuitAuditLogger records every circuit transition in MySQL. It is
// registered as a circuit listener and never blocks the breaker.
type CircuitAuditLogger struct {
	db     *gorm.DB
	writer *asyncWriter[*CircuitAuditLog]
	logger *log.Helper
}

// NewCircuitAuditLogger creates the audit logger and starts its writer goroutine.
func NewCircuitAuditLogger(d *Data, logger log.Logger) (*CircuitAuditLogger, func()) {
	helper := log.NewHelper(log.With(logger, "module", "data/audit_log"))
	a := &CircuitAuditLogger{
		db:     d.GetDB(),
		logger: helper,
	}
	a.writer = newAsyncWriter("circuit_audit", asyncWriterBuffer, a.insert, helper)

	return a, func() {
		helper.Info("flushing circuit audit log")
		a.writer.Close()
	}
}

func (a *CircuitAuditLogger) insert(ctx context.Context, row *CircuitAuditLog) error {
	if a.db == nil {
		return fmt.Errorf("audit database is not configured")
	}
	if err := a.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	a.logger.Debugw("msg", "audit log written",
		"provider_id", row.ProviderID,
		"action_type", row.ActionType)
	return nil
}

// OnTransition queues an audit row for the transition.
func (a *CircuitAuditLogger) OnTransition(_ context.Context, t model.CircuitTransition) {
	row, err := newCircuitAuditLog(t)
	if err != nil {
		a.logger.Errorw("msg", "failed to build audit log", "provider_id", t.ProviderID, "error", err)
		return
	}

	if !a.writer.enqueue(row) {
		a.logger.Warnw("msg", "audit log channel full, dropping event",
			"provider_id", t.ProviderID,
			"action_type", row.ActionType)
	}
}
