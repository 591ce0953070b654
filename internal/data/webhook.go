package data

import (
	"context"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// NoopWebhookService only logs circuit open and recovery events.
// An HTTP webhook sender can replace it behind the same listener contract.
type NoopWebhookService struct {
	logger *log.Helper
}

// NewNoopWebhookService creates a new noop webhook service.
func NewNoopWebhookService(logger log.Logger) *NoopWebhookService {
	return &NoopWebhookService{
		logger: log.NewHelper(log.With(logger, "module", "data/webhook")),
	}
}

// OnTransition logs the notification that would be sent.
func (s *NoopWebhookService) OnTransition(_ context.Context, t model.CircuitTransition) {
	switch t.To {
	case model.CircuitOpen:
		s.logger.Infow("msg", "circuit opened (webhook disabled)",
			"provider_id", t.ProviderID,
			"reason", t.Reason,
			"manual", t.Manual,
			"next_attempt_time", t.Snapshot.NextAttemptTime)
	case model.CircuitClosed:
		s.logger.Infow("msg", "circuit recovered (webhook disabled)",
			"provider_id", t.ProviderID,
			"from", t.From.String(),
			"manual", t.Manual,
			"total_calls", t.Snapshot.Metrics.TotalCalls)
	}
}
