// Package biz contains business logic layer implementations.
// It holds the circuit breaker, the provider scorer and the selection engine.
package biz

import (
	"Switchyard/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCircuitBreakerUsecase,
	NewCircuitMonitor,
	NewProviderScorer,
	NewSelectionUsecase,
	NewDecisionRetentionTask,
	NewProviderRegistry,
	// Import data layer providers
	data.NewCircuitStateRepo,
	data.NewDecisionLogRepo,
	data.NewCircuitAuditLogger,
	data.NewNoopWebhookService,
	data.NewSignalCache,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CircuitStateRepo), new(*data.CircuitStateRepo)),
	wire.Bind(new(DecisionLogRepo), new(*data.DecisionLogRepo)),
	wire.Bind(new(SignalCache), new(*data.SignalCache)),
)
