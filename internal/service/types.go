package service

import (
	"time"

	"Switchyard/internal/model"
	"Switchyard/pkg/metadata"
)

// SelectRequest is the body of POST /v1/selections.
type SelectRequest struct {
	Requirements model.Requirements     `json:"requirements"`
	Preferences  model.Preferences      `json:"preferences"`
	Context      model.SelectionContext `json:"context"`
	Rules        *model.RulesOverride   `json:"rules,omitempty"`
}

// SelectReply is the outcome of a selection call.
type SelectReply struct {
	DecisionID      string               `json:"decision_id"`
	ProviderID      string               `json:"provider_id"`
	Fallbacks       []string             `json:"fallbacks"`
	Score           float64              `json:"score"`
	Breakdown       model.ScoreBreakdown `json:"breakdown"`
	Reasoning       []string             `json:"reasoning"`
	EstimatedCost   float64              `json:"estimated_cost"`
	EstimatedTimeMs int64                `json:"estimated_time_ms"`
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	ID           string                     `json:"id"`
	Priority     int                        `json:"priority"`
	Capabilities model.Capabilities         `json:"capabilities"`
	CircuitState string                     `json:"circuit_state"`
	Metadata     *metadata.ProviderMetadata `json:"metadata,omitempty"`
}

// ListProvidersReply lists providers in registration order.
type ListProvidersReply struct {
	Providers []*ProviderInfo `json:"providers"`
}

// AnalyticsRequest selects the metrics period of GET /v1/providers/analytics.
type AnalyticsRequest struct {
	Period string `json:"period"`
}

// AnalyticsReply carries per-provider analytics. Period is empty when the
// configured default was used.
type AnalyticsReply struct {
	Period    string                     `json:"period,omitempty"`
	Providers []*model.ProviderAnalytics `json:"providers"`
}

// CircuitRequest addresses one circuit.
type CircuitRequest struct {
	ProviderID string `json:"provider_id"`
}

// CircuitReply is the full state of one circuit.
type CircuitReply struct {
	Snapshot   *model.CircuitSnapshot   `json:"snapshot"`
	Statistics *model.CircuitStatistics `json:"statistics"`
}

// Call outcomes accepted by POST /v1/circuits/{id}/outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// OutcomeRequest reports the result of a provider call.
type OutcomeRequest struct {
	ProviderID     string `json:"provider_id"`
	Outcome        string `json:"outcome"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Reason         string `json:"reason,omitempty"`
}

// ResponseTime returns the reported response time.
func (r *OutcomeRequest) ResponseTime() time.Duration {
	return time.Duration(r.ResponseTimeMs) * time.Millisecond
}

// Operator actions accepted by POST /v1/circuits/{id}/{action}.
const (
	ActionOpen  = "open"
	ActionClose = "close"
	ActionReset = "reset"
)

// OverrideRequest is an operator action on one circuit.
type OverrideRequest struct {
	ProviderID string `json:"provider_id"`
	Action     string `json:"action"`
}
