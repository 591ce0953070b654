package service

import (
	"context"

	"Switchyard/internal/biz"
	"Switchyard/internal/model"
	pkglog "Switchyard/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// CircuitService exposes circuit introspection, outcome reporting and
// operator overrides.
type CircuitService struct {
	breaker *biz.CircuitBreakerUsecase
	logger  *pkglog.LogHelper
}

// NewCircuitService creates a CircuitService.
func NewCircuitService(breaker *biz.CircuitBreakerUsecase, logger log.Logger) *CircuitService {
	return &CircuitService{
		breaker: breaker,
		logger:  pkglog.NewLogHelper(log.With(logger, "module", "service/circuit")),
	}
}

// ListCircuits returns aggregate statistics over every circuit.
func (s *CircuitService) ListCircuits(_ context.Context, _ *struct{}) (*model.AggregateCircuitStatistics, error) {
	return s.breaker.GetStatistics(), nil
}

// GetCircuit returns the snapshot and statistics of one circuit.
func (s *CircuitService) GetCircuit(_ context.Context, req *CircuitRequest) (*CircuitReply, error) {
	snap, err := s.breaker.GetSnapshot(req.ProviderID)
	if err != nil {
		return nil, err
	}
	stats, err := s.breaker.GetProviderStatistics(req.ProviderID)
	if err != nil {
		return nil, err
	}
	return &CircuitReply{Snapshot: snap, Statistics: stats}, nil
}

// RecordOutcome feeds a provider call result into its circuit.
func (s *CircuitService) RecordOutcome(_ context.Context, req *OutcomeRequest) (*model.CircuitStatistics, error) {
	if req.ResponseTimeMs < 0 {
		return nil, biz.ErrInvalidArgument("response_time_ms must not be negative")
	}
	if _, ok := s.breaker.GetState(req.ProviderID); !ok {
		return nil, biz.ErrProviderNotFound(req.ProviderID)
	}

	switch req.Outcome {
	case OutcomeSuccess:
		s.breaker.RecordSuccess(req.ProviderID, req.ResponseTime())
	case OutcomeFailure:
		s.breaker.RecordFailure(req.ProviderID, req.ResponseTime(), req.Reason)
	case OutcomeTimeout:
		s.breaker.RecordTimeout(req.ProviderID, req.ResponseTime())
	default:
		return nil, biz.ErrInvalidArgument("unknown outcome %q (want success, failure or timeout)", req.Outcome)
	}
	return s.breaker.GetProviderStatistics(req.ProviderID)
}

// Override applies an operator action. The caller must be operator-authenticated.
func (s *CircuitService) Override(ctx context.Context, req *OverrideRequest) (*CircuitReply, error) {
	if !pkglog.IsOperator(ctx) {
		return nil, errors.Forbidden("OPERATOR_REQUIRED", "circuit overrides require an operator token")
	}

	var err error
	switch req.Action {
	case ActionOpen:
		err = s.breaker.Open(req.ProviderID)
	case ActionClose:
		err = s.breaker.Close(req.ProviderID)
	case ActionReset:
		err = s.breaker.Reset(req.ProviderID)
	default:
		return nil, biz.ErrInvalidArgument("unknown action %q (want open, close or reset)", req.Action)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Audit("circuit override applied",
		"provider", req.ProviderID,
		"action", req.Action,
		"request_id", pkglog.GetRequestID(ctx),
	)
	return s.GetCircuit(ctx, &CircuitRequest{ProviderID: req.ProviderID})
}
