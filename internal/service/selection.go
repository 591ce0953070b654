package service

import (
	"context"

	"Switchyard/internal/biz"
	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// SelectionService exposes provider selection.
type SelectionService struct {
	uc     *biz.SelectionUsecase
	logger *log.Helper
}

// NewSelectionService creates a SelectionService.
func NewSelectionService(uc *biz.SelectionUsecase, logger log.Logger) *SelectionService {
	return &SelectionService{
		uc:     uc,
		logger: log.NewHelper(log.With(logger, "module", "service/selection")),
	}
}

// Select picks the best provider for the request.
func (s *SelectionService) Select(ctx context.Context, req *SelectRequest) (*SelectReply, error) {
	if req == nil {
		return nil, biz.ErrInvalidArgument("request body is required")
	}
	criteria := &model.SelectionCriteria{
		Requirements: req.Requirements,
		Preferences:  req.Preferences,
		Context:      req.Context,
	}

	result, err := s.uc.SelectOptimalProvider(ctx, criteria, req.Rules)
	if err != nil {
		s.logger.WithContext(ctx).Warnw("msg", "selection failed", "error", err)
		return nil, err
	}

	return &SelectReply{
		DecisionID:      result.DecisionID,
		ProviderID:      result.ProviderID,
		Fallbacks:       result.Fallbacks,
		Score:           result.Score,
		Breakdown:       result.Breakdown,
		Reasoning:       result.Reasoning,
		EstimatedCost:   result.EstimatedCost,
		EstimatedTimeMs: result.EstimatedTime.Milliseconds(),
	}, nil
}
