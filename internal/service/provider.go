package service

import (
	"context"

	"Switchyard/internal/biz"
	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ProviderService exposes the provider registry.
type ProviderService struct {
	uc       *biz.SelectionUsecase
	breaker  *biz.CircuitBreakerUsecase
	registry *biz.ProviderRegistry
	logger   *log.Helper
}

// NewProviderService creates a ProviderService.
func NewProviderService(
	uc *biz.SelectionUsecase,
	breaker *biz.CircuitBreakerUsecase,
	registry *biz.ProviderRegistry,
	logger log.Logger,
) *ProviderService {
	return &ProviderService{
		uc:       uc,
		breaker:  breaker,
		registry: registry,
		logger:   log.NewHelper(log.With(logger, "module", "service/provider")),
	}
}

// ListProviders returns every registered provider with its circuit state.
func (s *ProviderService) ListProviders(_ context.Context, _ *struct{}) (*ListProvidersReply, error) {
	providers := s.uc.ListProviders()
	reply := &ListProvidersReply{Providers: make([]*ProviderInfo, 0, len(providers))}
	for _, p := range providers {
		info := &ProviderInfo{
			ID:           p.Name(),
			Priority:     p.Priority(),
			Capabilities: p.Capabilities(),
		}
		if state, ok := s.breaker.GetState(p.Name()); ok {
			info.CircuitState = state.String()
		}
		if s.registry != nil {
			info.Metadata = s.registry.Metadata(p.Name())
		}
		reply.Providers = append(reply.Providers, info)
	}
	return reply, nil
}

// GetProviderAnalytics joins live signals and circuit state per provider.
func (s *ProviderService) GetProviderAnalytics(ctx context.Context, req *AnalyticsRequest) (*AnalyticsReply, error) {
	var period model.MetricsPeriod
	if req != nil && req.Period != "" {
		p, err := model.ParseMetricsPeriod(req.Period)
		if err != nil {
			return nil, biz.ErrInvalidArgument("%v", err)
		}
		period = p
	}

	analytics, err := s.uc.GetProviderAnalytics(ctx, period)
	if err != nil {
		s.logger.WithContext(ctx).Errorw("msg", "failed to build provider analytics", "error", err)
		return nil, err
	}
	return &AnalyticsReply{Period: string(period), Providers: analytics}, nil
}
