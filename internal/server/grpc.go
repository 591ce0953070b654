package server

import (
	"context"

	"Switchyard/internal/biz"
	"Switchyard/internal/conf"
	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// CircuitHealthReporter mirrors circuit states into the gRPC health service,
// one service name per provider. An OPEN circuit reports NOT_SERVING.
type CircuitHealthReporter struct {
	health *health.Server
	logger *log.Helper
}

// NewCircuitHealthReporter seeds statuses from the registered circuits and
// subscribes to later transitions. The registry argument orders construction
// after provider registration and state restore.
func NewCircuitHealthReporter(_ *biz.ProviderRegistry, breaker *biz.CircuitBreakerUsecase, logger log.Logger) *CircuitHealthReporter {
	r := &CircuitHealthReporter{
		health: health.NewServer(),
		logger: log.NewHelper(log.With(logger, "module", "server/health")),
	}
	for _, id := range breaker.ProviderIDs() {
		if state, ok := breaker.GetState(id); ok {
			r.health.SetServingStatus(id, servingStatus(state))
		}
	}
	breaker.AddListener(r)
	return r
}

// OnTransition implements biz.CircuitListener.
func (r *CircuitHealthReporter) OnTransition(_ context.Context, t model.CircuitTransition) {
	status := servingStatus(t.To)
	r.health.SetServingStatus(t.ProviderID, status)
	r.logger.Debugw("msg", "provider health updated", "provider", t.ProviderID, "status", status.String())
}

// Server returns the underlying health server.
func (r *CircuitHealthReporter) Server() *health.Server {
	return r.health
}

func servingStatus(state model.CircuitState) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if state == model.CircuitOpen {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

// NewGRPCServer new a gRPC server exposing per-provider health.
func NewGRPCServer(c *conf.Server, reporter *CircuitHealthReporter, logger log.Logger) *grpc.Server {
	var opts = []grpc.ServerOption{
		grpc.CustomHealth(),
		grpc.Middleware(
			recovery.Recovery(),
		),
	}
	if c != nil && c.Grpc != nil {
		if c.Grpc.Network != "" {
			opts = append(opts, grpc.Network(c.Grpc.Network))
		}
		if c.Grpc.Addr != "" {
			opts = append(opts, grpc.Address(c.Grpc.Addr))
		}
		if c.Grpc.Timeout > 0 {
			opts = append(opts, grpc.Timeout(c.Grpc.Timeout))
		}
	}
	srv := grpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(srv, reporter.Server())
	log.NewHelper(logger).Debugw("msg", "grpc health service registered")
	return srv
}
