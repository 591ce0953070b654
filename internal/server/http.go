package server

import (
	"context"

	"Switchyard/internal/conf"
	"Switchyard/internal/server/middleware"
	"Switchyard/internal/service"
	pkglog "Switchyard/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	auth *conf.Auth,
	selection *service.SelectionService,
	providers *service.ProviderService,
	circuits *service.CircuitService,
	logger log.Logger,
) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var token string
	if auth != nil {
		token = auth.OperatorToken
	}

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logHelper),
			selector.Server(middleware.OperatorAuth(token, logHelper)).
				Match(operatorOnly).
				Build(),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout > 0 {
			opts = append(opts, http.Timeout(c.Http.Timeout))
		}
	}
	srv := http.NewServer(opts...)

	service.RegisterSwitchyardHTTPServer(srv, selection, providers, circuits)
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

func operatorOnly(_ context.Context, operation string) bool {
	return operation == service.OperationOverrideCircuit
}
