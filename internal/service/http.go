package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

// Operation names, matched by middleware selectors.
const (
	OperationSelect               = "/switchyard.v1.Switchyard/Select"
	OperationListProviders        = "/switchyard.v1.Switchyard/ListProviders"
	OperationGetProviderAnalytics = "/switchyard.v1.Switchyard/GetProviderAnalytics"
	OperationListCircuits         = "/switchyard.v1.Switchyard/ListCircuits"
	OperationGetCircuit           = "/switchyard.v1.Switchyard/GetCircuit"
	OperationRecordOutcome        = "/switchyard.v1.Switchyard/RecordOutcome"
	OperationOverrideCircuit      = "/switchyard.v1.Switchyard/OverrideCircuit"
)

// RegisterSwitchyardHTTPServer binds the service routes to s.
func RegisterSwitchyardHTTPServer(s *http.Server, sel *SelectionService, prov *ProviderService, circ *CircuitService) {
	r := s.Route("/")
	r.POST("/v1/selections", _Select0_HTTP_Handler(sel))
	r.GET("/v1/providers", _ListProviders0_HTTP_Handler(prov))
	r.GET("/v1/providers/analytics", _GetProviderAnalytics0_HTTP_Handler(prov))
	r.GET("/v1/circuits", _ListCircuits0_HTTP_Handler(circ))
	r.GET("/v1/circuits/{provider_id}", _GetCircuit0_HTTP_Handler(circ))
	r.POST("/v1/circuits/{provider_id}/outcome", _RecordOutcome0_HTTP_Handler(circ))
	r.POST("/v1/circuits/{provider_id}/open", _OverrideCircuit0_HTTP_Handler(circ, ActionOpen))
	r.POST("/v1/circuits/{provider_id}/close", _OverrideCircuit0_HTTP_Handler(circ, ActionClose))
	r.POST("/v1/circuits/{provider_id}/reset", _OverrideCircuit0_HTTP_Handler(circ, ActionReset))
}

func _Select0_HTTP_Handler(srv *SelectionService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in SelectRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationSelect)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Select(ctx, req.(*SelectRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*SelectReply))
	}
}

func _ListProviders0_HTTP_Handler(srv *ProviderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, OperationListProviders)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListProviders(ctx, nil)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ListProvidersReply))
	}
}

func _GetProviderAnalytics0_HTTP_Handler(srv *ProviderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in AnalyticsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationGetProviderAnalytics)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetProviderAnalytics(ctx, req.(*AnalyticsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*AnalyticsReply))
	}
}

func _ListCircuits0_HTTP_Handler(srv *CircuitService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, OperationListCircuits)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListCircuits(ctx, nil)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _GetCircuit0_HTTP_Handler(srv *CircuitService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := CircuitRequest{ProviderID: ctx.Vars().Get("provider_id")}
		http.SetOperation(ctx, OperationGetCircuit)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetCircuit(ctx, req.(*CircuitRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*CircuitReply))
	}
}

func _RecordOutcome0_HTTP_Handler(srv *CircuitService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OutcomeRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.ProviderID = ctx.Vars().Get("provider_id")
		http.SetOperation(ctx, OperationRecordOutcome)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.RecordOutcome(ctx, req.(*OutcomeRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OverrideCircuit0_HTTP_Handler(srv *CircuitService, action string) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := OverrideRequest{ProviderID: ctx.Vars().Get("provider_id"), Action: action}
		http.SetOperation(ctx, OperationOverrideCircuit)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Override(ctx, req.(*OverrideRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*CircuitReply))
	}
}
