// Package middleware provides HTTP middleware for operator authentication and request logging.
package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	pkglog "Switchyard/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

const (
	reasonOperatorDisabled = "OPERATOR_DISABLED"
	reasonUnauthorized     = "UNAUTHORIZED"
)

// OperatorAuth returns a middleware that accepts only requests carrying the
// configured operator token, either as "Authorization: Bearer <token>" or in
// the X-Operator-Token header. An empty token disables operator access.
func OperatorAuth(token string, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if token == "" {
				return nil, errors.Forbidden(reasonOperatorDisabled, "operator access is not configured")
			}

			var presented, operation string
			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
				presented = extractToken(tr.RequestHeader())
			}

			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Security("rejected operator request",
					"operation", operation,
					"token", maskToken(presented),
					"request_id", pkglog.GetRequestID(ctx),
				)
				return nil, errors.Unauthorized(reasonUnauthorized, "a valid operator token is required")
			}

			if pkglog.GetRequestID(ctx) == "unknown" {
				ctx = pkglog.WithRequestContext(ctx, pkglog.GenerateRequestID())
			}
			pkglog.MarkOperator(ctx)
			logger.Security("operator request authenticated",
				"operation", operation,
				"request_id", pkglog.GetRequestID(ctx),
			)
			return handler(ctx, req)
		}
	}
}

func extractToken(h transport.Header) string {
	if auth := h.Get("Authorization"); auth != "" {
		if t := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); t != "" && t != auth {
			return t
		}
	}
	return strings.TrimSpace(h.Get("X-Operator-Token"))
}

// maskToken keeps the first 4 characters: "s3cr3t-token" -> "s3cr***".
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "***"
}
