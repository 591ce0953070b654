package biz

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

// Error reasons surfaced to callers.
const (
	ReasonProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ReasonNoProviderMeetsRules = "NO_PROVIDER_MEETS_RULES"
	ReasonProcessingError      = "PROCESSING_ERROR"
	ReasonProviderNotFound     = "PROVIDER_NOT_FOUND"
	ReasonInvalidArgument      = "INVALID_ARGUMENT"
)

// ErrProviderUnavailable reports that no registered provider can handle the request.
func ErrProviderUnavailable(format string, args ...interface{}) *errors.Error {
	return errors.New(503, ReasonProviderUnavailable, fmt.Sprintf(format, args...))
}

// ErrNoProviderMeetsRules reports that every candidate failed a hard business rule.
func ErrNoProviderMeetsRules(format string, args ...interface{}) *errors.Error {
	return errors.New(422, ReasonNoProviderMeetsRules, fmt.Sprintf(format, args...))
}

// ErrProcessing wraps an unexpected failure. The caller may retry the whole selection.
func ErrProcessing(cause error, format string, args ...interface{}) *errors.Error {
	return errors.New(500, ReasonProcessingError, fmt.Sprintf(format, args...)).
		WithCause(cause).
		WithMetadata(map[string]string{"retryable": "true"})
}

// ErrProviderNotFound reports an unknown provider id.
func ErrProviderNotFound(providerID string) *errors.Error {
	return errors.New(404, ReasonProviderNotFound, fmt.Sprintf("provider %q is not registered", providerID))
}

// ErrInvalidArgument reports a malformed request.
func ErrInvalidArgument(format string, args ...interface{}) *errors.Error {
	return errors.New(400, ReasonInvalidArgument, fmt.Sprintf(format, args...))
}

// IsProviderUnavailable reports whether err has reason PROVIDER_UNAVAILABLE.
func IsProviderUnavailable(err error) bool {
	return errors.Reason(err) == ReasonProviderUnavailable
}

// IsNoProviderMeetsRules reports whether err has reason NO_PROVIDER_MEETS_RULES.
func IsNoProviderMeetsRules(err error) bool {
	return errors.Reason(err) == ReasonNoProviderMeetsRules
}

// IsProcessingError reports whether err has reason PROCESSING_ERROR.
func IsProcessingError(err error) bool {
	return errors.Reason(err) == ReasonProcessingError
}

// IsProviderNotFound reports whether err has reason PROVIDER_NOT_FOUND.
func IsProviderNotFound(err error) bool {
	return errors.Reason(err) == ReasonProviderNotFound
}

// IsRetryable reports whether the error carries retryable=true.
func IsRetryable(err error) bool {
	e := errors.FromError(err)
	return e != nil && e.Metadata["retryable"] == "true"
}
