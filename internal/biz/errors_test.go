package biz

import (
	"errors"
	"testing"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
)

func reasonOf(err error) string {
	return kerrors.Reason(err)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *kerrors.Error
		code   int32
		reason string
	}{
		{name: "unavailable", err: ErrProviderUnavailable("none"), code: 503, reason: ReasonProviderUnavailable},
		{name: "rules", err: ErrNoProviderMeetsRules("none"), code: 422, reason: ReasonNoProviderMeetsRules},
		{name: "processing", err: ErrProcessing(errors.New("boom"), "failed"), code: 500, reason: ReasonProcessingError},
		{name: "not found", err: ErrProviderNotFound("x"), code: 404, reason: ReasonProviderNotFound},
		{name: "invalid", err: ErrInvalidArgument("bad %s", "input"), code: 400, reason: ReasonInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.reason, tt.err.Reason)
		})
	}
}

func TestErrProcessing_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrProcessing(cause, "signal fetch failed for provider %s", "a")

	assert.True(t, IsProcessingError(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "signal fetch failed for provider a", err.Message)
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsProviderUnavailable(ErrProviderUnavailable("x")))
	assert.True(t, IsNoProviderMeetsRules(ErrNoProviderMeetsRules("x")))
	assert.True(t, IsProviderNotFound(ErrProviderNotFound("x")))
	assert.False(t, IsProviderUnavailable(errors.New("plain")))
	assert.False(t, IsRetryable(ErrProviderUnavailable("x")))
	assert.False(t, IsRetryable(nil))
}
