package biz

import (
	"context"
	"testing"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitMonitor_TickSweepsFlushesAndWarms(t *testing.T) {
	repo := newMemCircuitRepo()
	breaker, clock, _ := newTestBreaker(repo)
	cache := newStubSignalCache()
	selection := NewSelectionUsecase(&conf.Selector{Rules: model.DefaultBusinessRules()}, breaker, NewProviderScorer(nil), cache, nil, testLogger())
	selection.now = clock.Now

	a := newHealthyProvider("a", 1)
	require.NoError(t, selection.RegisterProvider(a, &model.CircuitConfig{FailureThreshold: 1, RecoveryTimeout: time.Second}))
	breaker.RecordFailure("a", time.Millisecond, "boom")
	clock.Advance(2 * time.Second)

	m := NewCircuitMonitor(&conf.Breaker{HealthCheckInterval: time.Hour}, breaker, selection, cache, testLogger())
	m.Tick(context.Background())

	state, _ := breaker.GetState("a")
	assert.Equal(t, model.CircuitHalfOpen, state)
	saved, ok := repo.get("a")
	require.True(t, ok)
	assert.Equal(t, model.CircuitHalfOpen, saved.State)
	assert.Equal(t, int32(1), a.healthCalls.Load())
}

func TestCircuitMonitor_StartStop(t *testing.T) {
	repo := newMemCircuitRepo()
	breaker, _, _ := newTestBreaker(repo)
	breaker.Register("a", nil)
	breaker.RecordSuccess("a", time.Millisecond)

	m := NewCircuitMonitor(&conf.Breaker{HealthCheckInterval: 10 * time.Millisecond}, breaker, nil, nil, testLogger())
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, ok := repo.get("a")
		return ok
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))
}

func TestCircuitMonitor_StopWithoutStart(t *testing.T) {
	breaker, _, _ := newTestBreaker(nil)
	m := NewCircuitMonitor(nil, breaker, nil, nil, testLogger())
	assert.Equal(t, defaultHealthCheckInterval, m.interval)
	assert.NoError(t, m.Stop(context.Background()))
}
