package biz

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/mock"
)

func testLogger() log.Logger {
	return log.NewStdLogger(os.Stdout)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memCircuitRepo is an in-memory CircuitStateRepo.
type memCircuitRepo struct {
	mu      sync.Mutex
	snaps   map[string]model.CircuitSnapshot
	saves   int
	saveErr error
}

func newMemCircuitRepo() *memCircuitRepo {
	return &memCircuitRepo{snaps: make(map[string]model.CircuitSnapshot)}
}

func (r *memCircuitRepo) Save(_ context.Context, snap *model.CircuitSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.snaps[snap.ProviderID] = *snap
	return nil
}

func (r *memCircuitRepo) Load(_ context.Context, id string) (*model.CircuitSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[id]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (r *memCircuitRepo) LoadAll(_ context.Context) ([]*model.CircuitSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.CircuitSnapshot, 0, len(r.snaps))
	for _, snap := range r.snaps {
		snap := snap
		out = append(out, &snap)
	}
	return out, nil
}

func (r *memCircuitRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snaps, id)
	return nil
}

func (r *memCircuitRepo) get(id string) (model.CircuitSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[id]
	return snap, ok
}

func (r *memCircuitRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// MockDecisionLogRepo is a mock implementation of DecisionLogRepo for testing.
type MockDecisionLogRepo struct {
	mock.Mock
}

func (m *MockDecisionLogRepo) Append(ctx context.Context, decision *model.SelectionDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockDecisionLogRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// recordingListener collects transitions.
type recordingListener struct {
	mu          sync.Mutex
	transitions []model.CircuitTransition
}

func (l *recordingListener) OnTransition(_ context.Context, t model.CircuitTransition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, t)
}

func (l *recordingListener) all() []model.CircuitTransition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.CircuitTransition, len(l.transitions))
	copy(out, l.transitions)
	return out
}

// fakeProvider is a configurable Provider.
type fakeProvider struct {
	name         string
	priority     int
	caps         model.Capabilities
	cost         float64
	rejects      bool
	canHandleErr error
	costErr      error
	health       *model.HealthStatus
	metrics      *model.PerformanceMetrics
	healthErr    error
	// block makes the signal calls wait for ctx cancellation.
	block bool

	healthCalls atomic.Int32
}

func (p *fakeProvider) Name() string                     { return p.name }
func (p *fakeProvider) Priority() int                    { return p.priority }
func (p *fakeProvider) Capabilities() model.Capabilities { return p.caps }

func (p *fakeProvider) CanHandle(_ context.Context, req *model.Requirements) (bool, error) {
	if p.canHandleErr != nil {
		return false, p.canHandleErr
	}
	return !p.rejects && p.caps.Satisfies(req), nil
}

func (p *fakeProvider) EstimateCost(_ context.Context, _ *model.Requirements) (float64, error) {
	return p.cost, p.costErr
}

func (p *fakeProvider) GetHealth(ctx context.Context) (*model.HealthStatus, error) {
	p.healthCalls.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.healthErr != nil {
		return nil, p.healthErr
	}
	return p.health, nil
}

func (p *fakeProvider) GetPerformanceMetrics(ctx context.Context, _ model.MetricsPeriod) (*model.PerformanceMetrics, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.metrics == nil {
		return nil, errors.New("metrics unavailable")
	}
	return p.metrics, nil
}

func healthyStatus() *model.HealthStatus {
	return &model.HealthStatus{IsHealthy: true, Uptime: 99.5, ErrorRate: 0.01, ResponseTimeMs: 800}
}

func goodMetrics() *model.PerformanceMetrics {
	return &model.PerformanceMetrics{
		SuccessRate:              0.95,
		AverageGenerationTimeSec: 120,
		AverageVideoQuality:      8,
		UserSatisfactionScore:    4.5,
	}
}

func newHealthyProvider(name string, priority int) *fakeProvider {
	return &fakeProvider{
		name:     name,
		priority: priority,
		caps:     model.Capabilities{RealTime: true, HighQuality: true},
		cost:     10,
		health:   healthyStatus(),
		metrics:  goodMetrics(),
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
