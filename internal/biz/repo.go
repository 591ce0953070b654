package biz

import (
	"context"
	"time"

	"Switchyard/internal/model"
)

// Provider is an interchangeable generation backend. Every method that takes
// a context may block on network I/O.
type Provider interface {
	Name() string
	// Priority is the static rank; 1 is the most preferred.
	Priority() int
	Capabilities() model.Capabilities
	CanHandle(ctx context.Context, req *model.Requirements) (bool, error)
	EstimateCost(ctx context.Context, req *model.Requirements) (float64, error)
	GetHealth(ctx context.Context) (*model.HealthStatus, error)
	GetPerformanceMetrics(ctx context.Context, period model.MetricsPeriod) (*model.PerformanceMetrics, error)
}

// CircuitStateRepo persists circuit snapshots, upserted by provider id.
type CircuitStateRepo interface {
	Save(ctx context.Context, snap *model.CircuitSnapshot) error
	// Load returns nil without error when no snapshot exists.
	Load(ctx context.Context, providerID string) (*model.CircuitSnapshot, error)
	LoadAll(ctx context.Context) ([]*model.CircuitSnapshot, error)
	Delete(ctx context.Context, providerID string) error
}

// DecisionLogRepo is the append-only selection decision sink.
type DecisionLogRepo interface {
	Append(ctx context.Context, decision *model.SelectionDecision) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalCache caches provider health and metrics. Get returns nil when
// nothing is cached and reports whether a cached value is still fresh.
type SignalCache interface {
	Get(providerID string, period model.MetricsPeriod) (*model.ProviderSignals, bool)
	Set(providerID string, period model.MetricsPeriod, signals model.ProviderSignals)
	Remove(providerID string)
	Stats() (size, capacity, hits, misses int64)
}

// CircuitListener observes circuit transitions. OnTransition is called
// outside the circuit lock and must not block.
type CircuitListener interface {
	OnTransition(ctx context.Context, t model.CircuitTransition)
}
