// Package model holds the domain types shared by the biz and data layers.
package model

import (
	"fmt"
	"time"
)

// CircuitState is the state of a provider circuit.
type CircuitState int

const (
	// CircuitClosed allows normal traffic.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks traffic until the recovery timeout elapses.
	CircuitOpen
	// CircuitHalfOpen allows a bounded number of trial calls.
	CircuitHalfOpen
)

// String returns the state name used in logs, metrics and persisted snapshots.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *CircuitState) UnmarshalText(text []byte) error {
	state, err := ParseCircuitState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// ParseCircuitState parses a state name.
func ParseCircuitState(name string) (CircuitState, error) {
	switch name {
	case "CLOSED":
		return CircuitClosed, nil
	case "OPEN":
		return CircuitOpen, nil
	case "HALF_OPEN":
		return CircuitHalfOpen, nil
	default:
		return CircuitClosed, fmt.Errorf("unknown circuit state %q", name)
	}
}

// CircuitConfig tunes a single provider circuit.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a closed circuit.
	FailureThreshold int `json:"failure_threshold"`
	// TimeoutThreshold classifies a call as failed when its response time reaches it.
	TimeoutThreshold time.Duration `json:"timeout_threshold"`
	// RecoveryTimeout is how long an open circuit waits before probing.
	RecoveryTimeout time.Duration `json:"recovery_timeout"`
	// HalfOpenMaxCalls bounds the trial calls allowed while half-open.
	HalfOpenMaxCalls int `json:"half_open_max_calls"`
	// MonitoringWindow is the span within which failures count as consecutive.
	MonitoringWindow time.Duration `json:"monitoring_window"`
	// SuccessThreshold is the number of trial successes that closes a half-open circuit.
	SuccessThreshold int `json:"success_threshold"`
}

// DefaultCircuitConfig returns the stock circuit configuration.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		TimeoutThreshold: 60 * time.Second,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
		MonitoringWindow: 5 * time.Minute,
		SuccessThreshold: 3,
	}
}

// WithDefaults fills zero or negative fields from DefaultCircuitConfig and
// raises HalfOpenMaxCalls to at least SuccessThreshold.
func (c CircuitConfig) WithDefaults() CircuitConfig {
	d := DefaultCircuitConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = d.TimeoutThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	if c.MonitoringWindow <= 0 {
		c.MonitoringWindow = d.MonitoringWindow
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	// A half-open budget below the success threshold could never close the circuit.
	if c.HalfOpenMaxCalls < c.SuccessThreshold {
		c.HalfOpenMaxCalls = c.SuccessThreshold
	}
	return c
}

// CircuitMetrics are cumulative call metrics kept per circuit.
type CircuitMetrics struct {
	TotalCalls                int64         `json:"total_calls"`
	TotalFailures             int64         `json:"total_failures"`
	TotalSuccesses            int64         `json:"total_successes"`
	MovingAverageResponseTime time.Duration `json:"moving_average_response_time"`
	LastResponseTime          time.Duration `json:"last_response_time"`
}

// CircuitSnapshot is a point-in-time copy of a provider circuit record.
type CircuitSnapshot struct {
	ProviderID        string         `json:"provider_id"`
	State             CircuitState   `json:"state"`
	FailureCount      int            `json:"failure_count"`
	SuccessCount      int            `json:"success_count"`
	HalfOpenCallCount int            `json:"half_open_call_count"`
	LastFailureTime   time.Time      `json:"last_failure_time"`
	LastSuccessTime   time.Time      `json:"last_success_time"`
	NextAttemptTime   time.Time      `json:"next_attempt_time"`
	LastFailureReason string         `json:"last_failure_reason,omitempty"`
	Metrics           CircuitMetrics `json:"metrics"`
	Config            CircuitConfig  `json:"config"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CircuitTransition describes a single state change of a provider circuit.
type CircuitTransition struct {
	ProviderID string
	From       CircuitState
	To         CircuitState
	Reason     string
	// Manual is set for operator overrides and forced closes outside the automatic edges.
	Manual bool
	At     time.Time
	// Snapshot is the record state right after the transition.
	Snapshot CircuitSnapshot
}

// CircuitStatistics summarises one circuit for introspection.
type CircuitStatistics struct {
	ProviderID          string        `json:"provider_id"`
	State               CircuitState  `json:"state"`
	TotalCalls          int64         `json:"total_calls"`
	FailureRate         float64       `json:"failure_rate"`
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	NextAttemptTime     time.Time     `json:"next_attempt_time,omitempty"`
}

// AggregateCircuitStatistics summarises every registered circuit.
type AggregateCircuitStatistics struct {
	TotalProviders int                  `json:"total_providers"`
	Closed         int                  `json:"closed"`
	Open           int                  `json:"open"`
	HalfOpen       int                  `json:"half_open"`
	TotalCalls     int64                `json:"total_calls"`
	FailureRate    float64              `json:"failure_rate"`
	SuccessRate    float64              `json:"success_rate"`
	Providers      []*CircuitStatistics `json:"providers"`
}
