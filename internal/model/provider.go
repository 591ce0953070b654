package model

import (
	"fmt"
	"time"
)

// Capabilities are the static feature flags a provider advertises.
type Capabilities struct {
	RealTime           bool `json:"real_time" mapstructure:"real_time"`
	VoiceCloning       bool `json:"voice_cloning" mapstructure:"voice_cloning"`
	CustomAvatars      bool `json:"custom_avatars" mapstructure:"custom_avatars"`
	HighQuality        bool `json:"high_quality" mapstructure:"high_quality"`
	Enterprise         bool `json:"enterprise" mapstructure:"enterprise"`
	MaxDurationSeconds int  `json:"max_duration_seconds" mapstructure:"max_duration_seconds"`
}

// Satisfies reports whether the capabilities cover the requirements.
// A zero MaxDurationSeconds means no duration limit.
func (c Capabilities) Satisfies(req *Requirements) bool {
	if req == nil {
		return true
	}
	if req.NeedsRealTime && !c.RealTime {
		return false
	}
	if req.NeedsVoiceCloning && !c.VoiceCloning {
		return false
	}
	if req.NeedsCustomAvatars && !c.CustomAvatars {
		return false
	}
	if c.MaxDurationSeconds > 0 && req.DurationSeconds > c.MaxDurationSeconds {
		return false
	}
	return true
}

// Requirements describe what a generation request needs from a provider.
type Requirements struct {
	DurationSeconds    int    `json:"duration_seconds"`
	NeedsRealTime      bool   `json:"needs_real_time"`
	NeedsVoiceCloning  bool   `json:"needs_voice_cloning"`
	NeedsCustomAvatars bool   `json:"needs_custom_avatars"`
	Resolution         string `json:"resolution,omitempty"`
}

// HealthStatus is a provider's self-reported health.
type HealthStatus struct {
	IsHealthy bool `json:"is_healthy"`
	// Uptime is a percentage in [0, 100].
	Uptime float64 `json:"uptime"`
	// ErrorRate is a fraction in [0, 1].
	ErrorRate      float64   `json:"error_rate"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	CheckedAt      time.Time `json:"checked_at"`
}

// PerformanceMetrics are a provider's aggregated results over a period.
type PerformanceMetrics struct {
	// SuccessRate is a fraction in [0, 1].
	SuccessRate              float64 `json:"success_rate"`
	AverageGenerationTimeSec float64 `json:"average_generation_time_sec"`
	// AverageVideoQuality is scored on [0, 10].
	AverageVideoQuality float64 `json:"average_video_quality"`
	// UserSatisfactionScore is scored on [0, 5].
	UserSatisfactionScore float64 `json:"user_satisfaction_score"`
}

// MetricsPeriod is the aggregation window for performance metrics.
type MetricsPeriod string

const (
	Period1h  MetricsPeriod = "1h"
	Period24h MetricsPeriod = "24h"
	Period7d  MetricsPeriod = "7d"
	Period30d MetricsPeriod = "30d"
)

// ParseMetricsPeriod validates a period string. Empty input yields Period24h.
func ParseMetricsPeriod(s string) (MetricsPeriod, error) {
	switch MetricsPeriod(s) {
	case "":
		return Period24h, nil
	case Period1h, Period24h, Period7d, Period30d:
		return MetricsPeriod(s), nil
	default:
		return "", fmt.Errorf("invalid metrics period %q (want 1h, 24h, 7d or 30d)", s)
	}
}

// ProviderAnalytics joins the reporting signals of one provider.
type ProviderAnalytics struct {
	ProviderID   string              `json:"provider_id"`
	Priority     int                 `json:"priority"`
	Capabilities Capabilities        `json:"capabilities"`
	Health       *HealthStatus       `json:"health,omitempty"`
	Metrics      *PerformanceMetrics `json:"metrics,omitempty"`
	Circuit      *CircuitSnapshot    `json:"circuit,omitempty"`
	Errors       []string            `json:"errors,omitempty"`
}

// ProviderSignals is the cached pair of live signals for one provider and period.
type ProviderSignals struct {
	Health    *HealthStatus       `json:"health,omitempty"`
	Metrics   *PerformanceMetrics `json:"metrics,omitempty"`
	FetchedAt time.Time           `json:"fetched_at"`
}
