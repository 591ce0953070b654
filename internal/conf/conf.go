package conf

import (
	"time"

	"Switchyard/internal/model"
)

// Bootstrap is the root configuration of the service.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Auth      *Auth
	Log       *Log
	Breaker   *Breaker
	Selector  *Selector
	Retention *Retention
	Providers []*Provider
}

// Server holds transport settings.
type Server struct {
	Http *Server_HTTP
	Grpc *Server_GRPC
}

// Server_HTTP configures the HTTP transport.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Server_GRPC configures the gRPC transport.
type Server_GRPC struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds storage settings.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database configures the decision log and audit store.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis configures the circuit state store.
type Data_Redis struct {
	Network      string
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Auth holds operator credentials for circuit overrides.
type Auth struct {
	OperatorToken string
}

// Log configures the zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Breaker configures the circuit breaker.
type Breaker struct {
	// Default applies to providers without their own override.
	Default             model.CircuitConfig
	HealthCheckInterval time.Duration
	PersistTimeout      time.Duration
}

// Selector configures the selection engine.
type Selector struct {
	CacheTTL         time.Duration
	CacheSize        int
	SelectionTimeout time.Duration
	MetricsPeriod    model.MetricsPeriod
	MaxConcurrency   int
	Rules            model.BusinessRules
	Weights          model.ScoreWeights
}

// Retention configures the decision log retention job.
type Retention struct {
	DecisionLogDays int
	CronSpec        string
}

// Provider declares one remote provider.
type Provider struct {
	Name          string                 `mapstructure:"name"`
	Priority      int                    `mapstructure:"priority"`
	Endpoint      string                 `mapstructure:"endpoint"`
	Metadata      string                 `mapstructure:"metadata"`
	Timeout       time.Duration          `mapstructure:"timeout"`
	BaseCost      float64                `mapstructure:"base_cost"`
	CostPerSecond float64                `mapstructure:"cost_per_second"`
	Capabilities  model.Capabilities     `mapstructure:"capabilities"`
	Breaker       *ProviderBreakerConfig `mapstructure:"breaker"`
}

// ProviderBreakerConfig overrides circuit settings for one provider.
type ProviderBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	TimeoutThreshold time.Duration `mapstructure:"timeout_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
	MonitoringWindow time.Duration `mapstructure:"monitoring_window"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

// CircuitConfig converts the override into a full config, defaulting unset fields from base.
func (p *ProviderBreakerConfig) CircuitConfig(base model.CircuitConfig) model.CircuitConfig {
	if p == nil {
		return base
	}
	cfg := model.CircuitConfig{
		FailureThreshold: p.FailureThreshold,
		TimeoutThreshold: p.TimeoutThreshold,
		RecoveryTimeout:  p.RecoveryTimeout,
		HalfOpenMaxCalls: p.HalfOpenMaxCalls,
		MonitoringWindow: p.MonitoringWindow,
		SuccessThreshold: p.SuccessThreshold,
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = base.FailureThreshold
	}
	if cfg.TimeoutThreshold <= 0 {
		cfg.TimeoutThreshold = base.TimeoutThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = base.RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = base.HalfOpenMaxCalls
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = base.MonitoringWindow
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = base.SuccessThreshold
	}
	return cfg
}
