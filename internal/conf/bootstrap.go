// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"Switchyard/internal/model"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with SWITCHYARD_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or SWITCHYARD_DATA_DATABASE_SOURCE: MySQL connection string for the decision log
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SWITCHYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Direct names kept for compatibility with existing deployment manifests
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "SWITCHYARD_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "SWITCHYARD_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.redis.password", "REDIS_PASSWORD", "SWITCHYARD_DATA_REDIS_PASSWORD")
	_ = v.BindEnv("auth.operator_token", "OPERATOR_TOKEN", "SWITCHYARD_AUTH_OPERATOR_TOKEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	period, err := model.ParseMetricsPeriod(v.GetString("selector.metrics_period"))
	if err != nil {
		return nil, fmt.Errorf("invalid selector.metrics_period: %w", err)
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
			Grpc: &Server_GRPC{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: v.GetDuration("server.grpc.timeout"),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				DB:           v.GetInt("data.redis.db"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Auth: &Auth{
			OperatorToken: v.GetString("auth.operator_token"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
		Breaker: &Breaker{
			Default: model.CircuitConfig{
				FailureThreshold: v.GetInt("breaker.failure_threshold"),
				TimeoutThreshold: v.GetDuration("breaker.timeout_threshold"),
				RecoveryTimeout:  v.GetDuration("breaker.recovery_timeout"),
				HalfOpenMaxCalls: v.GetInt("breaker.half_open_max_calls"),
				MonitoringWindow: v.GetDuration("breaker.monitoring_window"),
				SuccessThreshold: v.GetInt("breaker.success_threshold"),
			},
			HealthCheckInterval: v.GetDuration("breaker.health_check_interval"),
			PersistTimeout:      v.GetDuration("breaker.persist_timeout"),
		},
		Selector: &Selector{
			CacheTTL:         v.GetDuration("selector.cache_ttl"),
			CacheSize:        v.GetInt("selector.cache_size"),
			SelectionTimeout: v.GetDuration("selector.selection_timeout"),
			MetricsPeriod:    period,
			MaxConcurrency:   v.GetInt("selector.max_concurrency"),
			Rules: model.BusinessRules{
				MaxCostThreshold:    v.GetFloat64("selector.rules.max_cost_threshold"),
				MinQualityThreshold: v.GetFloat64("selector.rules.min_quality_threshold"),
				SpeedRequirement:    model.SpeedRequirement(v.GetString("selector.rules.speed_requirement")),
				CostOptimization:    v.GetBool("selector.rules.cost_optimization"),
				QualityGuarantee:    v.GetBool("selector.rules.quality_guarantee"),
				EnterpriseFeatures:  v.GetBool("selector.rules.enterprise_features"),
			},
			Weights: model.ScoreWeights{
				Base:         v.GetFloat64("selector.weights.base"),
				Health:       v.GetFloat64("selector.weights.health"),
				Performance:  v.GetFloat64("selector.weights.performance"),
				Cost:         v.GetFloat64("selector.weights.cost"),
				Reliability:  v.GetFloat64("selector.weights.reliability"),
				Context:      v.GetFloat64("selector.weights.context"),
				BusinessRule: v.GetFloat64("selector.weights.business_rule"),
			},
		},
		Retention: &Retention{
			DecisionLogDays: v.GetInt("retention.decision_log_days"),
			CronSpec:        v.GetString("retention.cron_spec"),
		},
	}

	if err := v.UnmarshalKey("providers", &bc.Providers); err != nil {
		return nil, fmt.Errorf("failed to parse providers: %w", err)
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.db", 0)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Breaker defaults mirror model.DefaultCircuitConfig
	d := model.DefaultCircuitConfig()
	v.SetDefault("breaker.failure_threshold", d.FailureThreshold)
	v.SetDefault("breaker.timeout_threshold", d.TimeoutThreshold)
	v.SetDefault("breaker.recovery_timeout", d.RecoveryTimeout)
	v.SetDefault("breaker.half_open_max_calls", d.HalfOpenMaxCalls)
	v.SetDefault("breaker.monitoring_window", d.MonitoringWindow)
	v.SetDefault("breaker.success_threshold", d.SuccessThreshold)
	v.SetDefault("breaker.health_check_interval", 30*time.Second)
	v.SetDefault("breaker.persist_timeout", 500*time.Millisecond)

	// Selector defaults
	rules := model.DefaultBusinessRules()
	weights := model.DefaultScoreWeights()
	v.SetDefault("selector.cache_ttl", 60*time.Second)
	v.SetDefault("selector.cache_size", 1024)
	v.SetDefault("selector.selection_timeout", 5*time.Second)
	v.SetDefault("selector.metrics_period", string(model.Period24h))
	v.SetDefault("selector.max_concurrency", 8)
	v.SetDefault("selector.rules.max_cost_threshold", rules.MaxCostThreshold)
	v.SetDefault("selector.rules.min_quality_threshold", rules.MinQualityThreshold)
	v.SetDefault("selector.rules.speed_requirement", string(rules.SpeedRequirement))
	v.SetDefault("selector.weights.base", weights.Base)
	v.SetDefault("selector.weights.health", weights.Health)
	v.SetDefault("selector.weights.performance", weights.Performance)
	v.SetDefault("selector.weights.cost", weights.Cost)
	v.SetDefault("selector.weights.reliability", weights.Reliability)
	v.SetDefault("selector.weights.context", weights.Context)
	v.SetDefault("selector.weights.business_rule", weights.BusinessRule)

	// Retention defaults: purge decisions older than 30 days, daily at 03:30
	v.SetDefault("retention.decision_log_days", 30)
	v.SetDefault("retention.cron_spec", "0 30 3 * * *")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing or invalid fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	var invalid []string
	if bc.Selector != nil {
		switch bc.Selector.Rules.SpeedRequirement {
		case model.SpeedNormal, model.SpeedFast, model.SpeedCritical:
		default:
			invalid = append(invalid, fmt.Sprintf("selector.rules.speed_requirement %q", bc.Selector.Rules.SpeedRequirement))
		}
		if bc.Selector.SelectionTimeout < 0 {
			invalid = append(invalid, "selector.selection_timeout must not be negative")
		}
	}

	var base model.CircuitConfig
	if bc.Breaker != nil {
		base = bc.Breaker.Default
		if msg := halfOpenBudgetError("breaker", base); msg != "" {
			invalid = append(invalid, msg)
		}
	}

	seen := make(map[string]bool, len(bc.Providers))
	for i, p := range bc.Providers {
		if p == nil || p.Name == "" {
			invalid = append(invalid, fmt.Sprintf("providers[%d].name is empty", i))
			continue
		}
		if seen[p.Name] {
			invalid = append(invalid, fmt.Sprintf("providers[%d].name %q is duplicated", i, p.Name))
		}
		seen[p.Name] = true
		if p.Endpoint == "" {
			invalid = append(invalid, fmt.Sprintf("providers[%d].endpoint is empty", i))
		}
		if p.Priority <= 0 {
			invalid = append(invalid, fmt.Sprintf("providers[%d].priority must be positive", i))
		}
		if p.Breaker != nil {
			if msg := halfOpenBudgetError(fmt.Sprintf("providers[%d].breaker", i), p.Breaker.CircuitConfig(base)); msg != "" {
				invalid = append(invalid, msg)
			}
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}

	return nil
}

// halfOpenBudgetError reports a half-open call budget smaller than the
// success threshold, which would leave a recovering circuit HALF_OPEN for good.
func halfOpenBudgetError(field string, cfg model.CircuitConfig) string {
	d := model.DefaultCircuitConfig()
	calls, successes := cfg.HalfOpenMaxCalls, cfg.SuccessThreshold
	if calls <= 0 {
		calls = d.HalfOpenMaxCalls
	}
	if successes <= 0 {
		successes = d.SuccessThreshold
	}
	if calls < successes {
		return fmt.Sprintf("%s.half_open_max_calls (%d) must be at least success_threshold (%d)", field, calls, successes)
	}
	return ""
}
