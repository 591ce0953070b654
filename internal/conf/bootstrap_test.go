package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Switchyard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestNewBootstrap_Defaults(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :8080
data:
  database:
    driver: mysql
  redis:
    addr: 127.0.0.1:6379
`)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	// Server defaults
	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "tcp", bc.Server.Http.Network)
	assert.Equal(t, 30*time.Second, bc.Server.Http.Timeout)
	assert.Equal(t, ":9000", bc.Server.Grpc.Addr)

	// Data defaults
	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/switchyard", bc.Data.Database.Source)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout)

	// Breaker defaults match the model defaults
	assert.Equal(t, model.DefaultCircuitConfig(), bc.Breaker.Default)
	assert.Equal(t, 30*time.Second, bc.Breaker.HealthCheckInterval)

	// Selector defaults
	assert.Equal(t, 60*time.Second, bc.Selector.CacheTTL)
	assert.Equal(t, model.Period24h, bc.Selector.MetricsPeriod)
	assert.Equal(t, model.DefaultBusinessRules(), bc.Selector.Rules)
	assert.Equal(t, model.DefaultScoreWeights(), bc.Selector.Weights)

	// Log and retention defaults
	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
	assert.Equal(t, 30, bc.Retention.DecisionLogDays)
	assert.Empty(t, bc.Providers)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectedVal func(*Bootstrap) bool
	}{
		{
			name:        "override_http_addr",
			envVars:     map[string]string{"SWITCHYARD_SERVER_HTTP_ADDR": ":9999"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Server.Http.Addr == ":9999" },
		},
		{
			name:        "override_redis_addr",
			envVars:     map[string]string{"REDIS_ADDR": "redis.example.com:6379"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Data.Redis.Addr == "redis.example.com:6379" },
		},
		{
			name:        "override_failure_threshold",
			envVars:     map[string]string{"SWITCHYARD_BREAKER_FAILURE_THRESHOLD": "9"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Breaker.Default.FailureThreshold == 9 },
		},
		{
			name:        "override_operator_token",
			envVars:     map[string]string{"OPERATOR_TOKEN": "ops-secret"},
			expectedVal: func(bc *Bootstrap) bool { return bc.Auth.OperatorToken == "ops-secret" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "server:\n  http:\n    addr: :8080\n")
			t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap(configPath)
			require.NoError(t, err)
			assert.True(t, tt.expectedVal(bc))
		})
	}
}

func TestNewBootstrap_MissingDSN(t *testing.T) {
	configPath := writeConfig(t, "server:\n  http:\n    addr: :8080\n")
	os.Unsetenv("MYSQL_DSN")
	os.Unsetenv("SWITCHYARD_DATA_DATABASE_SOURCE")

	bc, err := NewBootstrap(configPath)
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "data.database.source (MYSQL_DSN)")
}

func TestNewBootstrap_ConfigFileNotFound(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")

	bc, err := NewBootstrap("/non/existent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewBootstrap_Providers(t *testing.T) {
	configPath := writeConfig(t, `providers:
  - name: studio-a
    priority: 1
    endpoint: http://studio-a.internal
    timeout: 2s
    base_cost: 1.5
    cost_per_second: 0.02
    capabilities:
      real_time: true
      voice_cloning: true
      max_duration_seconds: 600
    breaker:
      failure_threshold: 3
      recovery_timeout: 30s
  - name: studio-b
    priority: 2
    endpoint: http://studio-b.internal
`)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.Len(t, bc.Providers, 2)

	a := bc.Providers[0]
	assert.Equal(t, "studio-a", a.Name)
	assert.Equal(t, 1, a.Priority)
	assert.Equal(t, 2*time.Second, a.Timeout)
	assert.InDelta(t, 0.02, a.CostPerSecond, 1e-9)
	assert.True(t, a.Capabilities.RealTime)
	assert.True(t, a.Capabilities.VoiceCloning)
	assert.Equal(t, 600, a.Capabilities.MaxDurationSeconds)

	cfg := a.Breaker.CircuitConfig(bc.Breaker.Default)
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.RecoveryTimeout)
	assert.Equal(t, bc.Breaker.Default.HalfOpenMaxCalls, cfg.HalfOpenMaxCalls)

	assert.Nil(t, bc.Providers[1].Breaker)
	assert.Equal(t, bc.Breaker.Default, bc.Providers[1].Breaker.CircuitConfig(bc.Breaker.Default))
}

func TestNewBootstrap_InvalidMetricsPeriod(t *testing.T) {
	configPath := writeConfig(t, "selector:\n  metrics_period: 2w\n")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")

	_, err := NewBootstrap(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "selector.metrics_period")
}

func TestValidate_Providers(t *testing.T) {
	base := func() *Bootstrap {
		return &Bootstrap{
			Data: &Data{Database: &Data_Database{Source: "dsn"}},
			Selector: &Selector{
				Rules: model.DefaultBusinessRules(),
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		bc := base()
		bc.Providers = []*Provider{{Name: "a", Priority: 1, Endpoint: "http://a"}}
		assert.NoError(t, Validate(bc))
	})

	t.Run("duplicate name", func(t *testing.T) {
		bc := base()
		bc.Providers = []*Provider{
			{Name: "a", Priority: 1, Endpoint: "http://a"},
			{Name: "a", Priority: 2, Endpoint: "http://a2"},
		}
		err := Validate(bc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicated")
	})

	t.Run("missing endpoint and priority", func(t *testing.T) {
		bc := base()
		bc.Providers = []*Provider{{Name: "a"}}
		err := Validate(bc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint is empty")
		assert.Contains(t, err.Error(), "priority must be positive")
	})

	t.Run("bad speed requirement", func(t *testing.T) {
		bc := base()
		bc.Selector.Rules.SpeedRequirement = "ludicrous"
		err := Validate(bc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "speed_requirement")
	})

	t.Run("half-open budget below success threshold", func(t *testing.T) {
		bc := base()
		bc.Breaker = &Breaker{Default: model.DefaultCircuitConfig()}
		bc.Providers = []*Provider{{
			Name: "a", Priority: 1, Endpoint: "http://a",
			Breaker: &ProviderBreakerConfig{HalfOpenMaxCalls: 1, SuccessThreshold: 2},
		}}
		err := Validate(bc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "providers[0].breaker.half_open_max_calls (1) must be at least success_threshold (2)")

		bc.Providers[0].Breaker.HalfOpenMaxCalls = 2
		assert.NoError(t, Validate(bc))
	})

	t.Run("default breaker budget below success threshold", func(t *testing.T) {
		bc := base()
		bc.Breaker = &Breaker{Default: model.CircuitConfig{HalfOpenMaxCalls: 1}}
		err := Validate(bc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "breaker.half_open_max_calls (1)")
	})
}

func TestNewBootstrap_RejectsWedgingBreaker(t *testing.T) {
	configPath := writeConfig(t, "breaker:\n  half_open_max_calls: 1\n  success_threshold: 2\n")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/switchyard")

	bc, err := NewBootstrap(configPath)
	require.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "half_open_max_calls")
}

func TestValidate_NilBootstrap(t *testing.T) {
	err := Validate(&Bootstrap{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration fields")
}
