package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/model"
	"Switchyard/pkg/httpclient"
	"Switchyard/pkg/metadata"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultProviderTimeout = 5 * time.Second
	defaultHealthPath      = "/health"
	defaultMetricsPath     = "/metrics"
	maxStatusBodyBytes     = 1 << 20
)

// RemoteProvider is a provider declared in configuration. Capability and cost
// questions are answered locally; health and metrics come from the provider's
// JSON status endpoints.
type RemoteProvider struct {
	name          string
	priority      int
	endpoint      string
	capabilities  model.Capabilities
	baseCost      float64
	costPerSecond float64
	meta          *metadata.ProviderMetadata

	client *http.Client
	now    func() time.Time
	logger *log.Helper
}

// NewRemoteProvider builds a provider from its declaration.
func NewRemoteProvider(c *conf.Provider, logger log.Logger) (*RemoteProvider, error) {
	if c == nil {
		return nil, fmt.Errorf("provider config is nil")
	}

	meta, err := metadata.Parse(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", c.Name, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("provider %s: %w", c.Name, err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	client, err := httpclient.New(meta.ProxyURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", c.Name, err)
	}

	return &RemoteProvider{
		name:          c.Name,
		priority:      c.Priority,
		endpoint:      strings.TrimRight(c.Endpoint, "/"),
		capabilities:  c.Capabilities,
		baseCost:      c.BaseCost,
		costPerSecond: c.CostPerSecond,
		meta:          meta,
		client:        client,
		now:           time.Now,
		logger:        log.NewHelper(log.With(logger, "module", "data/provider", "provider_id", c.Name)),
	}, nil
}

// NewRemoteProviders builds every declared provider, failing on the first bad declaration.
func NewRemoteProviders(bc *conf.Bootstrap, logger log.Logger) ([]*RemoteProvider, error) {
	providers := make([]*RemoteProvider, 0, len(bc.Providers))
	for _, c := range bc.Providers {
		p, err := NewRemoteProvider(c, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Name returns the provider id.
func (p *RemoteProvider) Name() string { return p.name }

// Priority returns the static rank; 1 is the most preferred.
func (p *RemoteProvider) Priority() int { return p.priority }

// Capabilities returns the advertised feature flags.
func (p *RemoteProvider) Capabilities() model.Capabilities { return p.capabilities }

// Metadata returns the provider metadata with secrets masked.
func (p *RemoteProvider) Metadata() *metadata.ProviderMetadata { return p.meta.MaskSensitive() }

// CanHandle checks the requirements against the declared capabilities.
func (p *RemoteProvider) CanHandle(_ context.Context, req *model.Requirements) (bool, error) {
	return p.capabilities.Satisfies(req), nil
}

// EstimateCost applies the linear model base + perSecond * duration.
func (p *RemoteProvider) EstimateCost(_ context.Context, req *model.Requirements) (float64, error) {
	duration := 0
	if req != nil {
		duration = req.DurationSeconds
	}
	return p.baseCost + p.costPerSecond*float64(duration), nil
}

// GetHealth fetches GET {endpoint}{health_path}.
func (p *RemoteProvider) GetHealth(ctx context.Context) (*model.HealthStatus, error) {
	path := p.meta.HealthPath
	if path == "" {
		path = defaultHealthPath
	}

	var health model.HealthStatus
	if err := p.getJSON(ctx, path, nil, &health); err != nil {
		return nil, err
	}
	if health.CheckedAt.IsZero() {
		health.CheckedAt = p.now()
	}
	return &health, nil
}

// GetPerformanceMetrics fetches GET {endpoint}{metrics_path}?period={period}.
func (p *RemoteProvider) GetPerformanceMetrics(ctx context.Context, period model.MetricsPeriod) (*model.PerformanceMetrics, error) {
	path := p.meta.MetricsPath
	if path == "" {
		path = defaultMetricsPath
	}

	var metrics model.PerformanceMetrics
	if err := p.getJSON(ctx, path, url.Values{"period": {string(period)}}, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (p *RemoteProvider) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	target := p.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.meta.Headers {
		req.Header.Set(k, v)
	}

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	p.logger.Debugw("msg", "provider status fetched",
		"path", path,
		"duration_ms", p.now().Sub(start).Milliseconds())

	return nil
}
