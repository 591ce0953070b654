package biz

import (
	"context"
	"fmt"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/data"
	"Switchyard/pkg/metadata"

	"github.com/go-kratos/kratos/v2/log"
)

const restoreTimeout = 5 * time.Second

// ProviderRegistry loads the configured providers into the selection engine
// and keeps their declared metadata for reporting.
type ProviderRegistry struct {
	selection *SelectionUsecase
	metadata  map[string]*metadata.ProviderMetadata
	logger    *log.Helper
}

// NewProviderRegistry registers every configured provider with its circuit
// override and then restores persisted circuit state.
func NewProviderRegistry(
	bc *conf.Bootstrap,
	providers []*data.RemoteProvider,
	selection *SelectionUsecase,
	breaker *CircuitBreakerUsecase,
	logger log.Logger,
) (*ProviderRegistry, error) {
	r := &ProviderRegistry{
		selection: selection,
		metadata:  make(map[string]*metadata.ProviderMetadata, len(providers)),
		logger:    log.NewHelper(log.With(logger, "module", "biz/registry")),
	}

	overrides := make(map[string]*conf.ProviderBreakerConfig, len(bc.Providers))
	for _, c := range bc.Providers {
		overrides[c.Name] = c.Breaker
	}
	base := breaker.defaults
	if bc.Breaker != nil {
		base = bc.Breaker.Default.WithDefaults()
	}

	for _, p := range providers {
		cfg := overrides[p.Name()].CircuitConfig(base)
		if err := selection.RegisterProvider(p, &cfg); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", p.Name(), err)
		}
		r.metadata[p.Name()] = p.Metadata()
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	restored, err := breaker.Restore(ctx)
	if err != nil {
		// Startup continues with fresh circuits.
		r.logger.Warnw("msg", "failed to restore circuit state", "error", err)
	}

	r.logger.Infow("msg", "providers loaded",
		"providers", len(providers),
		"circuits_restored", restored,
	)
	return r, nil
}

// Metadata returns the masked metadata of a configured provider, or nil.
func (r *ProviderRegistry) Metadata(providerID string) *metadata.ProviderMetadata {
	return r.metadata[providerID]
}
