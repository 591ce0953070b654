package biz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/model"
	pkglog "Switchyard/pkg/log"
	"Switchyard/pkg/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSelectionTimeout = 5 * time.Second
	defaultMaxConcurrency   = 8
	decisionLogTimeout      = time.Second
)

// Signal sources reported in metrics and reasoning.
const (
	sourceCache    = "cache"
	sourceFetched  = "fetched"
	sourceStale    = "stale"
	sourceUnscored = "unscored"
	sourceError    = "error"
)

// SelectionResult is the outcome of one selection call. It is never mutated
// after it is returned.
type SelectionResult struct {
	DecisionID    string               `json:"decision_id"`
	Provider      Provider             `json:"-"`
	ProviderID    string               `json:"provider_id"`
	Fallbacks     []string             `json:"fallbacks"`
	Score         float64              `json:"score"`
	Breakdown     model.ScoreBreakdown `json:"breakdown"`
	Reasoning     []string             `json:"reasoning"`
	EstimatedCost float64              `json:"estimated_cost"`
	EstimatedTime time.Duration        `json:"estimated_time"`
}

// candidate is the per-provider working state of one selection call.
type candidate struct {
	provider  Provider
	canHandle bool
	cost      float64
	signals   *model.ProviderSignals
	source    string
	breakdown model.ScoreBreakdown
	rejected  string
}

func (c *candidate) unscored() bool {
	return c.signals == nil
}

// SelectionUsecase owns the provider registry and picks a provider per request.
type SelectionUsecase struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string

	breaker   *CircuitBreakerUsecase
	scorer    *ProviderScorer
	cache     SignalCache
	decisions DecisionLogRepo

	rules          model.BusinessRules
	period         model.MetricsPeriod
	timeout        time.Duration
	maxConcurrency int

	fetches singleflight.Group
	now     func() time.Time
	log     *pkglog.LogHelper
}

// NewSelectionUsecase creates an engine with an empty registry.
func NewSelectionUsecase(
	c *conf.Selector,
	breaker *CircuitBreakerUsecase,
	scorer *ProviderScorer,
	cache SignalCache,
	decisions DecisionLogRepo,
	logger log.Logger,
) *SelectionUsecase {
	uc := &SelectionUsecase{
		providers:      make(map[string]Provider),
		breaker:        breaker,
		scorer:         scorer,
		cache:          cache,
		decisions:      decisions,
		rules:          model.DefaultBusinessRules(),
		period:         model.Period24h,
		timeout:        defaultSelectionTimeout,
		maxConcurrency: defaultMaxConcurrency,
		now:            time.Now,
		log:            pkglog.NewLogHelper(log.With(logger, "module", "biz/selection")),
	}
	if c != nil {
		uc.rules = c.Rules
		if c.MetricsPeriod != "" {
			uc.period = c.MetricsPeriod
		}
		if c.SelectionTimeout > 0 {
			uc.timeout = c.SelectionTimeout
		}
		if c.MaxConcurrency > 0 {
			uc.maxConcurrency = c.MaxConcurrency
		}
	}
	return uc
}

// RegisterProvider adds p to the registry and registers its circuit. A
// provider registered again under the same name keeps its original position.
func (uc *SelectionUsecase) RegisterProvider(p Provider, cfg *model.CircuitConfig) error {
	if p == nil || p.Name() == "" {
		return ErrInvalidArgument("provider must have a name")
	}
	id := p.Name()

	uc.mu.Lock()
	if _, exists := uc.providers[id]; !exists {
		uc.order = append(uc.order, id)
	}
	uc.providers[id] = p
	uc.mu.Unlock()

	if uc.cache != nil {
		uc.cache.Remove(id)
	}
	uc.breaker.Register(id, cfg)
	uc.log.Provider("provider registered",
		"provider", id,
		"priority", p.Priority(),
	)
	return nil
}

// UnregisterProvider removes id from the registry and drops its circuit.
func (uc *SelectionUsecase) UnregisterProvider(ctx context.Context, id string) error {
	uc.mu.Lock()
	if _, ok := uc.providers[id]; !ok {
		uc.mu.Unlock()
		return ErrProviderNotFound(id)
	}
	delete(uc.providers, id)
	for i, name := range uc.order {
		if name == id {
			uc.order = append(uc.order[:i:i], uc.order[i+1:]...)
			break
		}
	}
	uc.mu.Unlock()

	if uc.cache != nil {
		uc.cache.Remove(id)
	}
	uc.breaker.Unregister(ctx, id)
	uc.log.Provider("provider unregistered", "provider", id)
	return nil
}

// GetProvider returns the provider registered under id.
func (uc *SelectionUsecase) GetProvider(id string) (Provider, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	p, ok := uc.providers[id]
	if !ok {
		return nil, ErrProviderNotFound(id)
	}
	return p, nil
}

// ListProviders returns registered providers in registration order.
func (uc *SelectionUsecase) ListProviders() []Provider {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]Provider, 0, len(uc.order))
	for _, id := range uc.order {
		out = append(out, uc.providers[id])
	}
	return out
}

// DefaultRules returns the business rules applied when a call has no override.
func (uc *SelectionUsecase) DefaultRules() model.BusinessRules {
	return uc.rules
}

// SelectOptimalProvider ranks the registered providers for criteria and
// returns the best one with its ordered fallbacks.
func (uc *SelectionUsecase) SelectOptimalProvider(ctx context.Context, criteria *model.SelectionCriteria, override *model.RulesOverride) (*SelectionResult, error) {
	start := time.Now()
	defer func() {
		metrics.SelectionDuration.Observe(time.Since(start).Seconds())
	}()

	if err := validateCriteria(criteria); err != nil {
		metrics.Selections.WithLabelValues("", ReasonInvalidArgument).Inc()
		return nil, err
	}
	rules := override.Merge(uc.rules)

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	candidates, skipped := uc.eligible(criteria)
	if err := uc.evaluate(ctx, candidates, criteria); err != nil {
		metrics.Selections.WithLabelValues("", ReasonProcessingError).Inc()
		uc.log.Errorw("msg", "selection failed", "type", "selection", "error", err)
		return nil, err
	}

	handled := candidates[:0]
	for _, c := range candidates {
		if c.canHandle {
			handled = append(handled, c)
		}
	}
	if len(handled) == 0 {
		metrics.Selections.WithLabelValues("", ReasonProviderUnavailable).Inc()
		return nil, ErrProviderUnavailable("no registered provider can handle the request (%d skipped)", len(skipped))
	}

	hour := uc.now().Hour()
	if criteria.Context.Hour != nil {
		hour = *criteria.Context.Hour
	}
	for _, c := range handled {
		in := ScoreInput{
			ProviderID:   c.provider.Name(),
			Priority:     c.provider.Priority(),
			Capabilities: c.provider.Capabilities(),
			Cost:         c.cost,
			Criteria:     criteria,
			Rules:        rules,
			Hour:         hour,
		}
		if c.signals != nil {
			in.Health = c.signals.Health
			in.Metrics = c.signals.Metrics
		}
		c.breakdown = uc.scorer.Score(in)
	}

	sort.SliceStable(handled, func(i, j int) bool {
		if handled[i].unscored() != handled[j].unscored() {
			return !handled[i].unscored()
		}
		return handled[i].breakdown.Total > handled[j].breakdown.Total
	})

	var survivors []*candidate
	for _, c := range handled {
		c.rejected = rejectReason(c, rules)
		if c.rejected == "" {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		metrics.Selections.WithLabelValues("", ReasonNoProviderMeetsRules).Inc()
		return nil, ErrNoProviderMeetsRules("all %d candidates failed business rules: %s", len(handled), rejectionSummary(handled))
	}

	selected := survivors[0]
	fallbacks := make([]string, 0, len(survivors)-1)
	for _, c := range survivors[1:] {
		fallbacks = append(fallbacks, c.provider.Name())
	}

	result := &SelectionResult{
		DecisionID:    uuid.NewString(),
		Provider:      selected.provider,
		ProviderID:    selected.provider.Name(),
		Fallbacks:     fallbacks,
		Score:         selected.breakdown.Total,
		Breakdown:     selected.breakdown,
		EstimatedCost: selected.cost,
		EstimatedTime: estimatedTime(selected),
	}
	result.Reasoning = reasoning(selected, criteria, rules, skipped, len(fallbacks))

	uc.logDecision(ctx, result, criteria, rules, handled)

	metrics.Selections.WithLabelValues(result.ProviderID, "selected").Inc()
	uc.log.Selection("provider selected",
		"decision_id", result.DecisionID,
		"provider", result.ProviderID,
		"score", result.Score,
		"fallbacks", len(fallbacks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// eligible returns candidates that pass the prior-failure and circuit checks,
// in registration order, and the skip reason of every other provider.
func (uc *SelectionUsecase) eligible(criteria *model.SelectionCriteria) ([]*candidate, map[string]string) {
	skipped := make(map[string]string)
	var out []*candidate
	for _, p := range uc.ListProviders() {
		id := p.Name()
		switch {
		case criteria.Excludes(id):
			skipped[id] = "previous failure"
		case uc.breaker.IsOpen(id):
			skipped[id] = "circuit open"
		case !uc.breaker.ShouldAllowCall(id):
			skipped[id] = "half-open call budget exhausted"
		default:
			out = append(out, &candidate{provider: p})
		}
	}
	return out, skipped
}

// evaluate asks every candidate whether it can handle the request and, if so,
// fetches its cost and signals. Provider calls run concurrently with no lock held.
func (uc *SelectionUsecase) evaluate(ctx context.Context, candidates []*candidate, criteria *model.SelectionCriteria) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxConcurrency)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			id := c.provider.Name()
			ok, err := c.provider.CanHandle(gctx, &criteria.Requirements)
			if err != nil {
				return ErrProcessing(err, "capability check failed for provider %s", id)
			}
			if !ok {
				return nil
			}
			c.canHandle = true

			cost, err := c.provider.EstimateCost(gctx, &criteria.Requirements)
			if err != nil {
				return ErrProcessing(err, "cost estimate failed for provider %s", id)
			}
			c.cost = cost

			signals, source, err := uc.signals(gctx, c.provider)
			if err != nil {
				return ErrProcessing(err, "signal fetch failed for provider %s", id)
			}
			c.signals, c.source = signals, source
			return nil
		})
	}
	return g.Wait()
}

// signals returns fresh cached signals, or fetches them once per provider and
// period across concurrent callers. When ctx expires first it falls back to
// the stale cached snapshot, or to nil for an unscored candidate.
func (uc *SelectionUsecase) signals(ctx context.Context, p Provider) (*model.ProviderSignals, string, error) {
	id := p.Name()
	var cached *model.ProviderSignals
	if uc.cache != nil {
		var fresh bool
		cached, fresh = uc.cache.Get(id, uc.period)
		if cached != nil && fresh {
			metrics.SignalFetches.WithLabelValues(id, sourceCache).Inc()
			return cached, sourceCache, nil
		}
	}

	ch := uc.fetches.DoChan(id+"|"+string(uc.period), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
		defer cancel()
		return uc.fetch(fetchCtx, p)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			metrics.SignalFetches.WithLabelValues(id, sourceFetched).Inc()
			return res.Val.(*model.ProviderSignals), sourceFetched, nil
		}
		if cached != nil {
			metrics.SignalFetches.WithLabelValues(id, sourceStale).Inc()
			uc.log.Warnw("msg", "signal fetch failed, using stale snapshot", "provider", id, "error", res.Err)
			return cached, sourceStale, nil
		}
		if errors.Is(res.Err, context.DeadlineExceeded) {
			metrics.SignalFetches.WithLabelValues(id, sourceUnscored).Inc()
			return nil, sourceUnscored, nil
		}
		metrics.SignalFetches.WithLabelValues(id, sourceError).Inc()
		return nil, sourceError, res.Err
	case <-ctx.Done():
		if cached != nil {
			metrics.SignalFetches.WithLabelValues(id, sourceStale).Inc()
			return cached, sourceStale, nil
		}
		metrics.SignalFetches.WithLabelValues(id, sourceUnscored).Inc()
		return nil, sourceUnscored, nil
	}
}

// fetch loads health and metrics for p and stores them in the cache.
func (uc *SelectionUsecase) fetch(ctx context.Context, p Provider) (*model.ProviderSignals, error) {
	var (
		health *model.HealthStatus
		perf   *model.PerformanceMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := p.GetHealth(gctx)
		if err != nil {
			return fmt.Errorf("get health: %w", err)
		}
		health = h
		return nil
	})
	g.Go(func() error {
		m, err := p.GetPerformanceMetrics(gctx, uc.period)
		if err != nil {
			return fmt.Errorf("get performance metrics: %w", err)
		}
		perf = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	signals := model.ProviderSignals{Health: health, Metrics: perf, FetchedAt: uc.now()}
	if uc.cache != nil {
		uc.cache.Set(p.Name(), uc.period, signals)
	}
	return &signals, nil
}

// WarmSignals refreshes cached signals of every provider whose circuit is not
// open and returns how many were refreshed.
func (uc *SelectionUsecase) WarmSignals(ctx context.Context) int {
	var (
		mu     sync.Mutex
		warmed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxConcurrency)
	for _, p := range uc.ListProviders() {
		p := p
		if state, ok := uc.breaker.GetState(p.Name()); ok && state == model.CircuitOpen {
			continue
		}
		g.Go(func() error {
			_, err, _ := uc.fetches.Do(p.Name()+"|"+string(uc.period), func() (interface{}, error) {
				return uc.fetch(gctx, p)
			})
			if err != nil {
				uc.log.Warnw("msg", "signal warm-up failed", "provider", p.Name(), "error", err)
				return nil
			}
			mu.Lock()
			warmed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return warmed
}

// GetProviderAnalytics joins live health, metrics, capabilities and circuit
// state for every provider. It neither scores nor writes the signal cache.
func (uc *SelectionUsecase) GetProviderAnalytics(ctx context.Context, period model.MetricsPeriod) ([]*model.ProviderAnalytics, error) {
	if period == "" {
		period = uc.period
	}
	if _, err := model.ParseMetricsPeriod(string(period)); err != nil {
		return nil, ErrInvalidArgument("%v", err)
	}

	providers := uc.ListProviders()
	out := make([]*model.ProviderAnalytics, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxConcurrency)
	for i, p := range providers {
		i, p := i, p
		a := &model.ProviderAnalytics{
			ProviderID:   p.Name(),
			Priority:     p.Priority(),
			Capabilities: p.Capabilities(),
		}
		if snap, err := uc.breaker.GetSnapshot(p.Name()); err == nil {
			a.Circuit = snap
		}
		out[i] = a

		g.Go(func() error {
			if h, err := p.GetHealth(gctx); err != nil {
				a.Errors = append(a.Errors, fmt.Sprintf("health: %v", err))
			} else {
				a.Health = h
			}
			if m, err := p.GetPerformanceMetrics(gctx, period); err != nil {
				a.Errors = append(a.Errors, fmt.Sprintf("metrics: %v", err))
			} else {
				a.Metrics = m
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (uc *SelectionUsecase) logDecision(ctx context.Context, result *SelectionResult, criteria *model.SelectionCriteria, rules model.BusinessRules, candidates []*candidate) {
	if uc.decisions == nil {
		return
	}

	scores := make([]model.CandidateScore, 0, len(candidates))
	for _, c := range candidates {
		scores = append(scores, model.CandidateScore{
			ProviderID:    c.provider.Name(),
			Breakdown:     c.breakdown,
			EstimatedCost: c.cost,
			Unscored:      c.unscored(),
			Rejected:      c.rejected,
		})
	}
	decision := &model.SelectionDecision{
		ID:               result.DecisionID,
		Timestamp:        uc.now(),
		SelectedProvider: result.ProviderID,
		Score:            result.Score,
		EstimatedCost:    result.EstimatedCost,
		EstimatedTime:    result.EstimatedTime,
		Fallbacks:        result.Fallbacks,
		Criteria:         *criteria,
		Rules:            rules,
		Candidates:       scores,
		Reasoning:        result.Reasoning,
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), decisionLogTimeout)
	defer cancel()
	if err := uc.decisions.Append(logCtx, decision); err != nil {
		metrics.DecisionLogDropped.Inc()
		uc.log.Warnw("msg", "failed to log selection decision",
			"decision_id", decision.ID,
			"error", err,
		)
	}
}

func validateCriteria(criteria *model.SelectionCriteria) error {
	if criteria == nil {
		return ErrInvalidArgument("selection criteria is required")
	}
	if criteria.Requirements.DurationSeconds < 0 {
		return ErrInvalidArgument("duration_seconds must not be negative")
	}
	if load := criteria.Context.SystemLoad; load < 0 || load > 100 {
		return ErrInvalidArgument("system_load %d is outside 0-100", load)
	}
	if h := criteria.Context.Hour; h != nil && (*h < 0 || *h > 23) {
		return ErrInvalidArgument("hour %d is outside 0-23", *h)
	}
	return nil
}

// rejectReason returns why c fails the hard business rules, or "".
func rejectReason(c *candidate, rules model.BusinessRules) string {
	if c.cost > rules.MaxCostThreshold {
		return fmt.Sprintf("cost %.2f exceeds max %.2f", c.cost, rules.MaxCostThreshold)
	}
	var quality float64
	if c.signals != nil && c.signals.Metrics != nil {
		quality = c.signals.Metrics.AverageVideoQuality
	}
	if quality < rules.MinQualityThreshold {
		return fmt.Sprintf("quality %.1f below min %.1f", quality, rules.MinQualityThreshold)
	}
	if rules.SpeedRequirement == model.SpeedCritical && !c.provider.Capabilities().RealTime {
		return "critical speed requires real-time capability"
	}
	return ""
}

func rejectionSummary(candidates []*candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.provider.Name(), c.rejected))
	}
	return strings.Join(parts, "; ")
}

func estimatedTime(c *candidate) time.Duration {
	if c.signals == nil || c.signals.Metrics == nil {
		return 0
	}
	return time.Duration(c.signals.Metrics.AverageGenerationTimeSec * float64(time.Second))
}

func reasoning(selected *candidate, criteria *model.SelectionCriteria, rules model.BusinessRules, skipped map[string]string, fallbacks int) []string {
	b := selected.breakdown
	lines := []string{
		fmt.Sprintf("selected %s with score %.2f", selected.provider.Name(), b.Total),
		fmt.Sprintf("breakdown: base %.2f, health %.2f, performance %.2f, cost %.2f, reliability %.2f, context %.2f, business rule %.2f",
			b.Base, b.Health, b.Performance, b.Cost, b.Reliability, b.Context, b.BusinessRule),
		fmt.Sprintf("estimated cost %.2f within max %.2f", selected.cost, rules.MaxCostThreshold),
	}

	switch selected.source {
	case sourceStale:
		lines = append(lines, "live signals unavailable, scored on the last cached snapshot")
	case sourceUnscored:
		lines = append(lines, "live signals unavailable, scored on static attributes only")
	}

	ctx := criteria.Context
	if ctx.RetryAttempt > 0 {
		lines = append(lines, fmt.Sprintf("retry attempt %d, excluding %d previously failed providers",
			ctx.RetryAttempt, len(ctx.PreviousFailures)))
	}
	if ctx.SystemLoad > highLoadPercent {
		lines = append(lines, fmt.Sprintf("high system load (%d%%), favouring real-time capable providers", ctx.SystemLoad))
	}

	prefs := criteria.Preferences
	if prefs.PrioritizeSpeed {
		lines = append(lines, "speed preference active")
	}
	if prefs.PrioritizeQuality {
		lines = append(lines, "quality preference active")
	}
	if prefs.PrioritizeCost || rules.CostOptimization {
		lines = append(lines, "cost optimization active")
	}

	if len(skipped) > 0 {
		ids := make([]string, 0, len(skipped))
		for id := range skipped {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("skipped %s: %s", id, skipped[id]))
		}
	}
	lines = append(lines, fmt.Sprintf("%d fallback providers available", fallbacks))
	return lines
}
