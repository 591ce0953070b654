package biz

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/data"
	"Switchyard/internal/model"
	"Switchyard/pkg/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// defaultPersistTimeout bounds a single snapshot write after a transition.
	defaultPersistTimeout = 500 * time.Millisecond
	// responseTimeDecay weighs the previous moving average against a new sample.
	responseTimeDecay = 0.9
)

// circuitRecord is one provider circuit. snap is only touched under mu.
type circuitRecord struct {
	mu    sync.Mutex
	snap  model.CircuitSnapshot
	dirty bool
}

// CircuitBreakerUsecase keeps one circuit per provider id.
//
// The registry lock guards map membership only. Every read or write of a
// circuit happens under that circuit's own lock, and persistence and listener
// callbacks run after it is released.
type CircuitBreakerUsecase struct {
	mu       sync.RWMutex
	circuits map[string]*circuitRecord

	listenersMu sync.RWMutex
	listeners   []CircuitListener

	defaults       model.CircuitConfig
	persistTimeout time.Duration
	repo           CircuitStateRepo
	now            func() time.Time
	log            *log.Helper
}

// NewCircuitBreakerUsecase creates a circuit breaker persisting through repo.
// The audit logger and the notifier are attached as transition listeners.
func NewCircuitBreakerUsecase(
	c *conf.Breaker,
	repo CircuitStateRepo,
	audit *data.CircuitAuditLogger,
	notifier *data.NoopWebhookService,
	logger log.Logger,
) *CircuitBreakerUsecase {
	defaults := model.DefaultCircuitConfig()
	persistTimeout := defaultPersistTimeout
	if c != nil {
		defaults = c.Default.WithDefaults()
		if c.PersistTimeout > 0 {
			persistTimeout = c.PersistTimeout
		}
	}

	uc := &CircuitBreakerUsecase{
		circuits:       make(map[string]*circuitRecord),
		defaults:       defaults,
		persistTimeout: persistTimeout,
		repo:           repo,
		now:            time.Now,
		log:            log.NewHelper(log.With(logger, "module", "biz/circuit_breaker")),
	}
	uc.AddListener(metricsListener{})
	if audit != nil {
		uc.AddListener(audit)
	}
	if notifier != nil {
		uc.AddListener(notifier)
	}
	return uc
}

// AddListener subscribes l to every subsequent transition.
func (uc *CircuitBreakerUsecase) AddListener(l CircuitListener) {
	uc.listenersMu.Lock()
	defer uc.listenersMu.Unlock()
	uc.listeners = append(uc.listeners, l)
}

// Register creates a CLOSED circuit for id, replacing any existing one.
// A nil cfg uses the configured defaults.
func (uc *CircuitBreakerUsecase) Register(id string, cfg *model.CircuitConfig) {
	config := uc.defaults
	if cfg != nil {
		config = cfg.WithDefaults()
	}

	rec := &circuitRecord{
		snap: model.CircuitSnapshot{
			ProviderID: id,
			State:      model.CircuitClosed,
			Config:     config,
			UpdatedAt:  uc.now(),
		},
	}

	uc.mu.Lock()
	uc.circuits[id] = rec
	uc.mu.Unlock()

	metrics.CircuitState.WithLabelValues(id).Set(float64(model.CircuitClosed))
	uc.log.Infow("msg", "circuit registered",
		"provider", id,
		"failure_threshold", config.FailureThreshold,
		"recovery_timeout", config.RecoveryTimeout.String(),
	)
}

// Unregister drops the circuit for id and its persisted snapshot.
func (uc *CircuitBreakerUsecase) Unregister(ctx context.Context, id string) {
	uc.mu.Lock()
	_, ok := uc.circuits[id]
	delete(uc.circuits, id)
	uc.mu.Unlock()
	if !ok {
		return
	}

	metrics.CircuitState.DeleteLabelValues(id)
	if uc.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, uc.persistTimeout)
	defer cancel()
	if err := uc.repo.Delete(ctx, id); err != nil {
		uc.log.Warnw("msg", "failed to delete circuit snapshot", "provider", id, "error", err)
	}
}

// IsOpen reports whether traffic to id is blocked. An open circuit whose
// recovery timeout has elapsed moves to HALF_OPEN first and reports false.
// Unknown ids are never open. The promotion is not written through: it runs
// on the selection path and is left for the next Flush.
func (uc *CircuitBreakerUsecase) IsOpen(id string) bool {
	open := false
	uc.apply(id, false, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		if s.State != model.CircuitOpen {
			return nil
		}
		if !now.Before(s.NextAttemptTime) {
			return transition(s, model.CircuitHalfOpen, now, "recovery timeout elapsed", false)
		}
		open = true
		return nil
	})
	return open
}

// ShouldAllowCall reports whether a call may be attempted now. HALF_OPEN
// admits calls while the call budget lasts. Unknown ids are allowed.
func (uc *CircuitBreakerUsecase) ShouldAllowCall(id string) bool {
	rec := uc.lookup(id)
	if rec == nil {
		return true
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.snap.State {
	case model.CircuitOpen:
		return false
	case model.CircuitHalfOpen:
		return rec.snap.HalfOpenCallCount < rec.snap.Config.HalfOpenMaxCalls
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (uc *CircuitBreakerUsecase) RecordSuccess(id string, responseTime time.Duration) {
	uc.mutate(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		recordCall(s, responseTime)
		s.Metrics.TotalSuccesses++
		s.LastSuccessTime = now
		metrics.CallOutcomes.WithLabelValues(s.ProviderID, "success").Inc()

		switch s.State {
		case model.CircuitHalfOpen:
			s.SuccessCount++
			s.HalfOpenCallCount++
			if s.SuccessCount >= s.Config.SuccessThreshold {
				return transition(s, model.CircuitClosed, now,
					fmt.Sprintf("%d trial calls succeeded", s.SuccessCount), false)
			}
		case model.CircuitOpen:
			return transition(s, model.CircuitClosed, now, "success recorded while open", true)
		default:
			s.FailureCount = 0
		}
		return nil
	})
}

// RecordFailure records a failed call. reason may be empty.
func (uc *CircuitBreakerUsecase) RecordFailure(id string, responseTime time.Duration, reason string) {
	uc.mutate(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		previous := s.LastFailureTime
		recordCall(s, responseTime)
		s.Metrics.TotalFailures++
		s.LastFailureTime = now
		if reason != "" {
			s.LastFailureReason = reason
		}
		metrics.CallOutcomes.WithLabelValues(s.ProviderID, "failure").Inc()

		switch s.State {
		case model.CircuitClosed:
			if !previous.IsZero() && now.Sub(previous) > s.Config.MonitoringWindow {
				s.FailureCount = 1
			} else {
				s.FailureCount++
			}
			if s.FailureCount >= s.Config.FailureThreshold {
				return transition(s, model.CircuitOpen, now,
					fmt.Sprintf("%d consecutive failures", s.FailureCount), false)
			}
		case model.CircuitHalfOpen:
			return transition(s, model.CircuitOpen, now, "trial call failed", false)
		}
		return nil
	})
}

// RecordTimeout classifies a call by its response time against the
// circuit's timeout threshold.
func (uc *CircuitBreakerUsecase) RecordTimeout(id string, responseTime time.Duration) {
	rec := uc.lookup(id)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	threshold := rec.snap.Config.TimeoutThreshold
	rec.mu.Unlock()

	if responseTime >= threshold {
		metrics.CallOutcomes.WithLabelValues(id, "timeout").Inc()
		uc.RecordFailure(id, responseTime, fmt.Sprintf("response time %s exceeded %s", responseTime, threshold))
		return
	}
	uc.RecordSuccess(id, responseTime)
}

// Open forces the circuit for id open for one recovery timeout.
func (uc *CircuitBreakerUsecase) Open(id string) error {
	return uc.override(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		if s.State == model.CircuitOpen {
			s.NextAttemptTime = now.Add(s.Config.RecoveryTimeout)
			return nil
		}
		return transition(s, model.CircuitOpen, now, "opened by operator", true)
	})
}

// Close forces the circuit for id closed.
func (uc *CircuitBreakerUsecase) Close(id string) error {
	return uc.override(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		if s.State == model.CircuitClosed {
			s.FailureCount = 0
			return nil
		}
		return transition(s, model.CircuitClosed, now, "closed by operator", true)
	})
}

// Reset returns the circuit for id to a fresh CLOSED record, clearing its
// metrics but keeping its config.
func (uc *CircuitBreakerUsecase) Reset(id string) error {
	return uc.override(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
		var t *model.CircuitTransition
		if s.State != model.CircuitClosed {
			t = transition(s, model.CircuitClosed, now, "reset by operator", true)
		}
		*s = model.CircuitSnapshot{
			ProviderID: s.ProviderID,
			State:      model.CircuitClosed,
			Config:     s.Config,
		}
		return t
	})
}

// GetState returns the current state of id and whether it is registered.
func (uc *CircuitBreakerUsecase) GetState(id string) (model.CircuitState, bool) {
	rec := uc.lookup(id)
	if rec == nil {
		return model.CircuitClosed, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snap.State, true
}

// GetSnapshot returns a copy of the circuit record for id.
func (uc *CircuitBreakerUsecase) GetSnapshot(id string) (*model.CircuitSnapshot, error) {
	rec := uc.lookup(id)
	if rec == nil {
		return nil, ErrProviderNotFound(id)
	}
	rec.mu.Lock()
	snap := rec.snap
	rec.mu.Unlock()
	return &snap, nil
}

// GetProviderStatistics summarises the circuit for id.
func (uc *CircuitBreakerUsecase) GetProviderStatistics(id string) (*model.CircuitStatistics, error) {
	snap, err := uc.GetSnapshot(id)
	if err != nil {
		return nil, err
	}
	return statisticsOf(snap), nil
}

// GetStatistics summarises every registered circuit, ordered by provider id.
func (uc *CircuitBreakerUsecase) GetStatistics() *model.AggregateCircuitStatistics {
	agg := &model.AggregateCircuitStatistics{}
	var failures int64
	for _, snap := range uc.snapshots() {
		stats := statisticsOf(snap)
		agg.Providers = append(agg.Providers, stats)
		agg.TotalProviders++
		agg.TotalCalls += snap.Metrics.TotalCalls
		failures += snap.Metrics.TotalFailures
		switch snap.State {
		case model.CircuitOpen:
			agg.Open++
		case model.CircuitHalfOpen:
			agg.HalfOpen++
		default:
			agg.Closed++
		}
	}
	if agg.TotalCalls > 0 {
		agg.FailureRate = float64(failures) / float64(agg.TotalCalls)
		agg.SuccessRate = 1 - agg.FailureRate
	}
	return agg
}

// ProviderIDs lists registered circuits in id order.
func (uc *CircuitBreakerUsecase) ProviderIDs() []string {
	uc.mu.RLock()
	ids := make([]string, 0, len(uc.circuits))
	for id := range uc.circuits {
		ids = append(ids, id)
	}
	uc.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep promotes every open circuit whose recovery timeout has elapsed to
// HALF_OPEN and returns how many moved.
func (uc *CircuitBreakerUsecase) Sweep() int {
	promoted := 0
	for _, id := range uc.ProviderIDs() {
		uc.mutate(id, func(s *model.CircuitSnapshot, now time.Time) *model.CircuitTransition {
			if s.State != model.CircuitOpen || now.Before(s.NextAttemptTime) {
				return nil
			}
			promoted++
			return transition(s, model.CircuitHalfOpen, now, "recovery timeout elapsed", false)
		})
	}
	return promoted
}

// Flush writes every circuit changed since its last successful write and
// returns how many were saved.
func (uc *CircuitBreakerUsecase) Flush(ctx context.Context) int {
	if uc.repo == nil {
		return 0
	}
	saved := 0
	for _, id := range uc.ProviderIDs() {
		rec := uc.lookup(id)
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		if !rec.dirty {
			rec.mu.Unlock()
			continue
		}
		snap := rec.snap
		rec.dirty = false
		rec.mu.Unlock()

		if err := uc.repo.Save(ctx, &snap); err != nil {
			rec.mu.Lock()
			rec.dirty = true
			rec.mu.Unlock()
			uc.log.Warnw("msg", "failed to flush circuit snapshot", "provider", id, "error", err)
			continue
		}
		saved++
	}
	return saved
}

// Restore overlays persisted snapshots onto registered circuits. Snapshots of
// unregistered providers are ignored and the registered config always wins.
func (uc *CircuitBreakerUsecase) Restore(ctx context.Context) (int, error) {
	if uc.repo == nil {
		return 0, nil
	}
	snaps, err := uc.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load circuit snapshots: %w", err)
	}

	restored := 0
	for _, persisted := range snaps {
		rec := uc.lookup(persisted.ProviderID)
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		config := rec.snap.Config
		rec.snap = *persisted
		rec.snap.Config = config
		state := rec.snap.State
		rec.mu.Unlock()

		metrics.CircuitState.WithLabelValues(persisted.ProviderID).Set(float64(state))
		restored++
		uc.log.Infow("msg", "circuit restored",
			"provider", persisted.ProviderID,
			"state", state.String(),
			"updated_at", persisted.UpdatedAt,
		)
	}
	return restored, nil
}

func (uc *CircuitBreakerUsecase) lookup(id string) *circuitRecord {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.circuits[id]
}

func (uc *CircuitBreakerUsecase) snapshots() []*model.CircuitSnapshot {
	ids := uc.ProviderIDs()
	out := make([]*model.CircuitSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, err := uc.GetSnapshot(id); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// override applies an operator change and reports unknown ids.
func (uc *CircuitBreakerUsecase) override(id string, fn func(*model.CircuitSnapshot, time.Time) *model.CircuitTransition) error {
	if !uc.mutate(id, fn) {
		return ErrProviderNotFound(id)
	}
	if snap, err := uc.GetSnapshot(id); err == nil {
		uc.persist(snap)
	}
	return nil
}

// mutate runs fn under the circuit lock, then persists and publishes any
// transition fn returns. It reports whether id is registered.
func (uc *CircuitBreakerUsecase) mutate(id string, fn func(*model.CircuitSnapshot, time.Time) *model.CircuitTransition) bool {
	return uc.apply(id, true, fn)
}

// apply is mutate with optional write-through. Without it a transition only
// marks the record dirty.
func (uc *CircuitBreakerUsecase) apply(id string, writeThrough bool, fn func(*model.CircuitSnapshot, time.Time) *model.CircuitTransition) bool {
	rec := uc.lookup(id)
	if rec == nil {
		return false
	}

	rec.mu.Lock()
	now := uc.now()
	before := rec.snap
	t := fn(&rec.snap, now)
	if t != nil || rec.snap != before {
		rec.snap.UpdatedAt = now
		rec.dirty = true
	}
	snap := rec.snap
	rec.mu.Unlock()

	if t != nil {
		t.Snapshot = snap
		if writeThrough {
			uc.persist(&snap)
		}
		uc.publish(*t)
	}
	return true
}

func (uc *CircuitBreakerUsecase) persist(snap *model.CircuitSnapshot) {
	if uc.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), uc.persistTimeout)
	defer cancel()
	if err := uc.repo.Save(ctx, snap); err != nil {
		uc.log.Warnw("msg", "failed to persist circuit snapshot",
			"provider", snap.ProviderID,
			"state", snap.State.String(),
			"error", err,
		)
	}
}

func (uc *CircuitBreakerUsecase) publish(t model.CircuitTransition) {
	uc.log.Infow("msg", "circuit transition",
		"provider", t.ProviderID,
		"from", t.From.String(),
		"to", t.To.String(),
		"reason", t.Reason,
		"manual", t.Manual,
	)

	uc.listenersMu.RLock()
	listeners := make([]CircuitListener, len(uc.listeners))
	copy(listeners, uc.listeners)
	uc.listenersMu.RUnlock()

	ctx := context.Background()
	for _, l := range listeners {
		l.OnTransition(ctx, t)
	}
}

// transition moves s to the given state and zeroes its counters.
func transition(s *model.CircuitSnapshot, to model.CircuitState, now time.Time, reason string, manual bool) *model.CircuitTransition {
	from := s.State
	s.State = to
	s.FailureCount = 0
	s.SuccessCount = 0
	s.HalfOpenCallCount = 0
	if to == model.CircuitOpen {
		s.NextAttemptTime = now.Add(s.Config.RecoveryTimeout)
	} else {
		s.NextAttemptTime = time.Time{}
	}
	return &model.CircuitTransition{
		ProviderID: s.ProviderID,
		From:       from,
		To:         to,
		Reason:     reason,
		Manual:     manual,
		At:         now,
	}
}

// recordCall updates the cumulative call metrics. The first sample seeds the
// moving average.
func recordCall(s *model.CircuitSnapshot, responseTime time.Duration) {
	m := &s.Metrics
	if m.TotalCalls == 0 {
		m.MovingAverageResponseTime = responseTime
	} else {
		avg := responseTimeDecay*float64(m.MovingAverageResponseTime) + (1-responseTimeDecay)*float64(responseTime)
		m.MovingAverageResponseTime = time.Duration(avg)
	}
	m.LastResponseTime = responseTime
	m.TotalCalls++
}

func statisticsOf(snap *model.CircuitSnapshot) *model.CircuitStatistics {
	stats := &model.CircuitStatistics{
		ProviderID:          snap.ProviderID,
		State:               snap.State,
		TotalCalls:          snap.Metrics.TotalCalls,
		AverageResponseTime: snap.Metrics.MovingAverageResponseTime,
		NextAttemptTime:     snap.NextAttemptTime,
	}
	if snap.Metrics.TotalCalls > 0 {
		stats.FailureRate = float64(snap.Metrics.TotalFailures) / float64(snap.Metrics.TotalCalls)
		stats.SuccessRate = float64(snap.Metrics.TotalSuccesses) / float64(snap.Metrics.TotalCalls)
	}
	return stats
}

// metricsListener mirrors transitions into Prometheus.
type metricsListener struct{}

func (metricsListener) OnTransition(_ context.Context, t model.CircuitTransition) {
	metrics.CircuitTransitions.WithLabelValues(
		t.ProviderID, t.From.String(), t.To.String(), strconv.FormatBool(t.Manual),
	).Inc()
	metrics.CircuitState.WithLabelValues(t.ProviderID).Set(float64(t.To))
}
