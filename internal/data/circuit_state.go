package data

import (
	"context"
	"errors"
	"fmt"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CircuitStateRepo upserts circuit snapshots into Redis so breaker state
// survives a restart. The biz layer treats every error as best-effort.
type CircuitStateRepo struct {
	data   *Data
	logger *log.Helper
}

// NewCircuitStateRepo creates a new circuit state repository.
func NewCircuitStateRepo(d *Data, logger log.Logger) *CircuitStateRepo {
	return &CircuitStateRepo{
		data:   d,
		logger: log.NewHelper(log.With(logger, "module", "data/circuit_state")),
	}
}

// Save upserts the snapshot at circuit:{id} and indexes the id.
func (r *CircuitStateRepo) Save(ctx context.Context, snap *model.CircuitSnapshot) error {
	if snap == nil || snap.ProviderID == "" {
		return fmt.Errorf("circuit snapshot without provider id")
	}

	key := BuildCacheKey(CacheKeyCircuit, snap.ProviderID)
	if err := r.data.GetCache().Set(ctx, key, snap, TTLCircuit); err != nil {
		return fmt.Errorf("failed to save circuit snapshot: %w", err)
	}

	if rdb := r.data.GetRedisClient(); rdb != nil {
		if err := rdb.SAdd(ctx, CacheKeyCircuitIndex, snap.ProviderID).Err(); err != nil {
			return fmt.Errorf("failed to index circuit snapshot: %w", err)
		}
	}

	r.logger.Debugw("circuit snapshot saved",
		"provider_id", snap.ProviderID,
		"state", snap.State.String())

	return nil
}

// Load returns the stored snapshot, or nil without error when none exists.
func (r *CircuitStateRepo) Load(ctx context.Context, providerID string) (*model.CircuitSnapshot, error) {
	var snap model.CircuitSnapshot
	err := r.data.GetCache().Get(ctx, BuildCacheKey(CacheKeyCircuit, providerID), &snap)
	if errors.Is(err, ErrCacheNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit snapshot: %w", err)
	}
	return &snap, nil
}

// LoadAll returns every indexed snapshot. Index entries whose snapshot has
// expired are pruned.
func (r *CircuitStateRepo) LoadAll(ctx context.Context) ([]*model.CircuitSnapshot, error) {
	rdb := r.data.GetRedisClient()
	if rdb == nil {
		return nil, errNilRedis
	}

	ids, err := rdb.SMembers(ctx, CacheKeyCircuitIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list circuit snapshots: %w", err)
	}

	snaps := make([]*model.CircuitSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := r.Load(ctx, id)
		if err != nil {
			r.logger.Warnw("skipping unreadable circuit snapshot", "provider_id", id, "error", err)
			continue
		}
		if snap == nil {
			if err := rdb.SRem(ctx, CacheKeyCircuitIndex, id).Err(); err != nil {
				r.logger.Warnw("failed to prune circuit index", "provider_id", id, "error", err)
			}
			continue
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

// Delete removes the snapshot and its index entry.
func (r *CircuitStateRepo) Delete(ctx context.Context, providerID string) error {
	if err := r.data.GetCache().Delete(ctx, BuildCacheKey(CacheKeyCircuit, providerID)); err != nil {
		return fmt.Errorf("failed to delete circuit snapshot: %w", err)
	}
	if rdb := r.data.GetRedisClient(); rdb != nil {
		if err := rdb.SRem(ctx, CacheKeyCircuitIndex, providerID).Err(); err != nil {
			return fmt.Errorf("failed to unindex circuit snapshot: %w", err)
		}
	}
	return nil
}
