package data

import (
	"context"
	"testing"
	"time"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id string, state model.CircuitState) *model.CircuitSnapshot {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.CircuitSnapshot{
		ProviderID:      id,
		State:           state,
		FailureCount:    2,
		NextAttemptTime: now.Add(time.Minute),
		Metrics:         model.CircuitMetrics{TotalCalls: 10, TotalFailures: 4, MovingAverageResponseTime: 250 * time.Millisecond},
		Config:          model.DefaultCircuitConfig(),
		UpdatedAt:       now,
	}
}

func TestCircuitStateRepo_SaveLoad(t *testing.T) {
	d, mr := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)
	ctx := context.Background()

	snap := testSnapshot("studio-a", model.CircuitOpen)
	require.NoError(t, repo.Save(ctx, snap))

	assert.True(t, mr.Exists("circuit:studio-a"))
	members, err := mr.Members(CacheKeyCircuitIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{"studio-a"}, members)

	got, err := repo.Load(ctx, "studio-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CircuitOpen, got.State)
	assert.Equal(t, 2, got.FailureCount)
	assert.True(t, snap.NextAttemptTime.Equal(got.NextAttemptTime))
	assert.Equal(t, snap.Metrics, got.Metrics)
	assert.Equal(t, snap.Config, got.Config)
}

func TestCircuitStateRepo_SaveUpserts(t *testing.T) {
	d, _ := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSnapshot("studio-a", model.CircuitOpen)))
	require.NoError(t, repo.Save(ctx, testSnapshot("studio-a", model.CircuitHalfOpen)))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.CircuitHalfOpen, all[0].State)
}

func TestCircuitStateRepo_LoadMissing(t *testing.T) {
	d, _ := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)

	got, err := repo.Load(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCircuitStateRepo_LoadAllPrunesExpired(t *testing.T) {
	d, mr := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSnapshot("studio-a", model.CircuitClosed)))
	require.NoError(t, repo.Save(ctx, testSnapshot("studio-b", model.CircuitOpen)))
	mr.Del("circuit:studio-b")

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "studio-a", all[0].ProviderID)

	members, err := mr.Members(CacheKeyCircuitIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{"studio-a"}, members)
}

func TestCircuitStateRepo_Delete(t *testing.T) {
	d, mr := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSnapshot("studio-a", model.CircuitClosed)))
	require.NoError(t, repo.Delete(ctx, "studio-a"))

	assert.False(t, mr.Exists("circuit:studio-a"))
	members, _ := mr.Members(CacheKeyCircuitIndex)
	assert.Empty(t, members)
}

func TestCircuitStateRepo_Errors(t *testing.T) {
	d, mr := newTestData(t)
	repo := NewCircuitStateRepo(d, log.DefaultLogger)
	ctx := context.Background()

	assert.Error(t, repo.Save(ctx, nil))
	assert.Error(t, repo.Save(ctx, &model.CircuitSnapshot{}))

	mr.Close()
	assert.Error(t, repo.Save(ctx, testSnapshot("studio-a", model.CircuitClosed)))
	_, err := repo.LoadAll(ctx)
	assert.Error(t, err)
}
