package data

import (
	"testing"

	"Switchyard/internal/conf"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestData wires Data against miniredis without a database.
func newTestData(t *testing.T) (*Data, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	d, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, rdb, NewCacheClient(rdb), nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return d, mr
}

func TestNewData_WithRedis(t *testing.T) {
	d, _ := newTestData(t)

	assert.NotNil(t, d.GetRedisClient())
	assert.NotNil(t, d.GetCache())
	assert.Nil(t, d.GetDB())
}

func TestNewData_WithoutRedis(t *testing.T) {
	d, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, nil, NewCacheClient(nil), nil)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, d.GetRedisClient())
	assert.NotNil(t, d.GetCache())
}
