package iocache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteCache(t *testing.T) *ResultCacheImpl {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewResultCache("test_cache", schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*ResultCacheImpl)
}

func TestResultCacheRoundTrip(t *testing.T) {
	store := newSQLiteCache(t)

	now := time.Now().Unix()
	require.NoError(t, store.Set("k1", []byte(`{"total":5}`), 1, now))

	value, version, ts, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"total":5}`), value)
	assert.Equal(t, 1, version)
	assert.Equal(t, now, ts)
}

func TestResultCacheMissingKey(t *testing.T) {
	store := newSQLiteCache(t)
	_, _, _, err := store.Get("absent")
	assert.Error(t, err)
}

func TestResultCacheOverwrite(t *testing.T) {
	store := newSQLiteCache(t)

	require.NoError(t, store.Set("k1", []byte("old"), 1, 100))
	require.NoError(t, store.Set("k1", []byte("new"), 2, 200))

	value, version, ts, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(200), ts)
}

func TestResultCacheStatus(t *testing.T) {
	store := newSQLiteCache(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalEntries)

	require.NoError(t, store.Set("k1", []byte("a"), 1, 100))
	require.NoError(t, store.Set("k2", []byte("b"), 1, 300))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, time.Unix(300, 0), status.LastEntryTime)
	assert.Equal(t, time.Unix(100, 0), status.OldestEntryTime)
	assert.Positive(t, status.TableSizeBytes)
}

func TestResultCacheNoneBackend(t *testing.T) {
	store, err := NewResultCache("test_cache", schema.NoneBackend, "")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.NoError(t, store.Set("k1", []byte("a"), 1, 100), "set is a no-op")
	_, _, _, err = store.Get("k1")
	assert.Error(t, err, "get always misses")

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestResultCacheRejectsBadTableName(t *testing.T) {
	_, err := NewResultCache("cache; DROP TABLE users", schema.SQLiteBackend, filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)

	_, err = NewResultCache("", schema.SQLiteBackend, filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}
