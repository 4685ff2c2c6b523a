package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStore(t *testing.T, maxSize int) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryStore(maxSize, 0)
	m.now = clock.now
	t.Cleanup(func() { _ = m.Close() })
	return m, clock
}

func TestMemoryStoreSetGetExpire(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryStore(t, 10)

	require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	clock.advance(2 * time.Minute)
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	exists, err := m.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreNoTTL(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryStore(t, 10)

	require.NoError(t, m.Set(ctx, "forever", "x", 0))
	clock.advance(24 * time.Hour)

	exists, err := m.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryStore(t, 10)

	ok, err := m.SetNX(ctx, "k", "1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "k", "2", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.advance(2 * time.Second)
	ok, err = m.SetNX(ctx, "k", "3", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestMemoryStoreEvictsLeastUsed(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryStore(t, 2)

	require.NoError(t, m.Set(ctx, "hot", "1", 0))
	clock.advance(time.Second)
	require.NoError(t, m.Set(ctx, "cold", "2", 0))
	_, err := m.Get(ctx, "hot")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "new", "3", 0))

	_, err = m.Get(ctx, "cold")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "hot")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "new")
	assert.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 2, stats["size"])
	assert.Equal(t, int64(1), stats["evictions"])
}

func TestMemoryStoreExpiredEntriesFreeCapacity(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemoryStore(t, 1)

	require.NoError(t, m.Set(ctx, "old", "1", time.Second))
	clock.advance(2 * time.Second)
	require.NoError(t, m.Set(ctx, "next", "2", time.Second))

	got, err := m.Get(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemoryStore(t, 10)

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Delete(ctx, "a"))

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, m.Ping(ctx))
}
