package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVerificationStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVerificationStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "fresh", "a@cornell.edu", time.Hour))
	require.NoError(t, store.Put(ctx, "stale", "b@cornell.edu", time.Minute))

	entry, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@cornell.edu", entry.Email)

	now = now.Add(5 * time.Minute)
	_, ok, _ = store.Get(ctx, "stale")
	assert.False(t, ok, "expired entries are invisible before cleanup")

	stats, _ := store.Stats(ctx)
	assert.Equal(t, VerificationStats{Backend: "memory", Total: 2, Expired: 1}, stats)

	removed, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, store.Delete(ctx, "fresh"))
	stats, _ = store.Stats(ctx)
	assert.Equal(t, 0, stats.Total)
}

func TestMemoryVerificationStoreClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVerificationStore()
	require.NoError(t, store.Put(ctx, "t", "a@cornell.edu", time.Hour))
	require.NoError(t, store.Close())
	_, ok, _ := store.Get(ctx, "t")
	assert.False(t, ok)
}
