package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/common/logger"
)

func newTestCache(t *testing.T) (*MatchCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMatchCache(client, 7, logger.NewTestLogger(t)), mr
}

func createTestMatch(profileVersion int64) *MatchData {
	return &MatchData{
		ProfileVersion:    profileVersion,
		GrantUpdatedAt:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		FitScore:          82,
		FitSummary:        "Strong fit for your farm nonprofit",
		EligibilityStatus: "likely_eligible",
		NextSteps:         []string{"Review the application checklist"},
		Urgency:           "high",
	}
}

func TestMatchCache_SetAndGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))

	got := cache.Get(ctx, "user-1", "grant-1", 3, nil)
	require.NotNil(t, got)
	assert.Equal(t, 82, got.FitScore)
	assert.Equal(t, int64(3), got.ProfileVersion)
	assert.False(t, got.ExpiresAt.IsZero())
}

func TestMatchCache_MissWhenAbsent(t *testing.T) {
	cache, _ := newTestCache(t)

	got := cache.Get(context.Background(), "user-1", "grant-unknown", 3, nil)

	assert.Nil(t, got)
}

func TestMatchCache_ProfileVersionMismatch(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))

	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 4, nil))
	assert.NotNil(t, cache.Get(ctx, "user-1", "grant-1", 3, nil))
}

func TestMatchCache_GrantFreshness(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))

	// Grant updated after the cache was written: stale.
	newer := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 3, &newer))

	// Grant unchanged since the cache was written: hit.
	same := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.NotNil(t, cache.Get(ctx, "user-1", "grant-1", 3, &same))
}

func TestMatchCache_LazyEviction(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))
	require.True(t, mr.Exists("match:user-1:grant-1"))

	// Move the cache's clock past the entry's expiry.
	cache.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 3, nil))
	assert.False(t, mr.Exists("match:user-1:grant-1"))
}

func TestMatchCache_GetBatch(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))
	cache.Set(ctx, "user-1", "grant-2", createTestMatch(2)) // stale version

	got := cache.GetBatch(ctx, "user-1", []string{"grant-1", "grant-2", "grant-3"}, 3)

	require.Len(t, got, 1)
	assert.Contains(t, got, "grant-1")
}

func TestMatchCache_SetBatch(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetBatch(ctx, "user-1", map[string]*MatchData{
		"grant-1": createTestMatch(3),
		"grant-2": createTestMatch(3),
	})

	got := cache.GetBatch(ctx, "user-1", []string{"grant-1", "grant-2"}, 3)
	assert.Len(t, got, 2)
}

func TestMatchCache_InvalidateUser(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))
	cache.Set(ctx, "user-1", "grant-2", createTestMatch(3))
	cache.Set(ctx, "user-2", "grant-1", createTestMatch(3))

	deleted := cache.InvalidateUser(ctx, "user-1")

	assert.Equal(t, 2, deleted)
	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 3, nil))
	assert.NotNil(t, cache.Get(ctx, "user-2", "grant-1", 3, nil))
}

func TestMatchCache_InvalidateGrant(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))
	cache.Set(ctx, "user-2", "grant-1", createTestMatch(3))
	cache.Set(ctx, "user-2", "grant-2", createTestMatch(3))

	deleted := cache.InvalidateGrant(ctx, "grant-1")

	assert.Equal(t, 2, deleted)
	assert.Nil(t, cache.Get(ctx, "user-2", "grant-1", 3, nil))
	assert.NotNil(t, cache.Get(ctx, "user-2", "grant-2", 3, nil))
}

func TestMatchCache_CleanupExpired(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-old", createTestMatch(3))

	cache.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	cache.Set(ctx, "user-1", "grant-new", createTestMatch(3))

	deleted := cache.CleanupExpired(ctx)

	assert.Equal(t, 1, deleted)
	assert.False(t, mr.Exists("match:user-1:grant-old"))
	assert.True(t, mr.Exists("match:user-1:grant-new"))
}

func TestMatchCache_DegradesWhenStoreDown(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "grant-1", createTestMatch(3))
	mr.Close()

	// Reads miss and writes no-op instead of erroring.
	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 3, nil))
	assert.Empty(t, cache.GetBatch(ctx, "user-1", []string{"grant-1"}, 3))
	cache.Set(ctx, "user-1", "grant-2", createTestMatch(3))
	cache.SetBatch(ctx, "user-1", map[string]*MatchData{"grant-3": createTestMatch(3)})
	assert.Equal(t, 0, cache.InvalidateUser(ctx, "user-1"))
}

func TestMatchCache_UnreadableEntryEvicted(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("match:user-1:grant-1", "not json"))

	assert.Nil(t, cache.Get(ctx, "user-1", "grant-1", 3, nil))
	assert.False(t, mr.Exists("match:user-1:grant-1"))
}
