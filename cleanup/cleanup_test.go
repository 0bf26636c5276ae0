package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdfalcon104/survey-response-sync/clock"
	"github.com/mdfalcon104/survey-response-sync/config"
	"github.com/mdfalcon104/survey-response-sync/model"
	"github.com/mdfalcon104/survey-response-sync/store"
)

func TestCleanupOldSyncedDeletesOnlyOldRows(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	clk := clock.NewFixed(int64(10 * 24 * time.Hour / time.Millisecond))

	require.NoError(t, s.InsertOrReplace(ctx, &model.ResponseRecord{
		ID: "old", FarmerID: "f", CreatedAt: 0, AnswersJSON: "{}", Status: model.StatusSynced,
	}))
	require.NoError(t, s.InsertOrReplace(ctx, &model.ResponseRecord{
		ID: "recent", FarmerID: "f", CreatedAt: clk.NowMillis() - int64(time.Hour/time.Millisecond), AnswersJSON: "{}", Status: model.StatusSynced,
	}))

	cfg := config.DefaultConfig() // 7 day retention
	p := New(cfg, s, clk, nil)

	require.NoError(t, p.CleanupOldSynced(ctx))

	_, ok, _ := s.GetByID(ctx, "old")
	assert.False(t, ok)

	_, ok, _ = s.GetByID(ctx, "recent")
	assert.True(t, ok)
}

// R2: two successive calls with no intervening writes produce identical
// store state after the first.
func TestCleanupOldSyncedIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	clk := clock.NewFixed(int64(10 * 24 * time.Hour / time.Millisecond))

	require.NoError(t, s.InsertOrReplace(ctx, &model.ResponseRecord{
		ID: "old", FarmerID: "f", CreatedAt: 0, AnswersJSON: "{}", Status: model.StatusSynced,
	}))

	cfg := config.DefaultConfig()
	p := New(cfg, s, clk, nil)

	require.NoError(t, p.CleanupOldSynced(ctx))
	countAfterFirst, err := s.Count(ctx)
	require.NoError(t, err)

	require.NoError(t, p.CleanupOldSynced(ctx))
	countAfterSecond, err := s.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, countAfterFirst, countAfterSecond)
}

func TestShouldTriggerCleanup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CleanupThreshold = 30
	p := New(cfg, store.NewMemoryStore(), clock.NewFixed(0), nil)

	assert.False(t, p.ShouldTriggerCleanup(29))
	assert.True(t, p.ShouldTriggerCleanup(30))
	assert.True(t, p.ShouldTriggerCleanup(31))
}
