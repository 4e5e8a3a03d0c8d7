package validator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStatsHourlyWindow(t *testing.T) {
	ctx := context.Background()
	stats := NewInMemoryStats()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, stats.RecordAttempt(ctx, "alice", decimal.NewFromInt(10), now.Add(-30*time.Minute)))
	require.NoError(t, stats.RecordAttempt(ctx, "alice", decimal.NewFromInt(20), now.Add(-59*time.Minute)))
	require.NoError(t, stats.RecordAttempt(ctx, "alice", decimal.NewFromInt(99), now.Add(-2*time.Hour)))
	require.NoError(t, stats.RecordAttempt(ctx, "bob", decimal.NewFromInt(7), now.Add(-5*time.Minute)))

	window, err := stats.HourlyWindow(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 2, window.Count, "stale attempt must be evicted")
	assert.True(t, window.Total.Equal(decimal.NewFromInt(30)))

	window, err = stats.HourlyWindow(ctx, "carol", now)
	require.NoError(t, err)
	assert.Zero(t, window.Count)
	assert.True(t, window.Total.IsZero())
}

func TestInMemoryStatsCompletedTotalOn(t *testing.T) {
	ctx := context.Background()
	stats := NewInMemoryStats()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, stats.RecordCompleted(ctx, "alice", decimal.NewFromInt(40), now.Add(-3*time.Hour)))
	require.NoError(t, stats.RecordCompleted(ctx, "alice", decimal.NewFromInt(25), now))
	require.NoError(t, stats.RecordCompleted(ctx, "alice", decimal.NewFromInt(100), now.Add(-24*time.Hour)))

	total, err := stats.CompletedTotalOn(ctx, "alice", now)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(65)), "yesterday's volume must not count, got %s", total)
}
