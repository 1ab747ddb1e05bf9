package rediscache

import (
	"context"
	"testing"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *LiveCache) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })

	return mr, NewLiveCache(client, time.Minute)
}

func TestLiveCache_SetThenGet(t *testing.T) {
	_, cache := setupCache(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	point := domain.TelemetryPoint{
		ID:        "p-1",
		DeviceID:  "dog-collar-001",
		Latitude:  14.5995,
		Longitude: 120.9842,
		GPSValid:  false,
		Battery:   77,
		Timestamp: createdAt.Add(-time.Second),
		CreatedAt: createdAt,
	}

	require.NoError(t, cache.Set(ctx, point))

	got, err := cache.Get(ctx, "dog-collar-001")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, 77, got.Battery)
	assert.False(t, got.GPSValid)
	assert.True(t, createdAt.Equal(got.CreatedAt))
}

func TestLiveCache_Miss(t *testing.T) {
	_, cache := setupCache(t)

	_, err := cache.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestLiveCache_Expires(t *testing.T) {
	mr, cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, domain.TelemetryPoint{ID: "p-1", DeviceID: "dog-collar-002"}))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"dog-collar-002"))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "dog-collar-002")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestLiveCache_LastWriteWins(t *testing.T) {
	_, cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, domain.TelemetryPoint{ID: "p-1", DeviceID: "dog-collar-003", Battery: 90}))
	require.NoError(t, cache.Set(ctx, domain.TelemetryPoint{ID: "p-2", DeviceID: "dog-collar-003", Battery: 89}))

	got, err := cache.Get(ctx, "dog-collar-003")
	require.NoError(t, err)
	assert.Equal(t, "p-2", got.ID)
}

func TestLiveCache_FillOnlyWhenEmpty(t *testing.T) {
	mr, cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Fill(ctx, domain.TelemetryPoint{ID: "p-1", DeviceID: "dog-collar-004"}))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"dog-collar-004"))

	require.NoError(t, cache.Set(ctx, domain.TelemetryPoint{ID: "p-2", DeviceID: "dog-collar-004"}))
	require.NoError(t, cache.Fill(ctx, domain.TelemetryPoint{ID: "p-1", DeviceID: "dog-collar-004"}))

	got, err := cache.Get(ctx, "dog-collar-004")
	require.NoError(t, err)
	assert.Equal(t, "p-2", got.ID)
}
