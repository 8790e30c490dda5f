package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioreach/stationmap/internal/entity"
)

// fakeSource counts loads and lets tests flip its identity.
type fakeSource struct {
	identity string
	loads    int
}

func (f *fakeSource) Identity() (string, error) { return f.identity, nil }

func (f *fakeSource) Load(context.Context) (*entity.Dataset, error) {
	f.loads++
	return &entity.Dataset{
		Stations: []entity.StationLocation{{StationName: "Dokolo FM", Color: "blue"}},
	}, nil
}

func TestCache_LoadOncePerIdentity(t *testing.T) {
	cache := NewCache()
	src := &fakeSource{identity: "v1"}

	a, err := cache.Load(context.Background(), src)
	require.NoError(t, err)
	b, err := cache.Load(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, src.loads, "second load must hit the cache")
	assert.Same(t, a, b, "cache returns the same snapshot")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestCache_IdentityChangeReloads(t *testing.T) {
	cache := NewCache()
	src := &fakeSource{identity: "v1"}

	_, err := cache.Load(context.Background(), src)
	require.NoError(t, err)

	src.identity = "v2"
	_, err = cache.Load(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 2, src.loads, "changed identity must trigger a reload")
	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache()
	src := &fakeSource{identity: "v1"}

	_, err := cache.Load(context.Background(), src)
	require.NoError(t, err)

	cache.Invalidate()
	assert.Equal(t, 0, cache.Stats().Entries)

	_, err = cache.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}
