package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// fakeClock implements a mock time source for testing
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testCacheConfig() *config.CacheConfig {
	return &config.CacheConfig{
		CapabilityLRUSize:       2,
		CapabilityLRUTTLMinutes: 10,
		StationLRUSize:          2,
		StationLRUTTLHours:      1,
	}
}

func TestExpiringLRU(t *testing.T) {
	c, err := newExpiringLRU[int](2, time.Minute)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	c.clock = clock

	c.add("a", 1)
	c.add("b", 2)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now least recently used
	c.add("c", 3)
	_, ok = c.get("b")
	assert.False(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.get("a")
	assert.False(t, ok, "expired entries are dropped")

	assert.Equal(t, map[string]uint64{"hits": 1, "misses": 2, "size": 1}, c.stats())

	assert.True(t, c.remove("c"))
	assert.False(t, c.remove("c"))

	_, err = newExpiringLRU[int](0, time.Minute)
	assert.Error(t, err)
}

func TestCapabilityCache(t *testing.T) {
	c, err := NewCapabilityCache(testCacheConfig())
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}
	c.entries.clock = clock
	ctx := context.Background()

	caps := models.NewCapabilitySet("46026", models.ProviderBuoy, models.ProductMeteorological, models.ProductSpectralWave)
	c.Add(ctx, caps)
	c.Add(ctx, nil)
	c.Add(ctx, &models.CapabilitySet{})

	got, ok := c.Get(ctx, " 46026 ")
	require.True(t, ok)
	assert.Same(t, caps, got)

	c.Invalidate("46026")
	_, ok = c.Get(ctx, "46026")
	assert.False(t, ok)

	c.Add(ctx, caps)
	clock.Advance(11 * time.Minute)
	_, ok = c.Get(ctx, "46026")
	assert.False(t, ok)

	c.Add(ctx, caps)
	c.Clear()
	_, ok = c.Get(ctx, "46026")
	assert.False(t, ok)

	stats := c.GetCacheStats()
	assert.Equal(t, uint64(1), stats["hits"])
	assert.Equal(t, uint64(3), stats["misses"])
}

type memoryStationStore struct {
	stations map[string]models.Station
	gets     int
}

func (m *memoryStationStore) GetStation(_ context.Context, id string) (*models.Station, error) {
	m.gets++
	s, ok := m.stations[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryStationStore) SaveStation(_ context.Context, s *models.Station) error {
	m.stations[s.ID] = *s
	return nil
}

func TestStationCache(t *testing.T) {
	ctx := context.Background()
	store := &memoryStationStore{stations: map[string]models.Station{
		"9414290": {ID: "9414290", Name: "San Francisco", Source: models.SourceNOAA},
	}}

	c, err := NewStationCache(testCacheConfig(), store)
	require.NoError(t, err)

	s, err := c.GetStation(ctx, "9414290")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "San Francisco", s.Name)

	// second read is served from memory
	_, err = c.GetStation(ctx, "9414290")
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)

	missing, err := c.GetStation(ctx, "0000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, c.SaveStation(ctx, &models.Station{ID: "8443970", Name: "Boston"}))
	assert.Contains(t, store.stations, "8443970")
	require.NoError(t, c.SaveStation(ctx, nil))
}

func TestStationCacheWithoutStore(t *testing.T) {
	c, err := NewStationCache(testCacheConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := c.GetStation(ctx, "9414290")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, c.SaveStation(ctx, &models.Station{ID: "9414290", Name: "San Francisco"}))
	s, err = c.GetStation(ctx, "9414290")
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Name = "mutated"

	again, err := c.GetStation(ctx, "9414290")
	require.NoError(t, err)
	assert.Equal(t, "San Francisco", again.Name, "callers get copies")
}
