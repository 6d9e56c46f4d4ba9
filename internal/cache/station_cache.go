package cache

import (
	"context"

	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// StationStore is a persistent layer behind the in-memory station cache.
type StationStore interface {
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
	SaveStation(ctx context.Context, station *models.Station) error
}

// StationCache holds registry metadata in memory, falling through to an
// optional StationStore.
type StationCache struct {
	entries *expiringLRU[models.Station]
	store   StationStore
}

func NewStationCache(cfg *config.CacheConfig, store StationStore) (*StationCache, error) {
	entries, err := newExpiringLRU[models.Station](cfg.StationLRUSize, cfg.GetStationTTL())
	if err != nil {
		return nil, err
	}
	return &StationCache{entries: entries, store: store}, nil
}

// GetStation returns a copy of the cached station, or nil when neither layer
// has it.
func (c *StationCache) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	if s, ok := c.entries.get(stationID); ok {
		return &s, nil
	}
	if c.store == nil {
		return nil, nil
	}

	s, err := c.store.GetStation(ctx, stationID)
	if err != nil || s == nil {
		return nil, err
	}
	c.entries.add(stationID, *s)
	return s, nil
}

func (c *StationCache) SaveStation(ctx context.Context, station *models.Station) error {
	if station == nil {
		return nil
	}
	c.entries.add(station.ID, *station)
	if c.store == nil {
		return nil
	}
	return c.store.SaveStation(ctx, station)
}

func (c *StationCache) GetCacheStats() map[string]uint64 {
	return c.entries.stats()
}
