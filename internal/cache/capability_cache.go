package cache

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// CapabilityCache keeps resolved capability sets per identifier so repeated
// setup attempts do not re-probe every upstream product. Cached sets are
// shared and must not be modified by callers.
type CapabilityCache struct {
	entries *expiringLRU[*models.CapabilitySet]
}

func NewCapabilityCache(cfg *config.CacheConfig) (*CapabilityCache, error) {
	entries, err := newExpiringLRU[*models.CapabilitySet](cfg.CapabilityLRUSize, cfg.GetCapabilityTTL())
	if err != nil {
		return nil, err
	}
	return &CapabilityCache{entries: entries}, nil
}

func capabilityKey(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

func (c *CapabilityCache) Get(_ context.Context, identifier string) (*models.CapabilitySet, bool) {
	return c.entries.get(capabilityKey(identifier))
}

func (c *CapabilityCache) Add(_ context.Context, caps *models.CapabilitySet) {
	if caps == nil || caps.Identifier == "" {
		return
	}
	c.entries.add(capabilityKey(caps.Identifier), caps)
}

// Invalidate drops the cached set for identifier, forcing the next lookup to
// resolve again.
func (c *CapabilityCache) Invalidate(identifier string) {
	if c.entries.remove(capabilityKey(identifier)) {
		log.Debug().Str("identifier", identifier).Msg("Invalidated cached capabilities")
	}
}

func (c *CapabilityCache) Clear() {
	c.entries.purge()
}

// GetCacheStats returns hit and miss counters
func (c *CapabilityCache) GetCacheStats() map[string]uint64 {
	return c.entries.stats()
}
