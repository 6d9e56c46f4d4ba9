package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// Capability sets resolved by the setup flow
	CapabilityLRUSize       int
	CapabilityLRUTTLMinutes int

	// Station registry metadata
	StationLRUSize     int
	StationLRUTTLHours int
	StationS3TTLDays   int
	StationS3Bucket    string

	EnableLRUCache bool
	EnableS3Cache  bool
}

const (
	defaultCapabilityLRUSize    = 256
	defaultCapabilityTTLMinutes = 60
	defaultStationLRUSize       = 1000
	defaultStationTTLHours      = 24
	defaultStationS3TTLDays     = 7
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		CapabilityLRUSize:       getEnvInt("CACHE_CAPABILITY_LRU_SIZE", defaultCapabilityLRUSize),
		CapabilityLRUTTLMinutes: getEnvInt("CACHE_CAPABILITY_TTL_MINUTES", defaultCapabilityTTLMinutes),
		StationLRUSize:          getEnvInt("CACHE_STATION_LRU_SIZE", defaultStationLRUSize),
		StationLRUTTLHours:      getEnvInt("CACHE_STATION_TTL_HOURS", defaultStationTTLHours),
		StationS3TTLDays:        getEnvInt("CACHE_STATION_S3_TTL_DAYS", defaultStationS3TTLDays),
		StationS3Bucket:         os.Getenv("CACHE_STATION_BUCKET"),
		EnableLRUCache:          getEnvBool("CACHE_ENABLE_LRU", true),
		EnableS3Cache:           getEnvBool("CACHE_ENABLE_S3", false),
	}

	log.Debug().
		Int("CapabilityLRUSize", config.CapabilityLRUSize).
		Int("CapabilityLRUTTLMinutes", config.CapabilityLRUTTLMinutes).
		Int("StationLRUSize", config.StationLRUSize).
		Int("StationLRUTTLHours", config.StationLRUTTLHours).
		Int("StationS3TTLDays", config.StationS3TTLDays).
		Str("StationS3Bucket", config.StationS3Bucket).
		Bool("EnableLRUCache", config.EnableLRUCache).
		Bool("EnableS3Cache", config.EnableS3Cache).
		Msg("Cache configuration loaded")

	return config
}

func (c *CacheConfig) GetCapabilityTTL() time.Duration {
	return time.Duration(c.CapabilityLRUTTLMinutes) * time.Minute
}

func (c *CacheConfig) GetStationTTL() time.Duration {
	return time.Duration(c.StationLRUTTLHours) * time.Hour
}

func (c *CacheConfig) GetStationS3TTL() time.Duration {
	return time.Duration(c.StationS3TTLDays) * 24 * time.Hour
}

// S3Enabled reports whether the S3 station cache can actually be used.
func (c *CacheConfig) S3Enabled() bool {
	return c.EnableS3Cache && c.StationS3Bucket != ""
}

func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
