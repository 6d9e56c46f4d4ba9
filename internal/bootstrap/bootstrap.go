// Package bootstrap wires the upstream clients, caches and resolver shared by
// the service binary and the setup Lambda.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/station"
	"github.com/bbernstein/flowebb/tidesensors/internal/upstream"
	"github.com/bbernstein/flowebb/tidesensors/pkg/http/client"
)

// Deps is everything downstream of the upstream HTTP clients.
type Deps struct {
	Router   *upstream.Router
	Resolver *station.Resolver
	Registry *station.NOAARegistry
}

func newHTTPClient(cfg *config.Config, baseURL string) *client.Client {
	retries := cfg.MaxRetries
	// client.New reads zero as "use the default"
	if retries == 0 {
		retries = -1
	}
	return client.New(client.Options{
		BaseURL:    baseURL,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: retries,
	})
}

// New builds the router and resolver. The S3 station layer is only created
// when the cache config enables it.
func New(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*Deps, error) {
	router := upstream.NewRouter(
		upstream.NewNOAAClient(newHTTPClient(cfg, cfg.NOAABaseURL)),
		upstream.NewNDBCClient(newHTTPClient(cfg, cfg.NDBCBaseURL)),
	)

	opts := []station.ResolverOption{station.WithProbeTimeout(cfg.ProbeTimeout)}

	var registry *station.NOAARegistry
	if cacheCfg.EnableLRUCache {
		var store cache.StationStore
		if cacheCfg.S3Enabled() {
			s3Client, err := cache.NewS3Client(ctx)
			if err != nil {
				return nil, fmt.Errorf("creating s3 client: %w", err)
			}
			store = cache.NewS3StationCache(s3Client, cacheCfg.StationS3Bucket, cacheCfg.GetStationS3TTL())
			log.Info().Str("bucket", cacheCfg.StationS3Bucket).Msg("Station metadata backed by S3")
		}

		stationCache, err := cache.NewStationCache(cacheCfg, store)
		if err != nil {
			return nil, fmt.Errorf("creating station cache: %w", err)
		}
		registry = station.NewNOAARegistry(newHTTPClient(cfg, cfg.MetadataURL), stationCache)

		capCache, err := cache.NewCapabilityCache(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("creating capability cache: %w", err)
		}
		opts = append(opts, station.WithCapabilityCache(capCache))
	} else {
		registry = station.NewNOAARegistry(newHTTPClient(cfg, cfg.MetadataURL), nil)
	}
	opts = append(opts, station.WithRegistry(registry))

	return &Deps{
		Router:   router,
		Resolver: station.NewResolver(router, opts...),
		Registry: registry,
	}, nil
}
