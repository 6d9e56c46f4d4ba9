package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

// fileEntryPrefix marks entries declared in the config file rather than
// created through the setup flow.
const fileEntryPrefix = "file-"

func newEntryStore(ctx context.Context, f *config.File) (setup.EntryStore, error) {
	if f.Store.Type != config.StoreDynamo {
		return setup.NewMemoryEntryStore(), nil
	}
	client, err := cache.NewDynamoClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating dynamodb client: %w", err)
	}
	return setup.NewDynamoEntryStore(client, f.Store.Table), nil
}

// configureInput maps an instance block onto setup input. An empty sensor
// list enables everything the identifier offers.
func configureInput(inst config.InstanceConfig, caps *models.CapabilitySet) setup.ConfigureInput {
	sensors := inst.Sensors
	if len(sensors) == 0 {
		sensors = caps.ProductNames()
	}
	return setup.ConfigureInput{
		Name:                  inst.Name,
		TimezoneMode:          inst.TimezoneMode,
		UnitSystem:            inst.UnitSystem,
		UpdateIntervalSeconds: inst.UpdateInterval,
		Sensors:               sensors,
	}
}

// fileEntries resolves every instance in the config file. Instances that
// fail to resolve are logged and skipped so one bad identifier does not keep
// the rest from running.
func fileEntries(ctx context.Context, resolver setup.CapabilityResolver, instances []config.InstanceConfig, now time.Time) []*models.ConfigEntry {
	entries := make([]*models.ConfigEntry, 0, len(instances))
	for _, inst := range instances {
		caps, err := resolver.Resolve(ctx, inst.Identifier)
		if err != nil {
			log.Error().Err(err).Str("identifier", inst.Identifier).Msg("Skipping instance that failed to resolve")
			continue
		}

		opts, err := setup.BuildOptions(configureInput(inst, caps), caps)
		if err != nil {
			log.Error().Err(err).Str("identifier", inst.Identifier).Msg("Skipping instance with invalid options")
			continue
		}

		entries = append(entries, &models.ConfigEntry{
			ID:           fileEntryPrefix + strings.ToLower(caps.Identifier),
			Identifier:   caps.Identifier,
			Capabilities: *caps,
			Options:      opts,
			CreatedAt:    now.UTC(),
		})
	}
	return entries
}

// mergeEntries combines file and stored entries. A stored entry for the same
// identifier wins since it reflects the latest setup.
func mergeEntries(fromFile, stored []*models.ConfigEntry) []*models.ConfigEntry {
	seen := make(map[string]struct{}, len(stored))
	out := make([]*models.ConfigEntry, 0, len(fromFile)+len(stored))
	for _, e := range stored {
		seen[e.Identifier] = struct{}{}
		out = append(out, e)
	}
	for _, e := range fromFile {
		if _, dup := seen[e.Identifier]; dup {
			log.Info().Str("identifier", e.Identifier).Msg("Stored entry overrides config file instance")
			continue
		}
		out = append(out, e)
	}
	return out
}
