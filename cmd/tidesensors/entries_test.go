package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
	"github.com/bbernstein/flowebb/tidesensors/internal/station"
)

var now = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

type stubResolver struct {
	caps map[string]*models.CapabilitySet
}

func (s *stubResolver) Resolve(_ context.Context, identifier string) (*models.CapabilitySet, error) {
	if caps, ok := s.caps[identifier]; ok {
		return caps, nil
	}
	return nil, &station.ResolveError{Identifier: identifier, Err: station.ErrInvalidIdentifier}
}

func (s *stubResolver) Invalidate(string) {}

func newStubResolver() *stubResolver {
	return &stubResolver{caps: map[string]*models.CapabilitySet{
		"9414290": models.NewCapabilitySet("9414290", models.ProviderStation,
			models.ProductTidePredictions, models.ProductWaterLevel, models.ProductWind),
		"46026": models.NewCapabilitySet("46026", models.ProviderBuoy, models.ProductWind),
	}}
}

func TestFileEntries(t *testing.T) {
	instances := []config.InstanceConfig{
		{Identifier: "9414290", Name: "Golden Gate", UnitSystem: "imperial", Sensors: []string{"water_level"}},
		{Identifier: "46026"},
		{Identifier: "unknown"},
		{Identifier: "9414290", Sensors: []string{"conductivity"}},
	}

	entries := fileEntries(context.Background(), newStubResolver(), instances, now)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "file-9414290", first.ID)
	assert.Equal(t, "Golden Gate", first.Options.Name)
	assert.Equal(t, models.UnitsImperial, first.Options.UnitSystem)
	assert.Equal(t, []models.ProductKind{models.ProductWaterLevel}, first.Options.SensorList())
	assert.Equal(t, models.DefaultUpdateInterval, first.Options.UpdateIntervalSeconds)
	assert.Equal(t, now, first.CreatedAt)

	buoy := entries[1]
	assert.Equal(t, "file-46026", buoy.ID)
	assert.Equal(t, "NDBC Buoy 46026", buoy.Options.Name)
	assert.Equal(t, []models.ProductKind{models.ProductWind}, buoy.Options.SensorList())
	assert.NoError(t, buoy.Validate())
}

func TestMergeEntries(t *testing.T) {
	fromFile := fileEntries(context.Background(), newStubResolver(), []config.InstanceConfig{
		{Identifier: "9414290"},
		{Identifier: "46026"},
	}, now)
	require.Len(t, fromFile, 2)

	stored := &models.ConfigEntry{ID: "stored-1", Identifier: "46026"}
	merged := mergeEntries(fromFile, []*models.ConfigEntry{stored})

	require.Len(t, merged, 2)
	assert.Equal(t, "stored-1", merged[0].ID)
	assert.Equal(t, "file-9414290", merged[1].ID)
}

func TestNewEntryStoreDefaultsToMemory(t *testing.T) {
	store, err := newEntryStore(context.Background(), &config.File{Store: config.StoreConfig{Type: config.StoreMemory}})
	require.NoError(t, err)
	assert.IsType(t, &setup.MemoryEntryStore{}, store)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "resolve", "read", "add", "list", "remove"})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"resolve"})
	assert.Error(t, root.Execute())
}
