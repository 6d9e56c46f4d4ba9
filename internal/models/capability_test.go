package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitySet(t *testing.T) {
	caps := NewCapabilitySet("46026", ProviderBuoy, ProductSpectralWave, ProductMeteorological)

	assert.True(t, caps.Has(ProductMeteorological))
	assert.False(t, caps.Has(ProductTidePredictions))
	assert.Equal(t, 2, caps.Len())
	assert.Equal(t, []ProductKind{ProductMeteorological, ProductSpectralWave}, caps.List())

	caps.Add(ProductWaterTemperature)
	assert.Equal(t, []ProductKind{ProductWaterTemperature, ProductMeteorological, ProductSpectralWave}, caps.List())

	var nilCaps *CapabilitySet
	assert.False(t, nilCaps.Has(ProductWind))
	assert.Zero(t, nilCaps.Len())
	assert.Nil(t, nilCaps.List())
}

func TestCapabilitySetJSON(t *testing.T) {
	caps := NewCapabilitySet("9414290", ProviderStation, ProductWaterLevel, ProductTidePredictions)
	caps.ResolvedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(caps)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"products":["tide_predictions","water_level"]`)

	var decoded CapabilitySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, caps.List(), decoded.List())
	assert.Equal(t, ProviderStation, decoded.ProviderType)
	assert.True(t, caps.ResolvedAt.Equal(decoded.ResolvedAt))
}

func TestParseProductKind(t *testing.T) {
	for _, p := range AllProducts {
		got, err := ParseProductKind(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.NotEmpty(t, p.DisplayName())
	}

	_, err := ParseProductKind("salinity")
	assert.Error(t, err)
}
