package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

var (
	fetchedAt = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	sfStation = &models.Station{
		ID:             "9414290",
		Name:           "San Francisco",
		Source:         models.SourceNOAA,
		TimeZoneOffset: -8 * 3600,
		TimeZoneAbbr:   "PST",
		ObservesDST:    true,
	}
)

func options(units models.UnitSystem, tz models.TimezoneMode, sensors ...models.ProductKind) models.Options {
	return models.Options{
		Name:                  "SF",
		TimezoneMode:          tz,
		UnitSystem:            units,
		UpdateIntervalSeconds: 300,
		EnabledSensors:        models.SensorSet(sensors...),
	}
}

func sample(records ...models.Record) *models.Sample[[]models.Record] {
	return models.NewSample(records, fetchedAt)
}

func tideSnapshot() *Snapshot {
	low := models.TideEvent{Time: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC), Height: 0.1, Kind: models.TideLow}
	high := models.TideEvent{Time: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), Height: 1.8, Kind: models.TideHigh}
	following := models.TideEvent{Time: time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC), Height: -0.2, Kind: models.TideLow}
	return &Snapshot{
		Now: time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC),
		Tide: models.NewSample(&models.InterpolationResult{
			Phase:      models.TideRising,
			Factor:     50,
			Percentage: 50,
			Previous:   low,
			Next:       high,
			Following:  &following,
			TimeToNext: 3 * time.Hour,
		}, fetchedAt),
	}
}

func TestComposeSelectsEnabledCapabilities(t *testing.T) {
	caps := models.NewCapabilitySet("9414290", models.ProviderStation,
		models.ProductWind, models.ProductWaterLevel, models.ProductTidePredictions, models.ProductHumidity)
	opts := options(models.UnitsMetric, models.TimezoneGMT,
		models.ProductWaterLevel, models.ProductWind, models.ProductTidePredictions, models.ProductSpectralWave)

	snap := tideSnapshot()
	snap.Records = map[models.ProductKind]*models.Sample[[]models.Record]{
		models.ProductWaterLevel: sample(models.Record{Time: fetchedAt, Values: map[string]float64{models.ValueKey: 1.234}}),
		models.ProductHumidity:   sample(models.Record{Time: fetchedAt, Values: map[string]float64{models.ValueKey: 80}}),
	}

	readings := Compose(caps, opts, snap, sfStation)
	require.Len(t, readings, 3)

	assert.Equal(t, models.ProductTidePredictions, readings[0].Key)
	assert.Equal(t, models.ProductWaterLevel, readings[1].Key)
	assert.Equal(t, models.ProductWind, readings[2].Key)

	assert.True(t, readings[0].Available)
	assert.True(t, readings[1].Available)
	assert.Equal(t, 1.23, *readings[1].Value)
	assert.Equal(t, "m", readings[1].Unit)
	assert.Equal(t, "SF Water Level", readings[1].Name)

	// wind has no data this cycle; it is unavailable without hiding the rest
	assert.False(t, readings[2].Available)
	assert.Nil(t, readings[2].Value)
}

func TestComposeImperialConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		product   models.ProductKind
		values    map[string]float64
		wantValue float64
		wantUnit  string
		wantAttrs map[string]any
	}{
		{
			name:      "water level in feet",
			product:   models.ProductWaterLevel,
			values:    map[string]float64{models.ValueKey: 1.0},
			wantValue: 3.28,
			wantUnit:  "ft",
		},
		{
			name:      "water temperature in fahrenheit",
			product:   models.ProductWaterTemperature,
			values:    map[string]float64{models.ValueKey: 13.5},
			wantValue: 56.3,
			wantUnit:  "°F",
		},
		{
			name:      "wind in mph with gust",
			product:   models.ProductWind,
			values:    map[string]float64{models.SpeedKey: 5.4, models.DirectionKey: 280, models.GustKey: 7.1},
			wantValue: 12.08,
			wantUnit:  "mph",
			wantAttrs: map[string]any{"direction": 280.0, "gust": 15.88, "direction_cardinal": "W"},
		},
		{
			name:      "pressure in inHg",
			product:   models.ProductPressure,
			values:    map[string]float64{models.ValueKey: 1013.25},
			wantValue: 29.92,
			wantUnit:  "inHg",
		},
		{
			name:      "ocean current in knots",
			product:   models.ProductOceanCurrent,
			values:    map[string]float64{models.SpeedKey: 24, models.DirectionKey: 185, "DEP01": 2},
			wantValue: 0.47,
			wantUnit:  "kn",
			wantAttrs: map[string]any{"direction": 185.0, "depth": 6.56, "direction_cardinal": "S"},
		},
		{
			name:      "humidity unchanged",
			product:   models.ProductHumidity,
			values:    map[string]float64{models.ValueKey: 81},
			wantValue: 81,
			wantUnit:  "%",
		},
		{
			name:      "conductivity unchanged",
			product:   models.ProductConductivity,
			values:    map[string]float64{models.ValueKey: 45.123},
			wantValue: 45.12,
			wantUnit:  "mS/cm",
		},
		{
			name:      "spectral wave heights",
			product:   models.ProductSpectralWave,
			values:    map[string]float64{"WVHT": 1.5, "SwH": 1.2, "SwP": 10, "MWD": 295},
			wantValue: 4.92,
			wantUnit:  "ft",
			wantAttrs: map[string]any{"swell_height": 3.94, "swell_period": 10.0, "mean_wave_direction": 295.0},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			caps := models.NewCapabilitySet("X", models.ProviderBuoy, tt.product)
			snap := &Snapshot{Records: map[models.ProductKind]*models.Sample[[]models.Record]{
				tt.product: sample(models.Record{Time: fetchedAt, Values: tt.values}),
			}}

			readings := Compose(caps, options(models.UnitsImperial, models.TimezoneGMT, tt.product), snap, nil)
			require.Len(t, readings, 1)
			r := readings[0]
			require.True(t, r.Available)
			assert.InDelta(t, tt.wantValue, *r.Value, 1e-9)
			assert.Equal(t, tt.wantUnit, r.Unit)
			for k, v := range tt.wantAttrs {
				assert.Equal(t, v, r.Attributes[k], k)
			}
			assert.Equal(t, "2024-06-01T20:00:00Z", r.Attributes["observed_at"])
		})
	}
}

func TestComposeTideReading(t *testing.T) {
	caps := models.NewCapabilitySet("9414290", models.ProviderStation, models.ProductTidePredictions)
	caps.Station = sfStation

	readings := Compose(caps, options(models.UnitsImperial, models.TimezoneLSTLDT, models.ProductTidePredictions), tideSnapshot(), nil)
	require.Len(t, readings, 1)
	r := readings[0]

	require.True(t, r.Available)
	assert.Equal(t, 50.0, *r.Value)
	assert.Equal(t, "%", r.Unit)
	// 00:00 UTC is 17:00 PDT
	assert.Equal(t, "High tide at 5:00 PM", r.State)

	assert.Equal(t, 50.0, r.Attributes["factor"])
	assert.Equal(t, 50.0, r.Attributes["percentage"])
	assert.Equal(t, "rising", r.Attributes["phase"])
	assert.Equal(t, 180, r.Attributes["time_to_next_minutes"])

	next := r.Attributes["next_event"].(map[string]any)
	assert.Equal(t, "High", next["type"])
	assert.Equal(t, "2024-06-01T17:00:00-07:00", next["time"])
	assert.Equal(t, 5.91, next["level"])
	assert.Equal(t, "ft", next["unit"])

	prev := r.Attributes["previous_event"].(map[string]any)
	assert.Equal(t, "Low", prev["type"])
	assert.Equal(t, 0.33, prev["level"])

	following := r.Attributes["following_event"].(map[string]any)
	assert.Equal(t, -0.66, following["level"])
}

func TestComposeCurrentReading(t *testing.T) {
	caps := models.NewCapabilitySet("SFB1201", models.ProviderStation, models.ProductCurrentPredictions)
	snap := &Snapshot{Current: models.NewSample(&models.CurrentInterpolationResult{
		State:     models.CurrentFlood,
		Direction: 75,
		Speed:     120.5,
		Previous:  models.CurrentEvent{Time: fetchedAt.Add(-time.Hour), Kind: models.CurrentSlack},
		Next:      models.CurrentEvent{Time: fetchedAt.Add(time.Hour), Speed: 150, Direction: 75, Kind: models.CurrentFlood},
	}, fetchedAt)}

	readings := Compose(caps, options(models.UnitsImperial, models.TimezoneGMT, models.ProductCurrentPredictions), snap, nil)
	require.Len(t, readings, 1)
	r := readings[0]

	assert.Equal(t, "flood", r.State)
	assert.Equal(t, 2.34, *r.Value)
	assert.Equal(t, "kn", r.Unit)
	assert.Equal(t, 75.0, r.Attributes["direction"])
	assert.Equal(t, "ENE", r.Attributes["direction_cardinal"])

	next := r.Attributes["next_event"].(map[string]any)
	assert.Equal(t, "flood", next["type"])
	assert.Equal(t, 2.92, next["speed"])
}

func TestComposeStaleAndUnavailable(t *testing.T) {
	caps := models.NewCapabilitySet("9414290", models.ProviderStation,
		models.ProductTidePredictions, models.ProductCurrentPredictions, models.ProductWaterLevel, models.ProductAirTemperature)
	opts := options(models.UnitsMetric, models.TimezoneGMT,
		models.ProductTidePredictions, models.ProductCurrentPredictions, models.ProductWaterLevel, models.ProductAirTemperature)

	snap := &Snapshot{Records: map[models.ProductKind]*models.Sample[[]models.Record]{
		models.ProductWaterLevel: sample(models.Record{Time: fetchedAt, Values: map[string]float64{models.ValueKey: 1.5}}).MarkStale(),
		// a row without the value column counts as missing
		models.ProductAirTemperature: sample(models.Record{Time: fetchedAt, Values: map[string]float64{"other": 1}}),
	}}

	readings := Compose(caps, opts, snap, nil)
	require.Len(t, readings, 4)

	byKey := make(map[models.ProductKind]models.Reading)
	for _, r := range readings {
		byKey[r.Key] = r
	}

	assert.False(t, byKey[models.ProductTidePredictions].Available)
	assert.False(t, byKey[models.ProductCurrentPredictions].Available)
	assert.False(t, byKey[models.ProductAirTemperature].Available)

	level := byKey[models.ProductWaterLevel]
	assert.True(t, level.Available)
	assert.True(t, level.Stale)
	assert.Equal(t, 1.5, *level.Value)
	assert.Equal(t, "2024-06-01T20:00:00Z", level.Attributes["stale_since"])
	assert.Equal(t, "water_level: 1.50 m (stale)", Summary(level))
	assert.Equal(t, "air_temperature: unavailable", Summary(byKey[models.ProductAirTemperature]))
}

func TestComposeMeteorologicalWithoutWaves(t *testing.T) {
	t.Parallel()

	caps := models.NewCapabilitySet("46026", models.ProviderBuoy, models.ProductMeteorological)
	opts := options(models.UnitsMetric, models.TimezoneGMT, models.ProductMeteorological)

	tests := []struct {
		name          string
		values        map[string]float64
		wantAvailable bool
		wantAttrs     map[string]any
	}{
		{
			name:          "met data only",
			values:        map[string]float64{"WSPD": 7, "PRES": 1014.2, "PTDY": -0.4, "TIDE": 0.6096},
			wantAvailable: true,
			wantAttrs: map[string]any{
				"wind_speed":        7.0,
				"pressure":          1014.2,
				"pressure_tendency": -0.4,
				"tide":              0.61,
			},
		},
		{
			name:   "nothing reported",
			values: map[string]float64{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			snap := &Snapshot{Records: map[models.ProductKind]*models.Sample[[]models.Record]{
				models.ProductMeteorological: sample(models.Record{Time: fetchedAt, Values: tt.values}),
			}}

			readings := Compose(caps, opts, snap, nil)
			require.Len(t, readings, 1)
			r := readings[0]
			assert.Equal(t, tt.wantAvailable, r.Available)
			assert.Nil(t, r.Value)
			if !tt.wantAvailable {
				return
			}
			assert.Equal(t, "m", r.Unit)
			for k, v := range tt.wantAttrs {
				assert.Equal(t, v, r.Attributes[k], k)
			}
			assert.Equal(t, "meteorological: available", Summary(r))
		})
	}
}

func TestComposeSpectralTextAttributes(t *testing.T) {
	caps := models.NewCapabilitySet("46026", models.ProviderBuoy, models.ProductSpectralWave)
	snap := &Snapshot{Records: map[models.ProductKind]*models.Sample[[]models.Record]{
		models.ProductSpectralWave: sample(models.Record{
			Time:   fetchedAt,
			Values: map[string]float64{"WVHT": 1.5},
			Text:   map[string]string{"SwD": "WNW", "WWD": "W", "STEEPNESS": "AVERAGE"},
		}),
	}}

	readings := Compose(caps, options(models.UnitsMetric, models.TimezoneGMT, models.ProductSpectralWave), snap, nil)
	require.Len(t, readings, 1)
	r := readings[0]
	require.True(t, r.Available)
	assert.Equal(t, 1.5, *r.Value)
	assert.Equal(t, "WNW", r.Attributes["swell_direction"])
	assert.Equal(t, "W", r.Attributes["wind_wave_direction"])
	assert.Equal(t, "AVERAGE", r.Attributes["steepness"])
}

func TestComposeNilInputs(t *testing.T) {
	assert.Empty(t, Compose(nil, options(models.UnitsMetric, models.TimezoneGMT, models.ProductWind), nil, nil))

	caps := models.NewCapabilitySet("46026", models.ProviderBuoy, models.ProductWind)
	readings := Compose(caps, options(models.UnitsMetric, models.TimezoneGMT, models.ProductWind), nil, nil)
	require.Len(t, readings, 1)
	assert.False(t, readings[0].Available)
}

func TestLocation(t *testing.T) {
	noDST := &models.Station{TimeZoneOffset: -10 * 3600, TimeZoneAbbr: "HST"}
	winter := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	summer := time.Date(2024, 7, 15, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mode    models.TimezoneMode
		station *models.Station
		at      time.Time
		want    string
	}{
		{"gmt", models.TimezoneGMT, sfStation, summer, "2024-07-15T20:00:00Z"},
		{"no station", models.TimezoneLSTLDT, nil, summer, "2024-07-15T20:00:00Z"},
		{"standard time ignores dst", models.TimezoneLST, sfStation, summer, "2024-07-15T12:00:00-08:00"},
		{"daylight time in summer", models.TimezoneLSTLDT, sfStation, summer, "2024-07-15T13:00:00-07:00"},
		{"daylight mode in winter", models.TimezoneLSTLDT, sfStation, winter, "2024-01-15T12:00:00-08:00"},
		{"station without dst", models.TimezoneLSTLDT, noDST, summer, "2024-07-15T10:00:00-10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(tt.at, Location(tt.mode, tt.station)))
		})
	}

	assert.Equal(t, "", FormatTime(time.Time{}, time.UTC))
}

func TestConvert(t *testing.T) {
	v, unit := Convert(Temperature, -40, models.UnitsImperial)
	assert.Equal(t, -40.0, v)
	assert.Equal(t, "°F", unit)

	v, unit = Convert(Length, 2.5, models.UnitsMetric)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, "m", unit)

	v, _ = Convert(Length, -0.001, models.UnitsMetric)
	assert.Equal(t, 0.0, v)

	assert.Equal(t, 1.01, Round(1.005+1e-9))
}
