package compose

import (
	"fmt"
	"math"
	"time"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/tide"
)

// Snapshot is everything the collector knows about one instance at Now.
// Records hold the newest-first rows of each observed product; Tide and
// Current are interpolated for Now and are nil when no valid window exists.
type Snapshot struct {
	Now     time.Time
	Records map[models.ProductKind]*models.Sample[[]models.Record]
	Tide    *models.Sample[*models.InterpolationResult]
	Current *models.Sample[*models.CurrentInterpolationResult]
}

// field maps a record value onto a reading attribute.
type field struct {
	key       string
	attribute string
	quantity  Quantity
}

// textField maps a non-numeric record cell onto a reading attribute.
type textField struct {
	key       string
	attribute string
}

// sensor describes how one product turns into a reading. When optional is
// set the reading stays available without its primary value as long as some
// attribute is present.
type sensor struct {
	primary    field
	optional   bool
	attributes []field
	text       []textField
	cardinal   string
}

var sensors = map[models.ProductKind]sensor{
	models.ProductWaterLevel:       {primary: field{key: models.ValueKey, quantity: Length}},
	models.ProductWaterTemperature: {primary: field{key: models.ValueKey, quantity: Temperature}},
	models.ProductAirTemperature:   {primary: field{key: models.ValueKey, quantity: Temperature}},
	models.ProductPressure:         {primary: field{key: models.ValueKey, quantity: Pressure}},
	models.ProductHumidity:         {primary: field{key: models.ValueKey, quantity: Percent}},
	models.ProductConductivity:     {primary: field{key: models.ValueKey, quantity: Conductivity}},
	models.ProductWind: {
		primary: field{key: models.SpeedKey, quantity: WindSpeed},
		attributes: []field{
			{models.DirectionKey, "direction", Direction},
			{models.GustKey, "gust", WindSpeed},
		},
		cardinal: models.DirectionKey,
	},
	models.ProductCurrents: {
		primary: field{key: models.SpeedKey, quantity: CurrentSpeed},
		attributes: []field{
			{models.DirectionKey, "direction", Direction},
		},
		cardinal: models.DirectionKey,
	},
	models.ProductMeteorological: {
		primary:  field{key: "WVHT", quantity: Length},
		optional: true,
		attributes: []field{
			{"DPD", "dominant_period", Period},
			{"APD", "average_period", Period},
			{"MWD", "mean_wave_direction", Direction},
			{"WSPD", "wind_speed", WindSpeed},
			{"WDIR", "wind_direction", Direction},
			{"GST", "wind_gust", WindSpeed},
			{"PRES", "pressure", Pressure},
			{"ATMP", "air_temperature", Temperature},
			{"WTMP", "water_temperature", Temperature},
			{"DEWP", "dew_point", Temperature},
			{"PTDY", "pressure_tendency", Pressure},
			{"TIDE", "tide", Length},
		},
	},
	models.ProductSpectralWave: {
		primary: field{key: "WVHT", quantity: Length},
		attributes: []field{
			{"SwH", "swell_height", Length},
			{"SwP", "swell_period", Period},
			{"WWH", "wind_wave_height", Length},
			{"WWP", "wind_wave_period", Period},
			{"APD", "average_period", Period},
			{"MWD", "mean_wave_direction", Direction},
		},
		text: []textField{
			{"SwD", "swell_direction"},
			{"WWD", "wind_wave_direction"},
			{"STEEPNESS", "steepness"},
		},
	},
	models.ProductOceanCurrent: {
		primary: field{key: models.SpeedKey, quantity: CurrentSpeed},
		attributes: []field{
			{models.DirectionKey, "direction", Direction},
			{"DEP01", "depth", Length},
		},
		cardinal: models.DirectionKey,
	},
}

// Compose builds the exposed readings for every product that is both in caps
// and enabled in opts, in display order. It never fetches or interpolates;
// an enabled sensor with nothing to show is returned unavailable.
func Compose(caps *models.CapabilitySet, opts models.Options, snap *Snapshot, station *models.Station) []models.Reading {
	if snap == nil {
		snap = &Snapshot{}
	}
	if station == nil && caps != nil {
		station = caps.Station
	}
	loc := Location(opts.TimezoneMode, station)

	var out []models.Reading
	for _, product := range caps.List() {
		if !opts.Enabled(product) {
			continue
		}

		reading := models.Reading{
			Key:  product,
			Name: readingName(opts.Name, product),
		}
		switch product {
		case models.ProductTidePredictions:
			composeTide(&reading, snap.Tide, opts.UnitSystem, loc)
		case models.ProductCurrentPredictions:
			composeCurrent(&reading, snap.Current, opts.UnitSystem, loc)
		default:
			composeObservation(&reading, sensors[product], snap.Records[product], opts.UnitSystem, loc)
		}
		out = append(out, reading)
	}
	return out
}

func readingName(name string, product models.ProductKind) string {
	if name == "" {
		return product.DisplayName()
	}
	return name + " " + product.DisplayName()
}

func composeObservation(r *models.Reading, s sensor, sample *models.Sample[[]models.Record], units models.UnitSystem, loc *time.Location) {
	if sample == nil || len(sample.Value) == 0 {
		return
	}
	rec := sample.Value[0]

	attrs := make(map[string]any)
	for _, f := range s.attributes {
		if v, ok := rec.Value(f.key); ok {
			converted, _ := Convert(f.quantity, v, units)
			attrs[f.attribute] = converted
		}
	}
	for _, f := range s.text {
		if v, ok := rec.TextValue(f.key); ok {
			attrs[f.attribute] = v
		}
	}

	raw, ok := rec.Value(s.primary.key)
	if !ok && (!s.optional || len(attrs) == 0) {
		return
	}
	if ok {
		value, unit := Convert(s.primary.quantity, raw, units)
		r.Value = &value
		r.Unit = unit
	} else {
		_, r.Unit = Convert(s.primary.quantity, 0, units)
	}

	r.Available = true
	r.Stale = sample.Stale
	r.FetchedAt = sample.FetchedAt
	r.Attributes = attrs
	r.Attributes["observed_at"] = FormatTime(rec.Time, loc)
	if s.cardinal != "" {
		if deg, ok := rec.Value(s.cardinal); ok {
			r.Attributes["direction_cardinal"] = tide.Cardinal(deg)
		}
	}
	if rec.Flags != "" {
		r.Attributes["flags"] = rec.Flags
	}
	if sample.Stale {
		r.Attributes["stale_since"] = FormatTime(sample.FetchedAt, loc)
	}
}

func composeTide(r *models.Reading, sample *models.Sample[*models.InterpolationResult], units models.UnitSystem, loc *time.Location) {
	if sample == nil || sample.Value == nil {
		return
	}
	res := sample.Value

	factor := Round(res.Factor)
	r.Value = &factor
	r.Unit = "%"
	r.State = tide.StateLabel(res, loc)
	r.Available = true
	r.Stale = sample.Stale
	r.FetchedAt = sample.FetchedAt
	r.Attributes = map[string]any{
		"previous_event":       tideEvent(res.Previous, units, loc),
		"next_event":           tideEvent(res.Next, units, loc),
		"factor":               factor,
		"percentage":           Round(res.Percentage),
		"phase":                phaseLabel(res.Phase),
		"time_to_next_minutes": int(math.Round(res.TimeToNext.Minutes())),
	}
	if res.Following != nil {
		r.Attributes["following_event"] = tideEvent(*res.Following, units, loc)
	}
}

func tideEvent(e models.TideEvent, units models.UnitSystem, loc *time.Location) map[string]any {
	level, unit := Convert(Length, e.Height, units)
	return map[string]any{
		"type":  e.Kind.Label(),
		"time":  FormatTime(e.Time, loc),
		"level": level,
		"unit":  unit,
	}
}

func phaseLabel(p models.TidePhase) string {
	if p == models.TideRising {
		return "rising"
	}
	return "falling"
}

func composeCurrent(r *models.Reading, sample *models.Sample[*models.CurrentInterpolationResult], units models.UnitSystem, loc *time.Location) {
	if sample == nil || sample.Value == nil {
		return
	}
	res := sample.Value

	speed, unit := Convert(CurrentSpeed, res.Speed, units)
	direction := Round(res.Direction)
	r.Value = &speed
	r.Unit = unit
	r.State = string(res.State)
	r.Available = true
	r.Stale = sample.Stale
	r.FetchedAt = sample.FetchedAt
	r.Attributes = map[string]any{
		"state":              string(res.State),
		"direction":          direction,
		"direction_cardinal": tide.Cardinal(res.Direction),
		"speed":              speed,
		"previous_event":     currentEvent(res.Previous, units, loc),
		"next_event":         currentEvent(res.Next, units, loc),
	}
}

func currentEvent(e models.CurrentEvent, units models.UnitSystem, loc *time.Location) map[string]any {
	speed, unit := Convert(CurrentSpeed, e.Speed, units)
	return map[string]any{
		"type":      string(e.Kind),
		"time":      FormatTime(e.Time, loc),
		"speed":     speed,
		"unit":      unit,
		"direction": Round(e.Direction),
	}
}

// Summary renders a reading for logs and the CLI.
func Summary(r models.Reading) string {
	if r.Stale {
		r.Stale = false
		return Summary(r) + " (stale)"
	}
	switch {
	case !r.Available:
		return fmt.Sprintf("%s: unavailable", r.Key)
	case r.State != "" && r.Value != nil:
		return fmt.Sprintf("%s: %s (%.2f %s)", r.Key, r.State, *r.Value, r.Unit)
	case r.Value != nil:
		return fmt.Sprintf("%s: %.2f %s", r.Key, *r.Value, r.Unit)
	case r.State == "":
		return fmt.Sprintf("%s: available", r.Key)
	default:
		return fmt.Sprintf("%s: %s", r.Key, r.State)
	}
}
