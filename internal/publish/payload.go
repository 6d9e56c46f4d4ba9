package publish

import (
	"time"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

type statePayload struct {
	Value      *float64       `json:"value"`
	State      string         `json:"state,omitempty"`
	Unit       string         `json:"unit,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Stale      bool           `json:"stale"`
	FetchedAt  string         `json:"fetched_at,omitempty"`
}

func newStatePayload(r models.Reading) statePayload {
	p := statePayload{
		Value:      r.Value,
		State:      r.State,
		Unit:       r.Unit,
		Attributes: r.Attributes,
		Stale:      r.Stale,
	}
	if !r.FetchedAt.IsZero() {
		p.FetchedAt = r.FetchedAt.UTC().Format(time.RFC3339)
	}
	return p
}

type device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type discoveryConfig struct {
	Name               string `json:"name"`
	UniqueID           string `json:"unique_id"`
	StateTopic         string `json:"state_topic"`
	ValueTemplate      string `json:"value_template"`
	AttributesTopic    string `json:"json_attributes_topic"`
	AttributesTemplate string `json:"json_attributes_template"`
	AvailabilityTopic  string `json:"availability_topic"`
	UnitOfMeasurement  string `json:"unit_of_measurement,omitempty"`
	DeviceClass        string `json:"device_class,omitempty"`
	StateClass         string `json:"state_class,omitempty"`
	Icon               string `json:"icon,omitempty"`
	Device             device `json:"device"`
}

// deviceClasses maps products onto Home Assistant sensor device classes.
var deviceClasses = map[models.ProductKind]string{
	models.ProductWaterLevel:       "distance",
	models.ProductWaterTemperature: "temperature",
	models.ProductAirTemperature:   "temperature",
	models.ProductWind:             "wind_speed",
	models.ProductPressure:         "atmospheric_pressure",
	models.ProductHumidity:         "humidity",
	models.ProductMeteorological:   "distance",
	models.ProductSpectralWave:     "distance",
}

var icons = map[models.ProductKind]string{
	models.ProductTidePredictions:    "mdi:waves",
	models.ProductCurrentPredictions: "mdi:waves-arrow-right",
	models.ProductCurrents:           "mdi:waves-arrow-right",
	models.ProductOceanCurrent:       "mdi:waves-arrow-right",
	models.ProductConductivity:       "mdi:flash",
	models.ProductMeteorological:     "mdi:wave",
	models.ProductSpectralWave:       "mdi:wave",
}

func (p *Publisher) discoveryConfig(entry *models.ConfigEntry, node string, r models.Reading) discoveryConfig {
	state := p.stateTopic(node, r.Key)

	manufacturer, model := "NOAA CO-OPS", "Tides and Currents station"
	if entry.Capabilities.ProviderType == models.ProviderBuoy {
		manufacturer, model = "NOAA NDBC", "Buoy"
	}

	cfg := discoveryConfig{
		Name:               r.Name,
		UniqueID:           node + "_" + string(r.Key),
		StateTopic:         state,
		ValueTemplate:      "{{ value_json.value }}",
		AttributesTopic:    state,
		AttributesTemplate: "{{ value_json.attributes | tojson }}",
		AvailabilityTopic:  p.availabilityTopic(node, r.Key),
		UnitOfMeasurement:  r.Unit,
		DeviceClass:        deviceClasses[r.Key],
		StateClass:         "measurement",
		Icon:               icons[r.Key],
		Device: device{
			Identifiers:  []string{node},
			Name:         entry.Options.Name,
			Manufacturer: manufacturer,
			Model:        model,
		},
	}
	// tide and current readings carry a text state alongside the number
	if r.Key == models.ProductTidePredictions || r.Key == models.ProductCurrentPredictions {
		cfg.ValueTemplate = "{{ value_json.state }}"
		cfg.UnitOfMeasurement = ""
		cfg.StateClass = ""
	}
	return cfg
}
