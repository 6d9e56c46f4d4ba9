package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type ProviderType string

const (
	ProviderStation ProviderType = "noaa_station"
	ProviderBuoy    ProviderType = "ndbc_buoy"
)

// ProductKind is a category of data a station or buoy may expose.
type ProductKind string

const (
	ProductTidePredictions    ProductKind = "tide_predictions"
	ProductCurrentPredictions ProductKind = "currents_predictions"
	ProductWaterLevel         ProductKind = "water_level"
	ProductWaterTemperature   ProductKind = "water_temperature"
	ProductAirTemperature     ProductKind = "air_temperature"
	ProductWind               ProductKind = "wind"
	ProductPressure           ProductKind = "air_pressure"
	ProductHumidity           ProductKind = "humidity"
	ProductConductivity       ProductKind = "conductivity"
	ProductCurrents           ProductKind = "currents"
	ProductMeteorological     ProductKind = "meteorological"
	ProductSpectralWave       ProductKind = "spectral_wave"
	ProductOceanCurrent       ProductKind = "ocean_current"
)

// AllProducts lists every ProductKind in display order.
var AllProducts = []ProductKind{
	ProductTidePredictions,
	ProductCurrentPredictions,
	ProductWaterLevel,
	ProductWaterTemperature,
	ProductAirTemperature,
	ProductWind,
	ProductPressure,
	ProductHumidity,
	ProductConductivity,
	ProductCurrents,
	ProductMeteorological,
	ProductSpectralWave,
	ProductOceanCurrent,
}

var productNames = map[ProductKind]string{
	ProductTidePredictions:    "Tide Predictions",
	ProductCurrentPredictions: "Currents Predictions",
	ProductWaterLevel:         "Water Level",
	ProductWaterTemperature:   "Water Temperature",
	ProductAirTemperature:     "Air Temperature",
	ProductWind:               "Wind",
	ProductPressure:           "Barometric Pressure",
	ProductHumidity:           "Humidity",
	ProductConductivity:       "Conductivity",
	ProductCurrents:           "Currents",
	ProductMeteorological:     "Meteorological",
	ProductSpectralWave:       "Spectral Wave",
	ProductOceanCurrent:       "Ocean Current",
}

func (p ProductKind) String() string {
	return string(p)
}

// DisplayName is the human label shown during setup.
func (p ProductKind) DisplayName() string {
	if name, ok := productNames[p]; ok {
		return name
	}
	return string(p)
}

func ParseProductKind(s string) (ProductKind, error) {
	p := ProductKind(s)
	if _, ok := productNames[p]; !ok {
		return "", fmt.Errorf("unknown product: %q", s)
	}
	return p, nil
}

// CapabilitySet is the resolved set of products an identifier exposes. It is
// computed once at setup and treated as static configuration afterwards.
type CapabilitySet struct {
	Identifier   string                   `json:"identifier" dynamodbav:"identifier"`
	ProviderType ProviderType             `json:"providerType" dynamodbav:"providerType"`
	Products     map[ProductKind]struct{} `json:"-" dynamodbav:"-"`
	Station      *Station                 `json:"station,omitempty" dynamodbav:"station,omitempty"`
	ResolvedAt   time.Time                `json:"resolvedAt" dynamodbav:"resolvedAt"`
}

func NewCapabilitySet(identifier string, provider ProviderType, products ...ProductKind) *CapabilitySet {
	c := &CapabilitySet{
		Identifier:   identifier,
		ProviderType: provider,
		Products:     make(map[ProductKind]struct{}, len(products)),
	}
	for _, p := range products {
		c.Products[p] = struct{}{}
	}
	return c
}

func (c *CapabilitySet) Add(p ProductKind) {
	if c.Products == nil {
		c.Products = make(map[ProductKind]struct{})
	}
	c.Products[p] = struct{}{}
}

func (c *CapabilitySet) Has(p ProductKind) bool {
	if c == nil {
		return false
	}
	_, ok := c.Products[p]
	return ok
}

func (c *CapabilitySet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

// List returns the products in AllProducts order.
func (c *CapabilitySet) List() []ProductKind {
	if c == nil {
		return nil
	}
	out := make([]ProductKind, 0, len(c.Products))
	for _, p := range AllProducts {
		if c.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// capabilitySetJSON carries Products as a sorted list on the wire.
type capabilitySetJSON struct {
	Identifier   string        `json:"identifier"`
	ProviderType ProviderType  `json:"providerType"`
	Products     []ProductKind `json:"products"`
	Station      *Station      `json:"station,omitempty"`
	ResolvedAt   time.Time     `json:"resolvedAt"`
}

func (c CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(capabilitySetJSON{
		Identifier:   c.Identifier,
		ProviderType: c.ProviderType,
		Products:     c.List(),
		Station:      c.Station,
		ResolvedAt:   c.ResolvedAt,
	})
}

func (c *CapabilitySet) UnmarshalJSON(data []byte) error {
	var raw capabilitySetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = *NewCapabilitySet(raw.Identifier, raw.ProviderType, raw.Products...)
	c.Station = raw.Station
	c.ResolvedAt = raw.ResolvedAt
	return nil
}

// ProductNames returns the wire names of the products, sorted.
func (c *CapabilitySet) ProductNames() []string {
	names := make([]string, 0, c.Len())
	for p := range c.Products {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
