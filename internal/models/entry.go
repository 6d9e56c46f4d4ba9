package models

import (
	"fmt"
	"time"
)

// ConfigEntry is the persisted output of the setup flow.
type ConfigEntry struct {
	ID           string        `json:"id"`
	Identifier   string        `json:"identifier"`
	Capabilities CapabilitySet `json:"capabilities"`
	Options      Options       `json:"options"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (e *ConfigEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry ID is required")
	}
	if e.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if e.Capabilities.Len() == 0 {
		return fmt.Errorf("entry %s has no capabilities", e.ID)
	}
	if err := e.Options.Validate(); err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	for _, p := range e.Options.SensorList() {
		if !e.Capabilities.Has(p) {
			return fmt.Errorf("entry %s enables %s which is not a capability", e.ID, p)
		}
	}
	return nil
}

// ConfigEntryRecord is the flat DynamoDB item form of a ConfigEntry.
type ConfigEntryRecord struct {
	ID                    string   `dynamodbav:"id"`
	Identifier            string   `dynamodbav:"identifier"`
	ProviderType          string   `dynamodbav:"providerType"`
	Products              []string `dynamodbav:"products"`
	Station               *Station `dynamodbav:"station,omitempty"`
	ResolvedAt            int64    `dynamodbav:"resolvedAt"`
	Name                  string   `dynamodbav:"name"`
	TimezoneMode          string   `dynamodbav:"timezoneMode"`
	UnitSystem            string   `dynamodbav:"unitSystem"`
	UpdateIntervalSeconds int      `dynamodbav:"updateIntervalSeconds"`
	EnabledSensors        []string `dynamodbav:"enabledSensors"`
	CreatedAt             int64    `dynamodbav:"createdAt"`
}

func (e *ConfigEntry) ToRecord() ConfigEntryRecord {
	sensors := make([]string, 0, len(e.Options.EnabledSensors))
	for _, p := range e.Options.SensorList() {
		sensors = append(sensors, string(p))
	}
	return ConfigEntryRecord{
		ID:                    e.ID,
		Identifier:            e.Identifier,
		ProviderType:          string(e.Capabilities.ProviderType),
		Products:              e.Capabilities.ProductNames(),
		Station:               e.Capabilities.Station,
		ResolvedAt:            e.Capabilities.ResolvedAt.Unix(),
		Name:                  e.Options.Name,
		TimezoneMode:          string(e.Options.TimezoneMode),
		UnitSystem:            string(e.Options.UnitSystem),
		UpdateIntervalSeconds: e.Options.UpdateIntervalSeconds,
		EnabledSensors:        sensors,
		CreatedAt:             e.CreatedAt.Unix(),
	}
}

func (r ConfigEntryRecord) ToEntry() (*ConfigEntry, error) {
	caps := NewCapabilitySet(r.Identifier, ProviderType(r.ProviderType))
	for _, name := range r.Products {
		p, err := ParseProductKind(name)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.ID, err)
		}
		caps.Add(p)
	}
	caps.Station = r.Station
	caps.ResolvedAt = time.Unix(r.ResolvedAt, 0).UTC()

	sensors := make([]ProductKind, 0, len(r.EnabledSensors))
	for _, name := range r.EnabledSensors {
		p, err := ParseProductKind(name)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.ID, err)
		}
		sensors = append(sensors, p)
	}

	return &ConfigEntry{
		ID:           r.ID,
		Identifier:   r.Identifier,
		Capabilities: *caps,
		Options: Options{
			Name:                  r.Name,
			TimezoneMode:          TimezoneMode(r.TimezoneMode),
			UnitSystem:            UnitSystem(r.UnitSystem),
			UpdateIntervalSeconds: r.UpdateIntervalSeconds,
			EnabledSensors:        SensorSet(sensors...),
		},
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}, nil
}
