package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type TimezoneMode string

const (
	TimezoneGMT    TimezoneMode = "gmt"
	TimezoneLST    TimezoneMode = "lst"
	TimezoneLSTLDT TimezoneMode = "lst_ldt"
)

func ParseTimezoneMode(s string) (TimezoneMode, error) {
	switch m := TimezoneMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TimezoneGMT, TimezoneLST, TimezoneLSTLDT:
		return m, nil
	case "":
		return TimezoneLSTLDT, nil
	default:
		return "", fmt.Errorf("invalid timezone mode: %q", s)
	}
}

type UnitSystem string

const (
	UnitsMetric   UnitSystem = "metric"
	UnitsImperial UnitSystem = "imperial"
)

func ParseUnitSystem(s string) (UnitSystem, error) {
	switch u := UnitSystem(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitsMetric, UnitsImperial:
		return u, nil
	case "english":
		return UnitsImperial, nil
	case "":
		return UnitsMetric, nil
	default:
		return "", fmt.Errorf("invalid unit system: %q", s)
	}
}

const (
	MinUpdateInterval     = 60
	MaxUpdateInterval     = 3600
	DefaultUpdateInterval = 300
)

// Options is the resolved per-instance configuration chosen during setup.
type Options struct {
	Name                  string                   `json:"name" dynamodbav:"name"`
	TimezoneMode          TimezoneMode             `json:"timezoneMode" dynamodbav:"timezoneMode"`
	UnitSystem            UnitSystem               `json:"unitSystem" dynamodbav:"unitSystem"`
	UpdateIntervalSeconds int                      `json:"updateIntervalSeconds" dynamodbav:"updateIntervalSeconds"`
	EnabledSensors        map[ProductKind]struct{} `json:"-" dynamodbav:"-"`
}

// OptionsError reports which option failed validation.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Message)
}

func (o *Options) Validate() error {
	switch o.TimezoneMode {
	case TimezoneGMT, TimezoneLST, TimezoneLSTLDT:
	default:
		return &OptionsError{Field: "timezone_mode", Message: fmt.Sprintf("unknown mode %q", o.TimezoneMode)}
	}

	switch o.UnitSystem {
	case UnitsMetric, UnitsImperial:
	default:
		return &OptionsError{Field: "unit_system", Message: fmt.Sprintf("unknown unit system %q", o.UnitSystem)}
	}

	if o.UpdateIntervalSeconds < MinUpdateInterval || o.UpdateIntervalSeconds > MaxUpdateInterval {
		return &OptionsError{
			Field:   "update_interval",
			Message: fmt.Sprintf("%d not in [%d,%d]", o.UpdateIntervalSeconds, MinUpdateInterval, MaxUpdateInterval),
		}
	}

	if len(o.EnabledSensors) == 0 {
		return &OptionsError{Field: "sensors", Message: "at least one sensor must be enabled"}
	}
	return nil
}

func (o *Options) Enabled(p ProductKind) bool {
	_, ok := o.EnabledSensors[p]
	return ok
}

// SensorList returns the enabled sensors in AllProducts order.
func (o *Options) SensorList() []ProductKind {
	out := make([]ProductKind, 0, len(o.EnabledSensors))
	for _, p := range AllProducts {
		if o.Enabled(p) {
			out = append(out, p)
		}
	}
	return out
}

func SensorSet(products ...ProductKind) map[ProductKind]struct{} {
	set := make(map[ProductKind]struct{}, len(products))
	for _, p := range products {
		set[p] = struct{}{}
	}
	return set
}

type optionsJSON struct {
	Name                  string        `json:"name"`
	TimezoneMode          TimezoneMode  `json:"timezoneMode"`
	UnitSystem            UnitSystem    `json:"unitSystem"`
	UpdateIntervalSeconds int           `json:"updateIntervalSeconds"`
	EnabledSensors        []ProductKind `json:"enabledSensors"`
}

func (o Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(optionsJSON{
		Name:                  o.Name,
		TimezoneMode:          o.TimezoneMode,
		UnitSystem:            o.UnitSystem,
		UpdateIntervalSeconds: o.UpdateIntervalSeconds,
		EnabledSensors:        o.SensorList(),
	})
}

func (o *Options) UnmarshalJSON(data []byte) error {
	var raw optionsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Name = raw.Name
	o.TimezoneMode = raw.TimezoneMode
	o.UnitSystem = raw.UnitSystem
	o.UpdateIntervalSeconds = raw.UpdateIntervalSeconds
	o.EnabledSensors = SensorSet(raw.EnabledSensors...)
	return nil
}
