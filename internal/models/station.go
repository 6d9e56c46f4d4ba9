package models

import (
	"fmt"
	"time"
)

type Source string

const (
	SourceNOAA Source = "NOAA"
	SourceNDBC Source = "NDBC"
)

// Station is registry metadata for a CO-OPS station or NDBC buoy.
type Station struct {
	ID             string  `json:"id" dynamodbav:"id"`
	Name           string  `json:"name" dynamodbav:"name"`
	State          *string `json:"state,omitempty" dynamodbav:"state,omitempty"`
	Latitude       float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude      float64 `json:"longitude" dynamodbav:"longitude"`
	Source         Source  `json:"source" dynamodbav:"source"`
	TimeZoneOffset int     `json:"timeZoneOffset" dynamodbav:"timeZoneOffset"`
	TimeZoneAbbr   string  `json:"timeZoneAbbr,omitempty" dynamodbav:"timeZoneAbbr,omitempty"`
	ObservesDST    bool    `json:"observesDst" dynamodbav:"observesDst"`
	StationType    *string `json:"stationType,omitempty" dynamodbav:"stationType,omitempty"`
}

func (s *Station) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("station ID is required")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", s.Longitude)
	}
	if s.TimeZoneOffset < -14*3600 || s.TimeZoneOffset > 14*3600 {
		return fmt.Errorf("invalid timezone offset: %d", s.TimeZoneOffset)
	}
	switch s.Source {
	case SourceNOAA, SourceNDBC:
	default:
		return fmt.Errorf("invalid source: %s", s.Source)
	}
	return nil
}

// StandardLocation is the station's fixed standard-time offset.
func (s *Station) StandardLocation() *time.Location {
	name := s.TimeZoneAbbr
	if name == "" {
		name = "LST"
	}
	return time.FixedZone(name, s.TimeZoneOffset)
}
