package models

import (
	"fmt"
	"strings"
	"time"
)

type TideKind string

const (
	TideHigh TideKind = "HIGH"
	TideLow  TideKind = "LOW"
)

// ParseTideKind maps the CO-OPS hilo type code ("H", "L", "HH", "LL") to a TideKind.
func ParseTideKind(code string) (TideKind, error) {
	switch code {
	case "H", "HH", "h", "hh":
		return TideHigh, nil
	case "L", "LL", "l", "ll":
		return TideLow, nil
	default:
		return "", fmt.Errorf("unknown tide type code: %q", code)
	}
}

// Label returns the display form used in sensor states ("High" / "Low").
func (k TideKind) Label() string {
	if k == TideHigh {
		return "High"
	}
	return "Low"
}

type TidePhase string

const (
	TideRising  TidePhase = "RISING"
	TideFalling TidePhase = "FALLING"
)

// TideEvent is a predicted high or low water extremum.
type TideEvent struct {
	Time   time.Time `json:"time"`
	Height float64   `json:"height"`
	Kind   TideKind  `json:"kind"`
}

// InterpolationResult is the derived tide state at a query instant. It is
// recomputed on every query and never persisted.
type InterpolationResult struct {
	Phase      TidePhase     `json:"phase"`
	Factor     float64       `json:"factor"`
	Percentage float64       `json:"percentage"`
	Previous   TideEvent     `json:"previousEvent"`
	Next       TideEvent     `json:"nextEvent"`
	Following  *TideEvent    `json:"followingEvent,omitempty"`
	TimeToNext time.Duration `json:"timeToNext"`
}

type CurrentKind string

const (
	CurrentEbb   CurrentKind = "ebb"
	CurrentFlood CurrentKind = "flood"
	CurrentSlack CurrentKind = "slack"
)

// ParseCurrentKind accepts the CO-OPS MAX_SLACK type strings in any case.
func ParseCurrentKind(s string) (CurrentKind, error) {
	switch CurrentKind(strings.ToLower(strings.TrimSpace(s))) {
	case CurrentEbb:
		return CurrentEbb, nil
	case CurrentFlood:
		return CurrentFlood, nil
	case CurrentSlack:
		return CurrentSlack, nil
	default:
		return "", fmt.Errorf("unknown current type: %q", s)
	}
}

// CurrentEvent is a predicted max-flood, max-ebb or slack water event.
type CurrentEvent struct {
	Time      time.Time   `json:"time"`
	Speed     float64     `json:"speed"`
	Direction float64     `json:"direction"`
	Kind      CurrentKind `json:"kind"`
}

type CurrentInterpolationResult struct {
	State     CurrentKind  `json:"state"`
	Direction float64      `json:"direction"`
	Speed     float64      `json:"speed"`
	Previous  CurrentEvent `json:"previousEvent"`
	Next      CurrentEvent `json:"nextEvent"`
}
