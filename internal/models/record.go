package models

import (
	"fmt"
	"time"
)

// Well-known Record value keys. NDBC rows additionally carry their raw
// column names (WVHT, WSPD, WTMP, ...).
const (
	ValueKey     = "value"
	SpeedKey     = "speed"
	DirectionKey = "direction"
	GustKey      = "gust"
)

// Record is a normalized upstream row.
type Record struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
	Text   map[string]string  `json:"text,omitempty"`
	Type   string             `json:"type,omitempty"`
	Units  string             `json:"units,omitempty"`
	Flags  string             `json:"flags,omitempty"`
}

func (r Record) Value(key string) (float64, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// TextValue returns a non-numeric cell such as an NDBC compass point.
func (r Record) TextValue(key string) (string, bool) {
	v, ok := r.Text[key]
	return v, ok
}

// TimeRange bounds an upstream request. A zero range asks for the latest
// observation only.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func LatestRange() TimeRange {
	return TimeRange{}
}

func (r TimeRange) IsLatest() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r TimeRange) Validate() error {
	if r.IsLatest() {
		return nil
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("time range must set both start and end")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("time range end %s is not after start %s", r.End, r.Start)
	}
	return nil
}

// Around returns a window reaching back before and forward after t.
func Around(t time.Time, before, after time.Duration) TimeRange {
	return TimeRange{Start: t.Add(-before), End: t.Add(after)}
}
