package models

import "time"

// Reading is one exposed sensor value for a configured instance.
type Reading struct {
	Key        ProductKind    `json:"key"`
	Name       string         `json:"name"`
	Value      *float64       `json:"value,omitempty"`
	State      string         `json:"state,omitempty"`
	Unit       string         `json:"unit,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Available  bool           `json:"available"`
	Stale      bool           `json:"stale"`
	FetchedAt  time.Time      `json:"fetchedAt,omitempty"`
}

// Sample holds the last-good value of a fetch along with when it was fetched.
// Stale is set when the most recent refresh failed and Value is carried over.
type Sample[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
}

func NewSample[T any](v T, fetchedAt time.Time) *Sample[T] {
	return &Sample[T]{Value: v, FetchedAt: fetchedAt}
}

// MarkStale returns a copy of s flagged as stale. A nil sample stays nil.
func (s *Sample[T]) MarkStale() *Sample[T] {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Stale = true
	return &cp
}
