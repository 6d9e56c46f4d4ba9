package models

import "context"

// StationRegistry looks up station metadata by identifier. It returns a nil
// station and nil error when the registry has no such station.
type StationRegistry interface {
	LookupStation(ctx context.Context, stationID string) (*Station, error)
}
