package station

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/pkg/http/client"
)

const stationsPath = "/mdapi/prod/webapi/stations/"

// NOAARegistry looks up CO-OPS station metadata through the metadata API,
// with an optional cache in front.
type NOAARegistry struct {
	httpClient client.Interface
	cache      *cache.StationCache
}

var _ models.StationRegistry = (*NOAARegistry)(nil)

func NewNOAARegistry(httpClient client.Interface, stationCache *cache.StationCache) *NOAARegistry {
	return &NOAARegistry{
		httpClient: httpClient,
		cache:      stationCache,
	}
}

type mdapiStation struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	State          string          `json:"state"`
	Lat            float64         `json:"lat"`
	Lng            float64         `json:"lng"`
	TimeZone       string          `json:"timezone"`
	TimeZoneCorr   json.RawMessage `json:"timezonecorr"`
	TimeZoneOffset json.RawMessage `json:"timezone_offset"`
	ObservesDST    bool            `json:"observedst"`
	Type           string          `json:"type"`
}

type mdapiResponse struct {
	Count    int            `json:"count"`
	Stations []mdapiStation `json:"stations"`
}

// LookupStation returns nil, nil when NOAA has no such station.
func (r *NOAARegistry) LookupStation(ctx context.Context, stationID string) (*models.Station, error) {
	if r.cache != nil {
		s, err := r.cache.GetStation(ctx, stationID)
		if err != nil {
			log.Warn().Err(err).Str("station_id", stationID).Msg("Station cache lookup failed")
		} else if s != nil {
			log.Debug().Str("station_id", stationID).Msg("Station cache HIT")
			return s, nil
		}
	}

	path := stationsPath + url.PathEscape(stationID) + ".json"
	if isCurrentStation(stationID) {
		path += "?type=currentpredictions"
	}

	resp, err := r.httpClient.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching station %s: %w", stationID, err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching station %s: unexpected status %d", stationID, resp.StatusCode)
	}

	var body mdapiResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decoding station %s: %w", stationID, err)
	}
	if len(body.Stations) == 0 {
		return nil, nil
	}

	s := toStation(stationID, body.Stations[0])
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("station %s metadata: %w", stationID, err)
	}

	if r.cache != nil {
		if err := r.cache.SaveStation(ctx, s); err != nil {
			log.Error().Err(err).Str("station_id", stationID).Msg("Failed to cache station")
		}
	}
	return s, nil
}

func toStation(requested string, m mdapiStation) *models.Station {
	id := m.ID
	if id == "" {
		id = requested
	}

	s := &models.Station{
		ID:             id,
		Name:           m.Name,
		Latitude:       m.Lat,
		Longitude:      m.Lng,
		Source:         models.SourceNOAA,
		TimeZoneOffset: parseTimeZoneOffset(m.TimeZoneCorr, m.TimeZoneOffset),
		TimeZoneAbbr:   strings.TrimSpace(m.TimeZone),
		ObservesDST:    m.ObservesDST,
	}
	if m.State != "" {
		state := m.State
		s.State = &state
	}
	if m.Type != "" {
		stationType := m.Type
		s.StationType = &stationType
	}
	return s
}

// parseTimeZoneOffset converts the first usable hour offset to seconds. The
// metadata API sends it as a number or a quoted string depending on the
// station type.
func parseTimeZoneOffset(candidates ...json.RawMessage) int {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		text := strings.Trim(string(raw), `"`)
		hours, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			continue
		}
		return int(hours * 3600)
	}
	return 0
}
