package station

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/pkg/http/client"
)

const sanFranciscoJSON = `{
	"count": 1,
	"units": null,
	"stations": [{
		"state": "CA",
		"tidal": true,
		"greatlakes": false,
		"shefcode": "FTPC1",
		"timezone": "PST",
		"timezonecorr": -8,
		"observedst": true,
		"id": "9414290",
		"name": "San Francisco",
		"lat": 37.806302,
		"lng": -122.465592,
		"type": "R"
	}]
}`

const currentStationJSON = `{
	"count": 1,
	"stations": [{
		"id": "SFB1201",
		"name": "Golden Gate Bridge",
		"lat": 37.8105,
		"lng": -122.4778,
		"timezone_offset": "-8",
		"type": "H"
	}]
}`

func newRegistryServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/mdapi/prod/webapi/stations/9414290.json":
			_, _ = w.Write([]byte(sanFranciscoJSON))
		case "/mdapi/prod/webapi/stations/SFB1201.json":
			assert.Equal(t, "currentpredictions", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte(currentStationJSON))
		case "/mdapi/prod/webapi/stations/0000001.json":
			_, _ = w.Write([]byte(`{"count": 0, "stations": []}`))
		case "/mdapi/prod/webapi/stations/5555555.json":
			w.WriteHeader(http.StatusInternalServerError)
		case "/mdapi/prod/webapi/stations/7777777.json":
			_, _ = w.Write([]byte(`{"stations": [`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorMsg": "No station found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRegistry(t *testing.T, stationCache *cache.StationCache) (*NOAARegistry, *int32) {
	t.Helper()
	var hits int32
	server := newRegistryServer(t, &hits)
	httpClient := client.New(client.Options{BaseURL: server.URL, Timeout: 2 * time.Second, MaxRetries: -1})
	return NewNOAARegistry(httpClient, stationCache), &hits
}

func TestLookupStation(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	ctx := context.Background()

	s, err := registry.LookupStation(ctx, "9414290")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "San Francisco", s.Name)
	assert.Equal(t, "CA", *s.State)
	assert.Equal(t, -8*3600, s.TimeZoneOffset)
	assert.Equal(t, "PST", s.TimeZoneAbbr)
	assert.True(t, s.ObservesDST)
	assert.Equal(t, models.SourceNOAA, s.Source)
	assert.InDelta(t, -122.465592, s.Longitude, 1e-9)
	assert.Equal(t, "R", *s.StationType)

	current, err := registry.LookupStation(ctx, "SFB1201")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, -8*3600, current.TimeZoneOffset)
	assert.False(t, current.ObservesDST)
	assert.Nil(t, current.State)
}

func TestLookupStationMisses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "404", id: "1234567"},
		{name: "empty station list", id: "0000001"},
		{name: "server error", id: "5555555", wantErr: true},
		{name: "bad json", id: "7777777", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			registry, _ := newTestRegistry(t, nil)

			s, err := registry.LookupStation(context.Background(), tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.id))
				return
			}
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestLookupStationUsesCache(t *testing.T) {
	stationCache, err := cache.NewStationCache(&config.CacheConfig{StationLRUSize: 10, StationLRUTTLHours: 1}, nil)
	require.NoError(t, err)
	registry, hits := newTestRegistry(t, stationCache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := registry.LookupStation(ctx, "9414290")
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// misses are not cached
	for i := 0; i < 2; i++ {
		s, err := registry.LookupStation(ctx, "1234567")
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestParseTimeZoneOffset(t *testing.T) {
	assert.Equal(t, -5*3600, parseTimeZoneOffset([]byte("-5")))
	assert.Equal(t, -10*3600, parseTimeZoneOffset([]byte(`"-10"`)))
	assert.Equal(t, 9*3600+1800, parseTimeZoneOffset([]byte("9.5")))
	assert.Equal(t, 3*3600, parseTimeZoneOffset(nil, []byte("null"), []byte(`"3"`)))
	assert.Equal(t, 0, parseTimeZoneOffset([]byte(`"n/a"`)))
}
