package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/tide"
	"github.com/bbernstein/flowebb/tidesensors/pkg/http/client"
)

const (
	DefaultNOAABaseURL = "https://api.tidesandcurrents.noaa.gov"
	datagetterPath     = "/api/prod/datagetter"
	noaaTimeLayout     = "2006-01-02 15:04"
	noaaDateLayout     = "20060102 15:04"
	applicationName    = "tidesensors"
)

// noaaProducts maps each ProductKind to its CO-OPS datagetter product name.
var noaaProducts = map[models.ProductKind]string{
	models.ProductTidePredictions:    "predictions",
	models.ProductCurrentPredictions: "currents_predictions",
	models.ProductWaterLevel:         "water_level",
	models.ProductWaterTemperature:   "water_temperature",
	models.ProductAirTemperature:     "air_temperature",
	models.ProductWind:               "wind",
	models.ProductPressure:           "air_pressure",
	models.ProductHumidity:           "relative_humidity",
	models.ProductConductivity:       "conductivity",
	models.ProductCurrents:           "currents",
}

var noaaUnits = map[models.ProductKind]string{
	models.ProductTidePredictions:    "m",
	models.ProductCurrentPredictions: "cm/s",
	models.ProductWaterLevel:         "m",
	models.ProductWaterTemperature:   "°C",
	models.ProductAirTemperature:     "°C",
	models.ProductWind:               "m/s",
	models.ProductPressure:           "hPa",
	models.ProductHumidity:           "%",
	models.ProductConductivity:       "mS/cm",
	models.ProductCurrents:           "cm/s",
}

// NOAAClient fetches CO-OPS datagetter products. All requests ask for GMT
// timestamps and metric units.
type NOAAClient struct {
	httpClient client.Interface
}

func NewNOAAClient(httpClient client.Interface) *NOAAClient {
	return &NOAAClient{httpClient: httpClient}
}

func (c *NOAAClient) Provider() models.ProviderType {
	return models.ProviderStation
}

func (c *NOAAClient) Products() []models.ProductKind {
	out := make([]models.ProductKind, 0, len(noaaProducts))
	for _, p := range models.AllProducts {
		if _, ok := noaaProducts[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *NOAAClient) Fetch(ctx context.Context, stationID string, product models.ProductKind, r models.TimeRange) ([]models.Record, error) {
	name, ok := noaaProducts[product]
	if !ok {
		return nil, c.errorf(stationID, product, KindNotFound, 0, "product not offered by CO-OPS", nil)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", product, stationID, err)
	}

	path := datagetterPath + "?" + c.query(stationID, product, name, r).Encode()
	resp, err := c.httpClient.Get(ctx, path)
	if err != nil {
		return nil, c.errorf(stationID, product, kindForTransport(err), 0, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorf(stationID, product, kindForStatus(resp.StatusCode), resp.StatusCode, "", nil)
	}

	log.Debug().
		Str("station_id", stationID).
		Str("product", name).
		Int("bytes", len(resp.Body)).
		Msg("Fetched data from NOAA")

	records, err := c.decode(product, resp.Body)
	if err != nil {
		return nil, c.classify(stationID, product, err)
	}
	return records, nil
}

func (c *NOAAClient) query(stationID string, product models.ProductKind, name string, r models.TimeRange) url.Values {
	params := url.Values{}
	params.Set("station", stationID)
	params.Set("product", name)
	params.Set("time_zone", "gmt")
	params.Set("units", "metric")
	params.Set("format", "json")
	params.Set("application", applicationName)

	switch product {
	case models.ProductTidePredictions:
		params.Set("datum", "MLLW")
		params.Set("interval", "hilo")
	case models.ProductWaterLevel:
		params.Set("datum", "MLLW")
	case models.ProductCurrentPredictions:
		params.Set("interval", "MAX_SLACK")
	}

	switch {
	case !r.IsLatest():
		params.Set("begin_date", r.Start.UTC().Format(noaaDateLayout))
		params.Set("end_date", r.End.UTC().Format(noaaDateLayout))
	case product == models.ProductTidePredictions || product == models.ProductCurrentPredictions:
		params.Set("date", "today")
	default:
		params.Set("date", "latest")
	}
	return params
}

// noaaError is the body CO-OPS returns with a 200 status when a request
// cannot be served.
type noaaError struct {
	Message string `json:"message"`
}

type noaaObservation struct {
	Time      string    `json:"t"`
	Value     noaaFloat `json:"v"`
	Speed     noaaFloat `json:"s"`
	Direction noaaFloat `json:"d"`
	Gust      noaaFloat `json:"g"`
	Bin       string    `json:"b"`
	Flags     string    `json:"f"`
}

type noaaPrediction struct {
	Time  string    `json:"t"`
	Value noaaFloat `json:"v"`
	Type  string    `json:"type"`
}

type noaaCurrentPrediction struct {
	Time          string    `json:"Time"`
	Type          string    `json:"Type"`
	VelocityMajor noaaFloat `json:"Velocity_Major"`
	MeanFloodDir  noaaFloat `json:"meanFloodDir"`
	MeanEbbDir    noaaFloat `json:"meanEbbDir"`
	Depth         noaaFloat `json:"Depth"`
}

type noaaResponse struct {
	Error              *noaaError        `json:"error"`
	Data               []noaaObservation `json:"data"`
	Predictions        []noaaPrediction  `json:"predictions"`
	CurrentPredictions *struct {
		Predictions []noaaCurrentPrediction `json:"cp"`
	} `json:"current_predictions"`
}

type decodeError struct {
	kind ErrorKind
	msg  string
	err  error
}

func (e *decodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (c *NOAAClient) decode(product models.ProductKind, body []byte) ([]models.Record, error) {
	var resp noaaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &decodeError{kind: KindMalformedResponse, msg: "decoding response", err: err}
	}
	if resp.Error != nil {
		return nil, &decodeError{kind: noaaErrorKind(resp.Error.Message), msg: resp.Error.Message}
	}

	unit := noaaUnits[product]
	switch product {
	case models.ProductTidePredictions:
		return decodePredictions(resp.Predictions, unit)
	case models.ProductCurrentPredictions:
		if resp.CurrentPredictions == nil {
			return nil, &decodeError{kind: KindMalformedResponse, msg: "missing current_predictions"}
		}
		return decodeCurrentPredictions(resp.CurrentPredictions.Predictions, unit)
	default:
		return decodeObservations(product, resp.Data, unit)
	}
}

func decodePredictions(rows []noaaPrediction, unit string) ([]models.Record, error) {
	records := make([]models.Record, 0, len(rows))
	for _, p := range rows {
		t, err := parseNOAATime(p.Time)
		if err != nil {
			return nil, err
		}
		if !p.Value.Valid {
			continue
		}
		kind, err := models.ParseTideKind(p.Type)
		if err != nil {
			return nil, &decodeError{kind: KindMalformedResponse, msg: "parsing prediction type", err: err}
		}
		records = append(records, models.Record{
			Time:   t,
			Values: map[string]float64{models.ValueKey: p.Value.Value},
			Type:   string(kind),
			Units:  unit,
		})
	}
	return records, nil
}

func decodeCurrentPredictions(rows []noaaCurrentPrediction, unit string) ([]models.Record, error) {
	records := make([]models.Record, 0, len(rows))
	for _, p := range rows {
		t, err := parseNOAATime(p.Time)
		if err != nil {
			return nil, err
		}
		velocity := p.VelocityMajor.Value

		var kind models.CurrentKind
		if p.Type != "" {
			kind, err = models.ParseCurrentKind(p.Type)
			if err != nil {
				return nil, &decodeError{kind: KindMalformedResponse, msg: "parsing current type", err: err}
			}
		} else {
			kind = tide.ClassifyVelocity(velocity)
		}

		direction := 0.0
		switch kind {
		case models.CurrentFlood:
			direction = p.MeanFloodDir.Value
		case models.CurrentEbb:
			direction = p.MeanEbbDir.Value
		}

		values := map[string]float64{
			models.ValueKey:     velocity,
			models.SpeedKey:     math.Abs(velocity),
			models.DirectionKey: direction,
		}
		if p.Depth.Valid {
			values["depth"] = p.Depth.Value
		}
		records = append(records, models.Record{
			Time:   t,
			Values: values,
			Type:   string(kind),
			Units:  unit,
		})
	}
	return records, nil
}

func decodeObservations(product models.ProductKind, rows []noaaObservation, unit string) ([]models.Record, error) {
	records := make([]models.Record, 0, len(rows))
	for _, o := range rows {
		t, err := parseNOAATime(o.Time)
		if err != nil {
			return nil, err
		}

		values := make(map[string]float64, 3)
		switch product {
		case models.ProductWind, models.ProductCurrents:
			if !o.Speed.Valid {
				continue
			}
			values[models.ValueKey] = o.Speed.Value
			values[models.SpeedKey] = o.Speed.Value
			if o.Direction.Valid {
				values[models.DirectionKey] = o.Direction.Value
			}
			if o.Gust.Valid {
				values[models.GustKey] = o.Gust.Value
			}
		default:
			if !o.Value.Valid {
				continue
			}
			values[models.ValueKey] = o.Value.Value
		}

		records = append(records, models.Record{
			Time:   t,
			Values: values,
			Units:  unit,
			Flags:  o.Flags,
		})
	}
	return records, nil
}

func noaaErrorKind(message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "no data was found"),
		strings.Contains(lower, "wrong station id"),
		strings.Contains(lower, "not offered"),
		strings.Contains(lower, "no predictions data"):
		return KindNotFound
	default:
		return KindMalformedResponse
	}
}

func (c *NOAAClient) classify(stationID string, product models.ProductKind, err error) error {
	if de, ok := err.(*decodeError); ok {
		return c.errorf(stationID, product, de.kind, 0, de.msg, de.err)
	}
	return c.errorf(stationID, product, KindMalformedResponse, 0, "", err)
}

func (c *NOAAClient) errorf(stationID string, product models.ProductKind, kind ErrorKind, status int, msg string, err error) *Error {
	return &Error{
		Kind:       kind,
		Provider:   models.ProviderStation,
		Identifier: stationID,
		Product:    product,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}

func parseNOAATime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(noaaTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &decodeError{kind: KindMalformedResponse, msg: fmt.Sprintf("parsing time %q", s), err: err}
	}
	return t, nil
}

// noaaFloat accepts CO-OPS numbers encoded as JSON numbers or strings.
// Empty strings and nulls leave Valid false.
type noaaFloat struct {
	Value float64
	Valid bool
}

func (f *noaaFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = noaaFloat{}
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = noaaFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	*f = noaaFloat{Value: v, Valid: true}
	return nil
}
