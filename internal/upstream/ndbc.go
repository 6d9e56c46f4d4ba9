package upstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/pkg/http/client"
)

const (
	DefaultNDBCBaseURL = "https://www.ndbc.noaa.gov"
	realtimePath       = "/data/realtime2/"
)

// waveColumns are the hourly wave fields of the standard meteorological file.
var waveColumns = []string{"WVHT", "DPD", "APD", "MWD"}

const (
	waveBackfillWindow = 2 * time.Hour
	metersPerFoot      = 0.3048
)

// ndbcFile is the realtime2 file suffix serving each product.
var ndbcFile = map[models.ProductKind]string{
	models.ProductMeteorological:   ".txt",
	models.ProductWaterTemperature: ".txt",
	models.ProductAirTemperature:   ".txt",
	models.ProductWind:             ".txt",
	models.ProductPressure:         ".txt",
	models.ProductSpectralWave:     ".spec",
	models.ProductOceanCurrent:     ".adcp",
}

// ndbcValueColumn picks the column that becomes the record's primary value.
var ndbcValueColumn = map[models.ProductKind]string{
	models.ProductMeteorological:   "WVHT",
	models.ProductWaterTemperature: "WTMP",
	models.ProductAirTemperature:   "ATMP",
	models.ProductWind:             "WSPD",
	models.ProductPressure:         "PRES",
	models.ProductSpectralWave:     "WVHT",
	models.ProductOceanCurrent:     "SPD01",
}

var ndbcUnits = map[models.ProductKind]string{
	models.ProductMeteorological:   "m",
	models.ProductWaterTemperature: "°C",
	models.ProductAirTemperature:   "°C",
	models.ProductWind:             "m/s",
	models.ProductPressure:         "hPa",
	models.ProductSpectralWave:     "m",
	models.ProductOceanCurrent:     "cm/s",
}

var ndbcMissing = map[string]struct{}{
	"MM":    {},
	"999":   {},
	"999.0": {},
	"9999":  {},
	"N/A":   {},
}

// NDBCClient reads the whitespace-separated realtime2 text files.
type NDBCClient struct {
	httpClient client.Interface
}

func NewNDBCClient(httpClient client.Interface) *NDBCClient {
	return &NDBCClient{httpClient: httpClient}
}

func (c *NDBCClient) Provider() models.ProviderType {
	return models.ProviderBuoy
}

func (c *NDBCClient) Products() []models.ProductKind {
	out := make([]models.ProductKind, 0, len(ndbcFile))
	for _, p := range models.AllProducts {
		if _, ok := ndbcFile[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *NDBCClient) Fetch(ctx context.Context, buoyID string, product models.ProductKind, r models.TimeRange) ([]models.Record, error) {
	suffix, ok := ndbcFile[product]
	if !ok {
		return nil, c.errorf(buoyID, product, KindNotFound, 0, "product not offered by NDBC", nil)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", product, buoyID, err)
	}

	resp, err := c.httpClient.Get(ctx, realtimePath+buoyID+suffix)
	if err != nil {
		return nil, c.errorf(buoyID, product, kindForTransport(err), 0, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorf(buoyID, product, kindForStatus(resp.StatusCode), resp.StatusCode, "", nil)
	}

	rows, err := ParseRealtime(resp.Body)
	if err != nil {
		return nil, c.errorf(buoyID, product, KindMalformedResponse, 0, "", err)
	}

	log.Debug().
		Str("buoy_id", buoyID).
		Str("file", suffix).
		Int("rows", len(rows)).
		Msg("Fetched data from NDBC")

	return selectRows(product, rows, r), nil
}

// selectRows keeps rows carrying the product's value column, newest first,
// restricted to r. A latest range yields at most one record.
func selectRows(product models.ProductKind, rows []models.Record, r models.TimeRange) []models.Record {
	column := ndbcValueColumn[product]
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		v, ok := row.Values[column]
		if !ok && (product != models.ProductMeteorological || len(row.Values) == 0) {
			continue
		}
		if !r.IsLatest() && (row.Time.Before(r.Start) || row.Time.After(r.End)) {
			continue
		}

		rec := models.Record{
			Time:   row.Time,
			Values: make(map[string]float64, len(row.Values)+3),
			Units:  ndbcUnits[product],
		}
		for k, val := range row.Values {
			rec.Values[k] = val
		}
		if len(row.Text) > 0 {
			rec.Text = make(map[string]string, len(row.Text))
			for k, val := range row.Text {
				rec.Text[k] = val
			}
		}
		if tide, ok := rec.Values["TIDE"]; ok {
			rec.Values["TIDE"] = tide * metersPerFoot
		}
		if product == models.ProductMeteorological && r.IsLatest() && !ok {
			v, ok = backfillWaves(&rec, rows)
		}
		if ok {
			rec.Values[models.ValueKey] = v
		}
		switch product {
		case models.ProductWind:
			rec.Values[models.SpeedKey] = v
			copyKey(rec.Values, "WDIR", models.DirectionKey)
			copyKey(rec.Values, "GST", models.GustKey)
		case models.ProductOceanCurrent:
			rec.Values[models.SpeedKey] = v
			copyKey(rec.Values, "DIR01", models.DirectionKey)
		}

		out = append(out, rec)
		if r.IsLatest() {
			break
		}
	}
	return out
}

// backfillWaves copies the wave columns of the newest row that has them into
// rec. Waves are reported hourly while met data arrives every ten minutes,
// so the newest row usually lacks WVHT.
func backfillWaves(rec *models.Record, rows []models.Record) (float64, bool) {
	for _, row := range rows {
		if rec.Time.Sub(row.Time) > waveBackfillWindow {
			break
		}
		wvht, ok := row.Values["WVHT"]
		if !ok {
			continue
		}
		for _, col := range waveColumns {
			copyValue(rec.Values, row.Values, col)
		}
		return wvht, true
	}
	return 0, false
}

func copyValue(dst, src map[string]float64, key string) {
	if v, ok := src[key]; ok {
		dst[key] = v
	}
}

func copyKey(values map[string]float64, from, to string) {
	if v, ok := values[from]; ok {
		values[to] = v
	}
}

// ParseRealtime parses an NDBC realtime2 file. The first comment line names
// the columns; further comment lines (units) are skipped. Missing markers are
// dropped and non-numeric cells (compass points, steepness) land in Text.
// Rows stay in file order, newest first.
func ParseRealtime(body []byte) ([]models.Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	var headers []string
	var rows []models.Record

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if headers == nil {
				headers = strings.Fields(strings.TrimPrefix(line, "#"))
			}
			continue
		}
		if headers == nil {
			return nil, fmt.Errorf("data line before header")
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("short data line: %q", line)
		}
		t, err := parseRowTime(fields)
		if err != nil {
			return nil, err
		}

		row := models.Record{Time: t, Values: make(map[string]float64, len(fields))}
		for i := 5; i < len(fields) && i < len(headers); i++ {
			if _, missing := ndbcMissing[fields[i]]; missing {
				continue
			}
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				if row.Text == nil {
					row.Text = make(map[string]string)
				}
				row.Text[headers[i]] = fields[i]
				continue
			}
			row.Values[headers[i]] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading realtime file: %w", err)
	}
	if headers == nil {
		return nil, fmt.Errorf("missing header line")
	}
	return rows, nil
}

func parseRowTime(fields []string) (time.Time, error) {
	var parts [5]int
	for i := 0; i < 5; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp column %d %q: %w", i, fields[i], err)
		}
		parts[i] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.UTC), nil
}

func (c *NDBCClient) errorf(buoyID string, product models.ProductKind, kind ErrorKind, status int, msg string, err error) *Error {
	return &Error{
		Kind:       kind,
		Provider:   models.ProviderBuoy,
		Identifier: buoyID,
		Product:    product,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}
