package compose

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

const timeLayout = time.RFC3339

// dstZones names an IANA zone for a standard offset (hours) at stations that
// observe daylight saving time.
var dstZones = map[int]string{
	-10: "America/Adak",
	-9:  "America/Anchorage",
	-8:  "America/Los_Angeles",
	-7:  "America/Denver",
	-6:  "America/Chicago",
	-5:  "America/New_York",
	-4:  "America/Halifax",
}

// Location returns the zone used to render times for a station in mode.
// Without station metadata everything renders in UTC.
func Location(mode models.TimezoneMode, station *models.Station) *time.Location {
	if station == nil || mode == models.TimezoneGMT {
		return time.UTC
	}
	if mode == models.TimezoneLST || !station.ObservesDST {
		return station.StandardLocation()
	}

	name, ok := dstZones[station.TimeZoneOffset/3600]
	if !ok || station.TimeZoneOffset%3600 != 0 {
		return station.StandardLocation()
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("zone", name).Msg("Falling back to standard time")
		return station.StandardLocation()
	}
	return loc
}

// FormatTime renders t in loc; the zero time renders as an empty string.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}
