package compose

import (
	"math"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

const (
	feetPerMeter      = 3.28084
	mphPerMeterSecond = 2.23694
	knotsPerCmSecond  = 0.0194384
	inHgPerHPa        = 0.02953
)

// Quantity is the physical dimension of a value as it arrives from upstream
// in metric units.
type Quantity int

const (
	Length       Quantity = iota // m
	Temperature                  // °C
	WindSpeed                    // m/s
	CurrentSpeed                 // cm/s
	Pressure                     // hPa
	Percent
	Conductivity // mS/cm
	Direction    // degrees true
	Period       // s
	Ratio
)

// Convert maps a metric upstream value into the requested unit system and
// returns it rounded to two decimals with its unit label.
func Convert(q Quantity, v float64, units models.UnitSystem) (float64, string) {
	imperial := units == models.UnitsImperial

	var out float64
	var unit string
	switch q {
	case Length:
		out, unit = v, "m"
		if imperial {
			out, unit = v*feetPerMeter, "ft"
		}
	case Temperature:
		out, unit = v, "°C"
		if imperial {
			out, unit = v*9/5+32, "°F"
		}
	case WindSpeed:
		out, unit = v, "m/s"
		if imperial {
			out, unit = v*mphPerMeterSecond, "mph"
		}
	case CurrentSpeed:
		out, unit = v, "cm/s"
		if imperial {
			out, unit = v*knotsPerCmSecond, "kn"
		}
	case Pressure:
		out, unit = v, "hPa"
		if imperial {
			out, unit = v*inHgPerHPa, "inHg"
		}
	case Percent:
		out, unit = v, "%"
	case Conductivity:
		out, unit = v, "mS/cm"
	case Direction:
		out, unit = v, "°"
	case Period:
		out, unit = v, "s"
	default:
		out = v
	}
	return Round(out), unit
}

// Round rounds to two decimal places.
func Round(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
