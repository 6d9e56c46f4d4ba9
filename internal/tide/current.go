package tide

import (
	"math"
	"sort"
	"time"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// SlackThreshold is the velocity magnitude at or below which a current is
// considered slack.
const SlackThreshold = 0.1

func ValidateCurrentEvents(events []models.CurrentEvent) error {
	if len(events) < 2 {
		return newSequenceError(len(events), "need at least two events, got %d", len(events))
	}
	for i, e := range events {
		switch e.Kind {
		case models.CurrentEbb, models.CurrentFlood, models.CurrentSlack:
		default:
			return newSequenceError(i, "unknown kind %q", e.Kind)
		}
		if e.Speed < 0 {
			return newSequenceError(i, "negative speed %f", e.Speed)
		}
		if i > 0 && !e.Time.After(events[i-1].Time) {
			return newSequenceError(i, "timestamp %s does not follow %s",
				e.Time.Format(time.RFC3339), events[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// InterpolateCurrents derives the current state at now. After a slack the
// state anticipates the upcoming event; otherwise the preceding kind holds
// until the next slack. Speed is linear and direction follows the shortest
// arc between the bracketing bearings.
func InterpolateCurrents(events []models.CurrentEvent, now time.Time) (*models.CurrentInterpolationResult, error) {
	if err := ValidateCurrentEvents(events); err != nil {
		return nil, err
	}

	last := len(events) - 1
	if now.Before(events[0].Time) || !now.Before(events[last].Time) {
		return nil, &WindowError{Now: now, First: events[0].Time, Last: events[last].Time}
	}

	idx := sort.Search(len(events), func(i int) bool {
		return events[i].Time.After(now)
	})
	prev, next := events[idx-1], events[idx]
	frac := fraction(prev.Time, next.Time, now)

	state := prev.Kind
	if prev.Kind == models.CurrentSlack {
		state = next.Kind
	}

	// slack rows carry no meaningful bearing
	fromDir, toDir := prev.Direction, next.Direction
	if prev.Kind == models.CurrentSlack && next.Kind != models.CurrentSlack {
		fromDir = toDir
	} else if next.Kind == models.CurrentSlack && prev.Kind != models.CurrentSlack {
		toDir = fromDir
	}

	return &models.CurrentInterpolationResult{
		State:     state,
		Speed:     prev.Speed + (next.Speed-prev.Speed)*frac,
		Direction: InterpolateBearing(fromDir, toDir, frac),
		Previous:  prev,
		Next:      next,
	}, nil
}

// InterpolateBearing blends two compass bearings along the shortest arc and
// returns a result in [0, 360).
func InterpolateBearing(from, to, frac float64) float64 {
	from = NormalizeBearing(from)
	to = NormalizeBearing(to)
	delta := math.Mod(to-from+540, 360) - 180
	out := NormalizeBearing(from + delta*frac)
	if math.Abs(out-360) <= snapTolerance || math.Abs(out) <= snapTolerance {
		return 0
	}
	return out
}

func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ClassifyVelocity infers the current kind from a signed velocity, for
// prediction rows that carry no explicit type.
func ClassifyVelocity(v float64) models.CurrentKind {
	switch {
	case math.Abs(v) <= SlackThreshold:
		return models.CurrentSlack
	case v > 0:
		return models.CurrentFlood
	default:
		return models.CurrentEbb
	}
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Cardinal returns the 16-point compass label for a bearing.
func Cardinal(deg float64) string {
	i := int(math.Floor(NormalizeBearing(deg)/22.5+0.5)) % len(compassPoints)
	return compassPoints[i]
}
