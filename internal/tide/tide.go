package tide

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// snapTolerance absorbs floating drift so boundaries land on exact 0, 50 and 100.
const snapTolerance = 1e-9

// ValidateTideEvents checks that events are strictly time-ordered and that
// High and Low alternate.
func ValidateTideEvents(events []models.TideEvent) error {
	if len(events) < 2 {
		return newSequenceError(len(events), "need at least two events, got %d", len(events))
	}
	for i, e := range events {
		if e.Kind != models.TideHigh && e.Kind != models.TideLow {
			return newSequenceError(i, "unknown kind %q", e.Kind)
		}
		if i == 0 {
			continue
		}
		prev := events[i-1]
		if !e.Time.After(prev.Time) {
			return newSequenceError(i, "timestamp %s does not follow %s",
				e.Time.Format(time.RFC3339), prev.Time.Format(time.RFC3339))
		}
		if e.Kind == prev.Kind {
			return newSequenceError(i, "consecutive %s events", e.Kind)
		}
	}
	return nil
}

// Interpolate derives the tide state at now from the bracketing extremes.
// Factor and percentage both describe water position: 0 at Low, 100 at High.
// Factor follows a half-cosine between the extremes, percentage is linear.
func Interpolate(events []models.TideEvent, now time.Time) (*models.InterpolationResult, error) {
	if err := ValidateTideEvents(events); err != nil {
		return nil, err
	}

	last := len(events) - 1
	if now.Before(events[0].Time) || !now.Before(events[last].Time) {
		return nil, &WindowError{Now: now, First: events[0].Time, Last: events[last].Time}
	}

	// first event strictly after now; always in [1, last]
	idx := sort.Search(len(events), func(i int) bool {
		return events[i].Time.After(now)
	})
	prev, next := events[idx-1], events[idx]

	frac := fraction(prev.Time, next.Time, now)
	var phase models.TidePhase
	var factor, percentage float64
	if prev.Kind == models.TideLow {
		phase = models.TideRising
		factor = 50 * (1 - math.Cos(math.Pi*frac))
		percentage = 100 * frac
	} else {
		phase = models.TideFalling
		factor = 50 * (1 + math.Cos(math.Pi*frac))
		percentage = 100 * (1 - frac)
	}

	result := &models.InterpolationResult{
		Phase:      phase,
		Factor:     snap(factor),
		Percentage: snap(percentage),
		Previous:   prev,
		Next:       next,
		TimeToNext: next.Time.Sub(now),
	}
	if idx+1 < len(events) {
		following := events[idx+1]
		result.Following = &following
	}
	return result, nil
}

// StateLabel renders the next event as "High tide at 3:04 PM" in loc.
func StateLabel(result *models.InterpolationResult, loc *time.Location) string {
	if result == nil {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s tide at %s", result.Next.Kind.Label(), result.Next.Time.In(loc).Format("3:04 PM"))
}

func fraction(start, end, now time.Time) float64 {
	span := end.Sub(start)
	if span <= 0 {
		return 0
	}
	return float64(now.Sub(start)) / float64(span)
}

func snap(v float64) float64 {
	for _, edge := range [...]float64{0, 50, 100} {
		if math.Abs(v-edge) <= snapTolerance {
			return edge
		}
	}
	return math.Max(0, math.Min(100, v))
}
