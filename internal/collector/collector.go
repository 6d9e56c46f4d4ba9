package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bbernstein/flowebb/tidesensors/internal/compose"
	"github.com/bbernstein/flowebb/tidesensors/internal/metrics"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/tide"
	"github.com/bbernstein/flowebb/tidesensors/internal/upstream"
)

const DefaultCycleTimeout = 30 * time.Second

// Prediction windows reach back far enough to bracket now with the previous
// extremum and forward far enough to hold the following one.
const (
	predictionLookback  = 24 * time.Hour
	predictionLookahead = 48 * time.Hour
)

var errNoRecords = errors.New("no records returned")

// Sink receives the composed readings at the end of every cycle.
type Sink interface {
	Name() string
	Publish(ctx context.Context, entry *models.ConfigEntry, readings []models.Reading) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entry *models.ConfigEntry, readings []models.Reading) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Publish(ctx context.Context, entry *models.ConfigEntry, readings []models.Reading) error {
	return f(ctx, entry, readings)
}

type Config struct {
	Entry        *models.ConfigEntry
	Fetcher      upstream.Fetcher
	Sinks        []Sink
	CycleTimeout time.Duration
	Clock        func() time.Time
}

// CycleResult summarizes one refresh cycle.
type CycleResult struct {
	Skipped  bool
	Started  time.Time
	Duration time.Duration
	Products int
	Failed   map[models.ProductKind]error
	Readings []models.Reading
}

// Outcome labels the cycle for metrics and logs.
func (r CycleResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case len(r.Failed) == 0:
		return "ok"
	case len(r.Failed) < r.Products:
		return "partial"
	default:
		return "failed"
	}
}

// Collector refreshes one configured instance on its update interval.
type Collector struct {
	entry        *models.ConfigEntry
	fetcher      upstream.Fetcher
	sinks        []Sink
	cycleTimeout time.Duration
	now          func() time.Time

	// cycle is held for the duration of a refresh; a tick that cannot take
	// it is dropped.
	cycle sync.Mutex

	mu       sync.RWMutex
	records  map[models.ProductKind]*models.Sample[[]models.Record]
	tides    *models.Sample[[]models.TideEvent]
	currents *models.Sample[[]models.CurrentEvent]
	readings []models.Reading
	last     time.Time
}

func New(cfg Config) (*Collector, error) {
	if cfg.Entry == nil {
		return nil, fmt.Errorf("collector requires a config entry")
	}
	if err := cfg.Entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config entry: %w", err)
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("collector for %s requires a fetcher", cfg.Entry.Identifier)
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &Collector{
		entry:        cfg.Entry,
		fetcher:      cfg.Fetcher,
		sinks:        cfg.Sinks,
		cycleTimeout: cfg.CycleTimeout,
		now:          cfg.Clock,
		records:      make(map[models.ProductKind]*models.Sample[[]models.Record]),
	}
	c.readings = compose.Compose(&c.entry.Capabilities, c.entry.Options, nil, nil)
	return c, nil
}

func (c *Collector) Entry() *models.ConfigEntry {
	return c.entry
}

func (c *Collector) Interval() time.Duration {
	return time.Duration(c.entry.Options.UpdateIntervalSeconds) * time.Second
}

// Start runs an initial cycle and then one per interval until ctx is done.
// Each tick runs in its own goroutine so a slow cycle never delays the
// ticker; overlapping ticks are dropped by RefreshOnce.
func (c *Collector) Start(ctx context.Context) error {
	log.Info().
		Str("identifier", c.entry.Identifier).
		Dur("interval", c.Interval()).
		Msg("Starting collector")

	var wg sync.WaitGroup
	run := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RefreshOnce(ctx)
		}()
	}

	run()
	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Str("identifier", c.entry.Identifier).Msg("Collector stopped")
			return nil
		case <-ticker.C:
			run()
		}
	}
}

// RefreshOnce performs one cycle: fetch every enabled product, derive the
// tide and current state, compose readings and deliver them to the sinks.
// Upstream failures are recorded in the result and never returned.
func (c *Collector) RefreshOnce(ctx context.Context) CycleResult {
	if !c.cycle.TryLock() {
		log.Warn().
			Str("identifier", c.entry.Identifier).
			Msg("Previous refresh still running, skipping tick")
		metrics.CycleOutcomes.WithLabelValues(c.entry.Identifier, "skipped").Inc()
		return CycleResult{Skipped: true}
	}
	defer c.cycle.Unlock()

	started := c.now()
	timer := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cycleTimeout)
	defer cancel()

	products := c.entry.Options.SensorList()
	fetched := c.fetchAll(ctx, products, started)

	now := c.now()
	failed := make(map[models.ProductKind]error)

	c.mu.Lock()
	for i, product := range products {
		err := fetched[i].err
		if err == nil {
			err = c.apply(product, fetched[i].records, now)
		}
		if err != nil {
			failed[product] = err
			c.recordFailure(product, err)
		}
	}

	snap := &compose.Snapshot{
		Now:     now,
		Records: c.records,
		Tide:    c.deriveTide(now),
		Current: c.deriveCurrent(now),
	}
	readings := compose.Compose(&c.entry.Capabilities, c.entry.Options, snap, nil)
	c.readings = readings
	c.last = now
	c.mu.Unlock()

	c.publish(ctx, readings)

	result := CycleResult{
		Started:  started,
		Duration: time.Since(timer),
		Products: len(products),
		Failed:   failed,
		Readings: readings,
	}
	c.observe(result)
	return result
}

type fetchResult struct {
	records []models.Record
	err     error
}

func (c *Collector) fetchAll(ctx context.Context, products []models.ProductKind, now time.Time) []fetchResult {
	results := make([]fetchResult, len(products))
	var g errgroup.Group
	for i, product := range products {
		i, product := i, product
		g.Go(func() error {
			records, err := c.fetcher.Fetch(ctx, c.entry.Identifier, product, rangeFor(product, now))
			if err == nil && len(records) == 0 {
				err = errNoRecords
			}
			results[i] = fetchResult{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func rangeFor(product models.ProductKind, now time.Time) models.TimeRange {
	switch product {
	case models.ProductTidePredictions, models.ProductCurrentPredictions:
		return models.Around(now, predictionLookback, predictionLookahead)
	default:
		return models.LatestRange()
	}
}

// apply replaces the stored window for product. Callers hold c.mu.
func (c *Collector) apply(product models.ProductKind, records []models.Record, now time.Time) error {
	switch product {
	case models.ProductTidePredictions:
		events, err := tideEvents(records)
		if err != nil {
			return err
		}
		c.tides = models.NewSample(events, now)
	case models.ProductCurrentPredictions:
		events, err := currentEvents(records)
		if err != nil {
			return err
		}
		c.currents = models.NewSample(events, now)
	default:
		c.records[product] = models.NewSample(records, now)
	}
	return nil
}

// recordFailure keeps the previous sample for product, flagged stale.
// Callers hold c.mu.
func (c *Collector) recordFailure(product models.ProductKind, err error) {
	kind := upstream.KindOf(err)
	metrics.FetchErrors.WithLabelValues(
		string(c.entry.Capabilities.ProviderType), string(product), metrics.ErrorKind(string(kind)),
	).Inc()

	log.Warn().
		Err(err).
		Str("identifier", c.entry.Identifier).
		Str("product", string(product)).
		Msg("Refresh failed, keeping previous value")

	switch product {
	case models.ProductTidePredictions:
		c.tides = c.tides.MarkStale()
	case models.ProductCurrentPredictions:
		c.currents = c.currents.MarkStale()
	default:
		c.records[product] = c.records[product].MarkStale()
	}
}

func (c *Collector) deriveTide(now time.Time) *models.Sample[*models.InterpolationResult] {
	if c.tides == nil {
		return nil
	}
	result, err := tide.Interpolate(c.tides.Value, now)
	if err != nil {
		c.logDerivation(models.ProductTidePredictions, err)
		return nil
	}
	return &models.Sample[*models.InterpolationResult]{
		Value:     result,
		FetchedAt: c.tides.FetchedAt,
		Stale:     c.tides.Stale,
	}
}

func (c *Collector) deriveCurrent(now time.Time) *models.Sample[*models.CurrentInterpolationResult] {
	if c.currents == nil {
		return nil
	}
	result, err := tide.InterpolateCurrents(c.currents.Value, now)
	if err != nil {
		c.logDerivation(models.ProductCurrentPredictions, err)
		return nil
	}
	return &models.Sample[*models.CurrentInterpolationResult]{
		Value:     result,
		FetchedAt: c.currents.FetchedAt,
		Stale:     c.currents.Stale,
	}
}

func (c *Collector) logDerivation(product models.ProductKind, err error) {
	event := log.Debug()
	if errors.Is(err, tide.ErrMalformedSequence) {
		event = log.Warn()
	}
	event.
		Err(err).
		Str("identifier", c.entry.Identifier).
		Str("product", string(product)).
		Msg("Prediction window unusable, reading unavailable")
}

func (c *Collector) publish(ctx context.Context, readings []models.Reading) {
	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, c.entry, readings); err != nil {
			metrics.PublishErrors.WithLabelValues(sink.Name()).Inc()
			log.Error().
				Err(err).
				Str("identifier", c.entry.Identifier).
				Str("sink", sink.Name()).
				Msg("Failed to publish readings")
		}
	}
}

func (c *Collector) observe(result CycleResult) {
	outcome := result.Outcome()
	stale := 0
	for _, r := range result.Readings {
		if r.Stale {
			stale++
		}
	}

	metrics.CycleDuration.WithLabelValues(c.entry.Identifier).Observe(result.Duration.Seconds())
	metrics.CycleOutcomes.WithLabelValues(c.entry.Identifier, outcome).Inc()
	metrics.StaleReadings.WithLabelValues(c.entry.Identifier).Set(float64(stale))

	log.Info().
		Str("identifier", c.entry.Identifier).
		Str("outcome", outcome).
		Int("readings", len(result.Readings)).
		Int("failed", len(result.Failed)).
		Int("stale", stale).
		Dur("duration", result.Duration).
		Msg("Refresh cycle complete")
}

// Readings returns the readings composed by the most recent cycle.
func (c *Collector) Readings() []models.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Reading, len(c.readings))
	copy(out, c.readings)
	return out
}

// LastRefresh is the clock time of the most recent completed cycle.
func (c *Collector) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func tideEvents(records []models.Record) ([]models.TideEvent, error) {
	events := make([]models.TideEvent, 0, len(records))
	for _, rec := range records {
		height, ok := rec.Value(models.ValueKey)
		if !ok {
			return nil, fmt.Errorf("tide prediction at %s has no height", rec.Time)
		}
		events = append(events, models.TideEvent{
			Time:   rec.Time,
			Height: height,
			Kind:   models.TideKind(rec.Type),
		})
	}
	return events, nil
}

func currentEvents(records []models.Record) ([]models.CurrentEvent, error) {
	events := make([]models.CurrentEvent, 0, len(records))
	for _, rec := range records {
		kind, err := models.ParseCurrentKind(rec.Type)
		if err != nil {
			return nil, err
		}
		speed, _ := rec.Value(models.SpeedKey)
		direction, _ := rec.Value(models.DirectionKey)
		events = append(events, models.CurrentEvent{
			Time:      rec.Time,
			Speed:     speed,
			Direction: direction,
			Kind:      kind,
		})
	}
	return events, nil
}
