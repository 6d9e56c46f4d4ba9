package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/station"
)

// CapabilityResolver turns an identifier into its capability set.
type CapabilityResolver interface {
	Resolve(ctx context.Context, identifier string) (*models.CapabilitySet, error)
	Invalidate(identifier string)
}

// IdentifyResult is the outcome of the first setup step.
type IdentifyResult struct {
	Identifier   string                `json:"identifier"`
	ProviderType models.ProviderType   `json:"providerType"`
	Available    []models.ProductKind  `json:"available"`
	DefaultName  string                `json:"defaultName"`
	Station      *models.Station       `json:"station,omitempty"`
	Capabilities *models.CapabilitySet `json:"-"`
}

// ConfigureInput is the raw second-step form.
type ConfigureInput struct {
	Name                  string   `json:"name"`
	TimezoneMode          string   `json:"timezoneMode"`
	UnitSystem            string   `json:"unitSystem"`
	UpdateIntervalSeconds int      `json:"updateIntervalSeconds"`
	Sensors               []string `json:"sensors"`
}

// Flow runs the two-step setup: identify, then configure.
type Flow struct {
	resolver CapabilityResolver
	store    EntryStore
	now      func() time.Time
	newID    func() string
}

type FlowOption func(*Flow)

func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.now = now
	}
}

func WithIDGenerator(newID func() string) FlowOption {
	return func(f *Flow) {
		f.newID = newID
	}
}

func NewFlow(resolver CapabilityResolver, store EntryStore, opts ...FlowOption) *Flow {
	f := &Flow{
		resolver: resolver,
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Identify resolves the capability set for identifier.
func (f *Flow) Identify(ctx context.Context, identifier string) (*IdentifyResult, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, inputError("identifier", CodeInvalidIdentifier, "identifier cannot be empty")
	}

	caps, err := f.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, resolveInputError(err)
	}

	log.Info().
		Str("identifier", caps.Identifier).
		Str("provider", string(caps.ProviderType)).
		Int("products", caps.Len()).
		Msg("Identified station")

	return &IdentifyResult{
		Identifier:   caps.Identifier,
		ProviderType: caps.ProviderType,
		Available:    caps.List(),
		DefaultName:  DefaultName(caps),
		Station:      caps.Station,
		Capabilities: caps,
	}, nil
}

// Configure validates input against the identifier's capabilities and
// persists a new config entry.
func (f *Flow) Configure(ctx context.Context, identifier string, input ConfigureInput) (*models.ConfigEntry, error) {
	result, err := f.Identify(ctx, identifier)
	if err != nil {
		return nil, err
	}

	opts, err := BuildOptions(input, result.Capabilities)
	if err != nil {
		return nil, err
	}

	entry := &models.ConfigEntry{
		ID:           f.newID(),
		Identifier:   result.Identifier,
		Capabilities: *result.Capabilities,
		Options:      opts,
		CreatedAt:    f.now().UTC(),
	}
	if err := f.store.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving config entry: %w", err)
	}

	log.Info().
		Str("entry_id", entry.ID).
		Str("identifier", entry.Identifier).
		Int("sensors", len(opts.EnabledSensors)).
		Msg("Created config entry")

	return entry, nil
}

// Reconfigure re-resolves an existing entry's identifier, bypassing the
// capability cache, and replaces its options.
func (f *Flow) Reconfigure(ctx context.Context, entryID string, input ConfigureInput) (*models.ConfigEntry, error) {
	existing, err := f.store.Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("loading config entry: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	f.resolver.Invalidate(existing.Identifier)
	result, err := f.Identify(ctx, existing.Identifier)
	if err != nil {
		return nil, err
	}

	opts, err := BuildOptions(input, result.Capabilities)
	if err != nil {
		return nil, err
	}

	updated := &models.ConfigEntry{
		ID:           existing.ID,
		Identifier:   result.Identifier,
		Capabilities: *result.Capabilities,
		Options:      opts,
		CreatedAt:    existing.CreatedAt,
	}
	if err := f.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("saving config entry: %w", err)
	}

	log.Info().
		Str("entry_id", updated.ID).
		Str("identifier", updated.Identifier).
		Msg("Reconfigured config entry")

	return updated, nil
}

// Remove deletes an entry. Removing an unknown entry is not an error.
func (f *Flow) Remove(ctx context.Context, entryID string) error {
	if err := f.store.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}
	return nil
}

// Entries lists every persisted entry.
func (f *Flow) Entries(ctx context.Context) ([]*models.ConfigEntry, error) {
	return f.store.List(ctx)
}

// DefaultName is the name offered when the user leaves it blank.
func DefaultName(caps *models.CapabilitySet) string {
	if caps.ProviderType == models.ProviderBuoy {
		return "NDBC Buoy " + caps.Identifier
	}
	return "NOAA Station " + caps.Identifier
}

// BuildOptions validates input against caps and returns the resolved options.
func BuildOptions(input ConfigureInput, caps *models.CapabilitySet) (models.Options, error) {
	tz, err := models.ParseTimezoneMode(input.TimezoneMode)
	if err != nil {
		return models.Options{}, &InputError{Field: "timezone_mode", Code: CodeInvalidTimezone, Err: err}
	}
	units, err := models.ParseUnitSystem(input.UnitSystem)
	if err != nil {
		return models.Options{}, &InputError{Field: "unit_system", Code: CodeInvalidUnitSystem, Err: err}
	}

	interval := input.UpdateIntervalSeconds
	if interval == 0 {
		interval = models.DefaultUpdateInterval
	}
	if interval < models.MinUpdateInterval || interval > models.MaxUpdateInterval {
		return models.Options{}, inputError("update_interval", CodeInvalidInterval,
			"%d not in [%d,%d]", interval, models.MinUpdateInterval, models.MaxUpdateInterval)
	}

	if len(input.Sensors) == 0 {
		return models.Options{}, inputError("sensors", CodeNoSensors, "at least one sensor must be selected")
	}
	sensors := make([]models.ProductKind, 0, len(input.Sensors))
	for _, name := range input.Sensors {
		p, err := models.ParseProductKind(name)
		if err != nil {
			return models.Options{}, &InputError{Field: "sensors", Code: CodeUnsupportedSensor, Message: name, Err: err}
		}
		if !caps.Has(p) {
			return models.Options{}, inputError("sensors", CodeUnsupportedSensor, "%s is not offered by %s", p, caps.Identifier)
		}
		sensors = append(sensors, p)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = DefaultName(caps)
	}

	opts := models.Options{
		Name:                  name,
		TimezoneMode:          tz,
		UnitSystem:            units,
		UpdateIntervalSeconds: interval,
		EnabledSensors:        models.SensorSet(sensors...),
	}
	if err := opts.Validate(); err != nil {
		return models.Options{}, fmt.Errorf("validating options: %w", err)
	}
	return opts, nil
}

func resolveInputError(err error) error {
	switch {
	case errors.Is(err, station.ErrInvalidIdentifier):
		return &InputError{Field: "identifier", Code: CodeInvalidIdentifier, Err: err}
	case errors.Is(err, station.ErrNoCapabilities):
		return &InputError{Field: "identifier", Code: CodeNoCapabilities, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &InputError{Field: "base", Code: CodeUpstreamUnavailable, Err: err}
	}
}
