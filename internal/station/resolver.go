package station

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/metrics"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/upstream"
)

const (
	DefaultProbeTimeout = 10 * time.Second
	maxConcurrentProbes = 4
)

var (
	stationPattern        = regexp.MustCompile(`^\d{7}$`)
	currentStationPattern = regexp.MustCompile(`^[A-Z]{2,3}\d{4}(_\d+)?$`)
	buoyPattern           = regexp.MustCompile(`^[A-Z0-9]{5}$`)
	identifierPattern     = regexp.MustCompile(`^[A-Z0-9_]+$`)
)

// NormalizeIdentifier trims and upper-cases a user supplied identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

func isCurrentStation(id string) bool {
	return currentStationPattern.MatchString(NormalizeIdentifier(id))
}

// candidateProviders orders the providers worth asking about id.
func candidateProviders(id string) []models.ProviderType {
	switch {
	case stationPattern.MatchString(id), currentStationPattern.MatchString(id):
		return []models.ProviderType{models.ProviderStation}
	case buoyPattern.MatchString(id):
		return []models.ProviderType{models.ProviderBuoy}
	default:
		return []models.ProviderType{models.ProviderStation, models.ProviderBuoy}
	}
}

// Resolver turns an identifier into the set of products that currently
// return data for it.
type Resolver struct {
	registry     models.StationRegistry
	router       *upstream.Router
	cache        *cache.CapabilityCache
	probeTimeout time.Duration
	now          func() time.Time
}

type ResolverOption func(*Resolver)

func WithRegistry(registry models.StationRegistry) ResolverOption {
	return func(r *Resolver) {
		r.registry = registry
	}
}

func WithCapabilityCache(c *cache.CapabilityCache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

func WithProbeTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.probeTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(router *upstream.Router, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		router:       router,
		probeTimeout: DefaultProbeTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type probeResult struct {
	product models.ProductKind
	ok      bool
	err     error
}

// Resolve classifies the identifier, probes every candidate product
// concurrently and returns the products that answered with data.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*models.CapabilitySet, error) {
	id := NormalizeIdentifier(identifier)
	if id == "" || !identifierPattern.MatchString(id) {
		return nil, &ResolveError{Identifier: identifier, Err: ErrInvalidIdentifier}
	}

	if r.cache != nil {
		if caps, ok := r.cache.Get(ctx, id); ok {
			log.Debug().Str("identifier", id).Msg("Capability cache HIT")
			return caps, nil
		}
	}

	var recognized bool
	var lastErr error
	for _, provider := range candidateProviders(id) {
		caps, seen, err := r.resolveProvider(ctx, id, provider)
		if err != nil {
			return nil, err
		}
		if !seen {
			continue
		}
		recognized = true
		if caps.Len() > 0 {
			if r.cache != nil {
				r.cache.Add(ctx, caps.CapabilitySet)
			}
			log.Info().
				Str("identifier", id).
				Str("provider", string(provider)).
				Strs("products", caps.ProductNames()).
				Msg("Resolved capabilities")
			return caps.CapabilitySet, nil
		}
		lastErr = caps.lastErr
	}

	if recognized {
		return nil, &ResolveError{Identifier: id, Err: ErrNoCapabilities, Cause: lastErr}
	}
	return nil, &ResolveError{Identifier: id, Err: ErrInvalidIdentifier}
}

// Invalidate forgets the cached capabilities for identifier.
func (r *Resolver) Invalidate(identifier string) {
	if r.cache != nil {
		r.cache.Invalidate(NormalizeIdentifier(identifier))
	}
}

type providerCaps struct {
	*models.CapabilitySet
	lastErr error
}

// resolveProvider reports whether provider recognizes id and which products
// answered. Only context cancellation is returned as an error.
func (r *Resolver) resolveProvider(ctx context.Context, id string, provider models.ProviderType) (providerCaps, bool, error) {
	out := providerCaps{CapabilitySet: models.NewCapabilitySet(id, provider)}
	out.ResolvedAt = r.now()

	fetcher, err := r.router.For(provider)
	if err != nil {
		log.Warn().Err(err).Str("identifier", id).Msg("Skipping provider")
		return out, false, nil
	}

	recognized := false
	if provider == models.ProviderStation && r.registry != nil {
		st, err := r.registry.LookupStation(ctx, id)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("identifier", id).Msg("Station registry lookup failed, probing anyway")
		case st == nil:
			log.Debug().Str("identifier", id).Msg("Station not in registry")
			return out, false, nil
		default:
			recognized = true
			out.Station = st
		}
	}

	products := candidateProducts(id, fetcher)
	results := make([]probeResult, len(products))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentProbes)
	for i, product := range products {
		i, product := i, product
		g.Go(func() error {
			results[i] = r.probe(ctx, fetcher, id, product)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, false, err
	}

	for _, res := range results {
		switch {
		case res.ok:
			recognized = true
			out.Add(res.product)
		case res.err != nil && !errors.Is(res.err, upstream.ErrNotFound):
			recognized = true
			out.lastErr = res.err
		}
	}

	if provider == models.ProviderBuoy && recognized {
		out.Station = &models.Station{ID: id, Name: "NDBC " + id, Source: models.SourceNDBC}
	}
	return out, recognized, nil
}

// candidateProducts narrows what is worth probing; current stations only
// serve current products.
func candidateProducts(id string, fetcher upstream.ProviderFetcher) []models.ProductKind {
	all := fetcher.Products()
	if fetcher.Provider() != models.ProviderStation {
		return all
	}

	current := currentStationPattern.MatchString(id)
	out := make([]models.ProductKind, 0, len(all))
	for _, p := range all {
		switch {
		case current && (p == models.ProductCurrentPredictions || p == models.ProductCurrents):
			out = append(out, p)
		case !current && p != models.ProductCurrentPredictions:
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) probe(ctx context.Context, fetcher upstream.ProviderFetcher, id string, product models.ProductKind) probeResult {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	records, err := fetcher.Fetch(probeCtx, id, product, models.LatestRange())
	res := probeResult{product: product, err: err, ok: err == nil && len(records) > 0}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(upstream.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		log.Debug().Err(err).Str("identifier", id).Str("product", product.String()).Msg("Probe failed")
	case len(records) == 0:
		outcome = "empty"
	}
	metrics.ProbeOutcomes.WithLabelValues(string(fetcher.Provider()), product.String(), outcome).Inc()
	return res
}
