package upstream

import (
	"context"
	"fmt"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// Fetcher returns normalized records for one product of one identifier.
// Implementations own retry and backoff; callers never retry.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string, product models.ProductKind, r models.TimeRange) ([]models.Record, error)
}

// ProviderFetcher is a Fetcher bound to one provider that knows which
// products it can serve.
type ProviderFetcher interface {
	Fetcher
	Provider() models.ProviderType
	Products() []models.ProductKind
}

type FetcherFunc func(ctx context.Context, identifier string, product models.ProductKind, r models.TimeRange) ([]models.Record, error)

func (f FetcherFunc) Fetch(ctx context.Context, identifier string, product models.ProductKind, r models.TimeRange) ([]models.Record, error) {
	return f(ctx, identifier, product, r)
}

// Router dispatches fetches to the client for a provider type.
type Router struct {
	fetchers map[models.ProviderType]ProviderFetcher
}

func NewRouter(fetchers ...ProviderFetcher) *Router {
	r := &Router{fetchers: make(map[models.ProviderType]ProviderFetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[f.Provider()] = f
	}
	return r
}

func (r *Router) For(provider models.ProviderType) (ProviderFetcher, error) {
	f, ok := r.fetchers[provider]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for provider %s", provider)
	}
	return f, nil
}

// Fetch routes by provider and rejects products the provider cannot serve.
func (r *Router) Fetch(ctx context.Context, provider models.ProviderType, identifier string, product models.ProductKind, tr models.TimeRange) ([]models.Record, error) {
	f, err := r.For(provider)
	if err != nil {
		return nil, err
	}
	if !supports(f, product) {
		return nil, &Error{
			Kind:       KindNotFound,
			Provider:   provider,
			Identifier: identifier,
			Product:    product,
			Message:    "product not offered by provider",
		}
	}
	return f.Fetch(ctx, identifier, product, tr)
}

// Bind returns a Fetcher that always routes to provider.
func (r *Router) Bind(provider models.ProviderType) Fetcher {
	return FetcherFunc(func(ctx context.Context, identifier string, product models.ProductKind, tr models.TimeRange) ([]models.Record, error) {
		return r.Fetch(ctx, provider, identifier, product, tr)
	})
}

func supports(f ProviderFetcher, product models.ProductKind) bool {
	for _, p := range f.Products() {
		if p == product {
			return true
		}
	}
	return false
}
