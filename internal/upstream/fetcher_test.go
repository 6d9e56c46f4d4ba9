package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

type stubProvider struct {
	provider models.ProviderType
	products []models.ProductKind
	calls    []models.ProductKind
}

func (s *stubProvider) Provider() models.ProviderType  { return s.provider }
func (s *stubProvider) Products() []models.ProductKind { return s.products }

func (s *stubProvider) Fetch(_ context.Context, id string, product models.ProductKind, _ models.TimeRange) ([]models.Record, error) {
	s.calls = append(s.calls, product)
	return []models.Record{{Values: map[string]float64{models.ValueKey: 1}, Type: id}}, nil
}

func TestRouter(t *testing.T) {
	stations := &stubProvider{provider: models.ProviderStation, products: []models.ProductKind{models.ProductWaterLevel}}
	buoys := &stubProvider{provider: models.ProviderBuoy, products: []models.ProductKind{models.ProductSpectralWave}}
	router := NewRouter(stations, buoys)

	records, err := router.Fetch(context.Background(), models.ProviderStation, "9414290", models.ProductWaterLevel, models.LatestRange())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []models.ProductKind{models.ProductWaterLevel}, stations.calls)
	assert.Empty(t, buoys.calls)

	_, err = router.Bind(models.ProviderBuoy).Fetch(context.Background(), "46026", models.ProductSpectralWave, models.LatestRange())
	require.NoError(t, err)
	assert.Equal(t, []models.ProductKind{models.ProductSpectralWave}, buoys.calls)

	_, err = router.Fetch(context.Background(), models.ProviderBuoy, "46026", models.ProductWaterLevel, models.LatestRange())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, buoys.calls, 1)

	_, err = NewRouter(stations).For(models.ProviderBuoy)
	assert.Error(t, err)
}

func TestErrorMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     ErrorKind
		sentinel error
		other    error
	}{
		{KindNotFound, ErrNotFound, ErrTimeout},
		{KindRateLimited, ErrRateLimited, ErrNotFound},
		{KindTimeout, ErrTimeout, ErrRateLimited},
		{KindMalformedResponse, ErrMalformedResponse, ErrNotFound},
		{KindUnavailable, ErrUnavailable, ErrMalformedResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			err := fmt.Errorf("refresh: %w", &Error{Kind: tt.kind, Provider: models.ProviderStation, Identifier: "1"})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.NotErrorIs(t, err, tt.other)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:       KindUnavailable,
		Provider:   models.ProviderBuoy,
		Identifier: "46026",
		Product:    models.ProductSpectralWave,
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.New("boom"),
	}
	assert.Equal(t, "ndbc_buoy 46026/spectral_wave: unavailable (status 503): boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestKindClassification(t *testing.T) {
	assert.Equal(t, KindNotFound, kindForStatus(http.StatusNotFound))
	assert.Equal(t, KindRateLimited, kindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindTimeout, kindForStatus(http.StatusGatewayTimeout))
	assert.Equal(t, KindUnavailable, kindForStatus(http.StatusInternalServerError))
	assert.Equal(t, KindUnavailable, kindForStatus(http.StatusForbidden))

	assert.Equal(t, KindTimeout, kindForTransport(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, kindForTransport(fmt.Errorf("get: %w", timeoutErr{})))
	assert.Equal(t, KindUnavailable, kindForTransport(errors.New("connection refused")))
}
