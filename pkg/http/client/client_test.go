package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		baseURL     string
		timeout     time.Duration
		maxRetries  int
		wantTimeout time.Duration
		wantRetries int
	}{
		{
			name:        "default configuration",
			baseURL:     "https://api.tidesandcurrents.noaa.gov",
			wantTimeout: 30 * time.Second,
			wantRetries: 3,
		},
		{
			name:        "custom configuration",
			baseURL:     "https://www.ndbc.noaa.gov",
			timeout:     5 * time.Second,
			maxRetries:  5,
			wantTimeout: 5 * time.Second,
			wantRetries: 5,
		},
		{
			name:        "retries disabled",
			maxRetries:  -1,
			wantTimeout: 30 * time.Second,
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := New(Options{
				BaseURL:    tt.baseURL,
				Timeout:    tt.timeout,
				MaxRetries: tt.maxRetries,
			})

			assert.Equal(t, tt.baseURL, client.baseURL)
			assert.Equal(t, tt.wantTimeout, client.httpClient.Timeout)
			assert.Equal(t, tt.wantRetries, client.maxRetries)
		})
	}
}

func TestRequestFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		useBase bool
	}{
		{name: "absolute URL"},
		{name: "relative path with base URL", useBase: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/test?station=9414290", r.URL.String())
				assert.Equal(t, "tidesensors/1.0", r.Header.Get("User-Agent"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			defer server.Close()

			opts := Options{Timeout: 5 * time.Second}
			path := server.URL + "/test?station=9414290"
			if tt.useBase {
				opts.BaseURL = server.URL
				path = "/test?station=9414290"
			}

			resp, err := New(opts).Get(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
		})
	}
}

func TestRetriesOnRetryableStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statuses  []int
		wantCode  int
		wantCalls int32
	}{
		{name: "recovers after 503", statuses: []int{503, 200}, wantCode: 200, wantCalls: 2},
		{name: "recovers after 429", statuses: []int{429, 429, 200}, wantCode: 200, wantCalls: 3},
		{name: "no retry on 404", statuses: []int{404}, wantCode: 404, wantCalls: 1},
		{name: "gives up after retries", statuses: []int{500, 500, 500}, wantCode: 500, wantCalls: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				idx := int(n) - 1
				if idx >= len(tt.statuses) {
					idx = len(tt.statuses) - 1
				}
				w.WriteHeader(tt.statuses[idx])
			}))
			defer server.Close()

			client := New(Options{
				BaseURL:    server.URL,
				Timeout:    time.Second,
				MaxRetries: 2,
				Backoff:    time.Millisecond,
			})

			resp, err := client.Get(context.Background(), "/data")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:    server.URL,
		Timeout:    50 * time.Millisecond,
		MaxRetries: -1,
	})

	_, err := client.Get(context.Background(), "/test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout exceeded")
}

func TestContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:    server.URL,
		MaxRetries: 10,
		Backoff:    time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetFuncOverride(t *testing.T) {
	c := &Client{GetFunc: func(ctx context.Context, path string) (*Response, error) {
		return &Response{StatusCode: http.StatusTeapot, Body: []byte(path)}, nil
	}}

	resp, err := c.Get(context.Background(), "/stub")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "/stub", string(resp.Body))
}
