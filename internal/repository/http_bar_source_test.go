package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
)

const chartBody = `{"chart":{"result":[{
  "timestamp":[1704205800,1704292200,1704378600,1704378700],
  "indicators":{"quote":[{
    "open":[10,11,null,12],
    "high":[11,12,13,13],
    "low":[9,10,11,11],
    "close":[10.5,null,12.5,12.7],
    "volume":[1000,2000,null,3000]
  }]}
}],"error":null}}`

func TestHTTPBarSource_GetBars(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	src := NewHTTPBarSource(srv.URL + "/")
	bars, err := src.GetBars(context.Background(), "RELIANCE.NS", domrepo.Period1Y)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/RELIANCE.NS", gotPath)
	assert.Equal(t, "1y", gotRange)
	// null close dropped, two timestamps on the same day collapse to the later one
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 12.7, bars[1].Close)
	assert.Equal(t, 3000.0, bars[1].Volume)
	assert.Equal(t, "RELIANCE.NS", bars[1].Symbol)
}

func TestHTTPBarSource_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	src := NewHTTPBarSource(srv.URL, WithRetry(3, time.Millisecond))
	bars, err := src.GetBars(context.Background(), "AAPL", domrepo.Period2Y)

	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPBarSource_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	src := NewHTTPBarSource(srv.URL, WithRetry(3, time.Millisecond))
	_, err := src.GetBars(context.Background(), "NOPE", domrepo.Period2Y)

	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPBarSource_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad","description":"invalid symbol"}}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPBarSource(srv.URL).GetBars(context.Background(), "???", domrepo.Period2Y)

	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
	assert.Contains(t, err.Error(), "invalid symbol")
}
