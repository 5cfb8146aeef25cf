package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	xhttp "StockSense/pkg/http"
	applogger "StockSense/pkg/logger"
)

// chartResponse is the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// HTTPBarSource fetches daily bars from a Yahoo-chart compatible JSON API.
type HTTPBarSource struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
	backoff  time.Duration
	l        *applogger.Logger
}

// HTTPBarOption configures HTTPBarSource.
type HTTPBarOption func(*HTTPBarSource)

func WithHTTPTimeout(d time.Duration) HTTPBarOption {
	return func(s *HTTPBarSource) {
		s.client = xhttp.NewClient(xhttp.WithTimeout(d))
	}
}

// WithRetry sets the number of attempts for transient failures and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) HTTPBarOption {
	return func(s *HTTPBarSource) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

func WithHTTPLogger(l *applogger.Logger) HTTPBarOption {
	return func(s *HTTPBarSource) {
		s.l = l
	}
}

func NewHTTPBarSource(baseURL string, opts ...HTTPBarOption) *HTTPBarSource {
	s := &HTTPBarSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		attempts: 3,
		backoff:  500 * time.Millisecond,
		l:        applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPBarSource) GetBars(ctx context.Context, symbol string, period domrepo.Period) ([]models.Bar, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", models.ErrInvalidInput)
	}
	if !domrepo.IsValidPeriod(period) {
		period = domrepo.DefaultPeriod()
	}

	var resp chartResponse
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"range":    {string(period)},
			"interval": {"1d"},
		},
	}
	if err := s.getWithRetry(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("%w: chart %s: %w", models.ErrUpstreamFetch, symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: chart %s: %s: %s", models.ErrUpstreamFetch, symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	bars := chartToBars(symbol, &resp)
	s.l.Debug("chart fetched", applogger.String("symbol", symbol), applogger.String("period", string(period)), applogger.Int("bars", len(bars)))
	return bars, nil
}

func (s *HTTPBarSource) getWithRetry(ctx context.Context, opts *xhttp.RequestOptions, dest interface{}) error {
	var err error
	for i := 1; i <= max(1, s.attempts); i++ {
		err = s.client.SendAndParse(ctx, opts, dest)
		if err == nil || !retryable(err) || i == s.attempts {
			return err
		}
		s.l.Warn("chart request retry", applogger.String("url", opts.URL), applogger.Int("attempt", i), applogger.Error(err))
		select {
		case <-time.After(time.Duration(i) * s.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// chartToBars drops rows with a missing or non-finite close and keeps one bar per day.
func chartToBars(symbol string, resp *chartResponse) []models.Bar {
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return []models.Bar{}
	}
	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	at := func(xs []*float64, i int) float64 {
		if i >= len(xs) || xs[i] == nil {
			return math.NaN()
		}
		return *xs[i]
	}

	byDay := make(map[time.Time]models.Bar, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		c := at(q.Close, i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		y, m, d := time.Unix(ts, 0).UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		vol := at(q.Volume, i)
		if math.IsNaN(vol) {
			vol = 0
		}
		byDay[day] = models.Bar{
			Date:   day,
			Symbol: symbol,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  c,
			Volume: vol,
		}
	}
	bars := make([]models.Bar, 0, len(byDay))
	for _, b := range byDay {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}
