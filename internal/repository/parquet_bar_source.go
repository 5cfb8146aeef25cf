package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	applogger "StockSense/pkg/logger"
)

// BhavcopyRow is one row of a bhavcopy style parquet export.
type BhavcopyRow struct {
	Symbol string  `parquet:"SYMBOL"`
	Date   string  `parquet:"DATE"`
	Open   float64 `parquet:"OPEN"`
	High   float64 `parquet:"HIGH"`
	Low    float64 `parquet:"LOW"`
	Close  float64 `parquet:"CLOSE"`
	Volume float64 `parquet:"VOLUME"`
}

// ParquetBarSource serves one market from a bhavcopy parquet file. The file is read once on
// first use. Periods are counted back from the latest date in the file.
type ParquetBarSource struct {
	path    string
	market  string
	topN    int
	minBars int
	l       *applogger.Logger

	once   sync.Once
	err    error
	bars   map[string][]models.Bar
	latest time.Time
}

func NewParquetBarSource(path, market string, topN, minBars int, l *applogger.Logger) *ParquetBarSource {
	if l == nil {
		l = applogger.NewNop()
	}
	return &ParquetBarSource{path: path, market: market, topN: topN, minBars: minBars, l: l}
}

func (s *ParquetBarSource) load() error {
	s.once.Do(func() {
		rows, err := parquet.ReadFile[BhavcopyRow](s.path)
		if err != nil {
			s.err = fmt.Errorf("%w: read %s: %w", models.ErrUpstreamFetch, s.path, err)
			return
		}
		s.bars = groupBhavcopy(rows)
		for _, bars := range s.bars {
			if last := bars[len(bars)-1].Date; last.After(s.latest) {
				s.latest = last
			}
		}
		s.l.Info("bhavcopy loaded",
			applogger.String("path", s.path),
			applogger.Int("rows", len(rows)),
			applogger.Int("symbols", len(s.bars)),
		)
	})
	return s.err
}

// groupBhavcopy groups rows by symbol, drops unparseable dates and keeps the last row per date.
func groupBhavcopy(rows []BhavcopyRow) map[string][]models.Bar {
	byDate := make(map[string]map[time.Time]models.Bar)
	for _, r := range rows {
		sym := strings.TrimSpace(r.Symbol)
		d, err := parseBhavDate(r.Date)
		if sym == "" || err != nil {
			continue
		}
		m, ok := byDate[sym]
		if !ok {
			m = make(map[time.Time]models.Bar)
			byDate[sym] = m
		}
		m[d] = models.Bar{Date: d, Symbol: sym, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}
	out := make(map[string][]models.Bar, len(byDate))
	for sym, m := range byDate {
		bars := make([]models.Bar, 0, len(m))
		for _, b := range m {
			bars = append(bars, b)
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
		out[sym] = bars
	}
	return out
}

var bhavDateLayouts = []string{models.DateLayout, "02-Jan-2006", "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05"}

func parseBhavDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range bhavDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func (s *ParquetBarSource) GetBars(_ context.Context, symbol string, period domrepo.Period) ([]models.Bar, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	bars, ok := s.bars[strings.TrimSpace(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s", models.ErrUpstreamFetch, symbol, s.path)
	}
	from := period.Start(s.latest)
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(from) })
	return append([]models.Bar(nil), bars[i:]...), nil
}

// Symbols returns the topN symbols by total traded volume that have at least minBars rows.
func (s *ParquetBarSource) Symbols(_ context.Context, market string) ([]string, error) {
	if market != s.market {
		return nil, fmt.Errorf("%w: parquet source serves %q, not %q", models.ErrInvalidInput, s.market, market)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	type ranked struct {
		symbol string
		volume float64
	}
	var list []ranked
	for sym, bars := range s.bars {
		if len(bars) < s.minBars {
			continue
		}
		var v float64
		for _, b := range bars {
			v += b.Volume
		}
		list = append(list, ranked{sym, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].volume != list[j].volume {
			return list[i].volume > list[j].volume
		}
		return list[i].symbol < list[j].symbol
	})
	if s.topN > 0 && len(list) > s.topN {
		list = list[:s.topN]
	}
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.symbol
	}
	return out, nil
}
