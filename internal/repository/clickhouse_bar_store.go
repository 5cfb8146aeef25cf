package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	pkgch "StockSense/pkg/clickhouse"
	applogger "StockSense/pkg/logger"
)

// DailyBarsSchema creates the daily bar table used by CHBarStore.
var DailyBarsSchema = []string{
	`CREATE DATABASE IF NOT EXISTS stocksense`,
	`CREATE TABLE IF NOT EXISTS stocksense.daily_bars (
        date   Date,
        market LowCardinality(String),
        symbol LowCardinality(String),
        open   Float64,
        high   Float64,
        low    Float64,
        close  Float64,
        volume Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (market, symbol, date)`,
}

const (
	dailyBarsTable  = "stocksense.daily_bars"
	insertChunkSize = 2000
)

// CHBarStore serves daily bars and volume-ranked universes from ClickHouse.
type CHBarStore struct {
	db      *sql.DB
	l       *applogger.Logger
	topN    int
	minBars int
	now     func() time.Time
}

// NewCHBarStore creates the store. topN and minBars bound Symbols; zero topN returns every symbol.
func NewCHBarStore(ch *pkgch.Client, topN, minBars int) *CHBarStore {
	return &CHBarStore{db: ch.DB(), topN: topN, minBars: minBars, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, period domrepo.Period) ([]models.Bar, error) {
	start := time.Now()
	from := period.Start(s.now().UTC())
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	const q = `
        SELECT date, symbol, open, high, low, close, volume
        FROM ` + dailyBarsTable + ` FINAL
        WHERE symbol = ? AND date >= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from)
	if err != nil {
		s.logError("clickhouse get_bars query error", symbol, err)
		return nil, fmt.Errorf("%w: get bars %s: %w", models.ErrUpstreamFetch, symbol, err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logError("clickhouse get_bars scan error", symbol, err)
			return nil, fmt.Errorf("%w: scan bar: %w", models.ErrUpstreamFetch, err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse get_bars rows error", symbol, err)
		return nil, fmt.Errorf("%w: rows: %w", models.ErrUpstreamFetch, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_bars ok",
			applogger.String("symbol", symbol),
			applogger.String("period", string(period)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Symbols ranks the symbols of market by total traded volume.
func (s *CHBarStore) Symbols(ctx context.Context, market string) ([]string, error) {
	q := `
        SELECT symbol
        FROM ` + dailyBarsTable + `
        WHERE market = ?
        GROUP BY symbol
        HAVING count() >= ?
        ORDER BY sum(volume) DESC, symbol ASC
    `
	args := []any{market, s.minBars}
	if s.topN > 0 {
		q += " LIMIT ?"
		args = append(args, s.topN)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: universe %s: %w", models.ErrUpstreamFetch, market, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("%w: scan symbol: %w", models.ErrUpstreamFetch, err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// InsertBars writes bars for market in multi-row VALUES chunks.
func (s *CHBarStore) InsertBars(ctx context.Context, market string, bars []models.Bar) error {
	for start := 0; start < len(bars); start += insertChunkSize {
		end := min(start+insertChunkSize, len(bars))
		q, args := buildBarInsert(market, bars[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("%w: insert bars: %w", models.ErrStorage, err)
		}
	}
	return nil
}

func buildBarInsert(market string, bars []models.Bar) (string, []any) {
	values := make([]string, 0, len(bars))
	args := make([]any, 0, len(bars)*8)
	for _, b := range bars {
		if b.Symbol == "" || b.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, b.Date.UTC(), market, b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (date, market, symbol, open, high, low, close, volume) VALUES %s",
		dailyBarsTable, strings.Join(values, ","))
	return q, args
}

func (s *CHBarStore) logError(msg, symbol string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("symbol", symbol), applogger.Error(err))
	}
}
