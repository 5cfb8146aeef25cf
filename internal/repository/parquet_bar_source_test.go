package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
)

func writeBhavcopy(t *testing.T, rows []BhavcopyRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bhavcopy.parquet")
	require.NoError(t, parquet.WriteFile(path, rows))
	return path
}

func bhavRows(symbol string, n int, volume float64, start time.Time) []BhavcopyRow {
	rows := make([]BhavcopyRow, n)
	for i := range rows {
		c := 100 + float64(i)
		rows[i] = BhavcopyRow{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i).Format(models.DateLayout),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: volume,
		}
	}
	return rows
}

func TestParquetBarSource(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []BhavcopyRow
	rows = append(rows, bhavRows("HEAVY", 400, 5000, start)...)
	rows = append(rows, bhavRows("LIGHT", 400, 10, start)...)
	rows = append(rows, bhavRows("SHORT", 50, 1e9, start)...)
	rows = append(rows, bhavRows("MID", 400, 100, start)...)
	// duplicate date keeps the later row, bad date is dropped
	rows = append(rows,
		BhavcopyRow{Symbol: "MID", Date: start.Format(models.DateLayout), Close: 42, Volume: 100},
		BhavcopyRow{Symbol: "MID", Date: "someday", Close: 1},
	)
	src := NewParquetBarSource(writeBhavcopy(t, rows), "indian", 2, 200, nil)
	ctx := context.Background()

	syms, err := src.Symbols(ctx, "indian")
	require.NoError(t, err)
	assert.Equal(t, []string{"HEAVY", "MID"}, syms)

	_, err = src.Symbols(ctx, "us")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	all, err := src.GetBars(ctx, "MID", domrepo.PeriodMax)
	require.NoError(t, err)
	require.Len(t, all, 400)
	assert.Equal(t, 42.0, all[0].Close)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].Date.After(all[i-1].Date))
	}

	// 400 days from 2023-01-01 ends 2024-02-04; 6mo back is 2023-08-04
	recent, err := src.GetBars(ctx, "HEAVY", domrepo.Period6M)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 8, 4, 0, 0, 0, 0, time.UTC), recent[0].Date)
	assert.Equal(t, all[len(all)-1].Date, recent[len(recent)-1].Date)

	_, err = src.GetBars(ctx, "NOPE", domrepo.Period1Y)
	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
}

func TestParquetBarSource_MissingFile(t *testing.T) {
	src := NewParquetBarSource(filepath.Join(t.TempDir(), "none.parquet"), "indian", 0, 0, nil)

	_, err := src.GetBars(context.Background(), "A", domrepo.Period1Y)

	assert.Equal(t, models.KindUpstreamFetch, models.KindOf(err))
}
