package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"StockSense/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildBarInsert(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		{Date: day, Symbol: "AAA", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: day, Symbol: ""},
		{Symbol: "BBB"},
		{Date: day.AddDate(0, 0, 1), Symbol: "AAA", Close: 1.6},
	}

	q, args := buildBarInsert("indian", bars)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO stocksense.daily_bars (date, market, symbol"))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?)"))
	assert.Len(t, args, 16)
	assert.Equal(t, "indian", args[1])
	assert.Equal(t, "AAA", args[2])
	assert.Equal(t, 1.6, args[14])
}

func TestStaticUniverse(t *testing.T) {
	u := NewStaticUniverse(map[string][]string{"us": {"AAPL", "MSFT"}})

	syms, err := u.Symbols(context.Background(), "us")
	assert.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
	syms[0] = "changed"
	again, _ := u.Symbols(context.Background(), "us")
	assert.Equal(t, "AAPL", again[0])

	_, err = u.Symbols(context.Background(), "mars")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

type fixedUniverse []string

func (f fixedUniverse) Symbols(context.Context, string) ([]string, error) { return f, nil }

func TestStaticUniverse_Fallback(t *testing.T) {
	u := NewStaticUniverse(map[string][]string{"us": {"AAPL"}, "indian": nil}).
		WithFallback(fixedUniverse{"TCS.NS", "INFY.NS"})

	syms, err := u.Symbols(context.Background(), "indian")
	assert.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, syms)

	syms, err = u.Symbols(context.Background(), "us")
	assert.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, syms)

	syms, err = u.Symbols(context.Background(), "nse")
	assert.NoError(t, err)
	assert.Len(t, syms, 2)
}
