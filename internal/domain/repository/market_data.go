package repository

import (
	"context"

	"StockSense/internal/domain/models"
)

// MarketData supplies daily bars for a symbol, ascending by date with no duplicate dates.
// An empty result means no data; callers treat it as a soft failure.
type MarketData interface {
	GetBars(ctx context.Context, symbol string, period Period) ([]models.Bar, error)
}

// Universe enumerates the symbols of a market for bulk training.
type Universe interface {
	Symbols(ctx context.Context, market string) ([]string, error)
}

// BarWriter stores daily bars of a market.
type BarWriter interface {
	InsertBars(ctx context.Context, market string, bars []models.Bar) error
}
