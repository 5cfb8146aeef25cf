package usecase

import (
	"context"
	"fmt"
	"strings"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	"StockSense/internal/services/features"
)

// FeaturesUseCase exposes the computed feature frame of a symbol.
type FeaturesUseCase struct {
	data domrepo.MarketData
}

func NewFeaturesUseCase(data domrepo.MarketData) *FeaturesUseCase {
	return &FeaturesUseCase{data: data}
}

type GetFeaturesParams struct {
	Symbol string
	Period domrepo.Period
	Limit  int
}

// GetFeatures returns at most Limit of the most recent feature rows.
func (uc *FeaturesUseCase) GetFeatures(ctx context.Context, p GetFeaturesParams) (*models.FeatureSnapshot, error) {
	p.Symbol = strings.TrimSpace(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("features: %w: symbol required", models.ErrInvalidInput)
	}
	if p.Period == "" {
		p.Period = domrepo.Period6M
	}
	if !domrepo.IsValidPeriod(p.Period) {
		return nil, fmt.Errorf("features: %w: period %q", models.ErrInvalidInput, p.Period)
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	bars, err := uc.data.GetBars(ctx, p.Symbol, p.Period)
	if err != nil {
		return nil, fmt.Errorf("features %s: %w", p.Symbol, err)
	}
	frame := features.ComputeIndicators(bars).Tail(p.Limit)

	dates := make([]string, frame.Len())
	for i, d := range frame.Dates {
		dates[i] = d.Format(models.DateLayout)
	}
	rows := frame.Rows
	if rows == nil {
		rows = [][]float64{}
	}
	return &models.FeatureSnapshot{
		Symbol:   p.Symbol,
		Period:   string(p.Period),
		Features: append([]string(nil), features.Names...),
		Dates:    dates,
		Rows:     rows,
		Count:    frame.Len(),
	}, nil
}
