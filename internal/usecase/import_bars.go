package usecase

import (
	"context"
	"fmt"

	domrepo "StockSense/internal/domain/repository"
	"StockSense/pkg/logger"
)

// ImportBarsUseCase copies the full history of a market from one bar source into a BarWriter.
type ImportBarsUseCase struct {
	source   domrepo.MarketData
	universe domrepo.Universe
	sink     domrepo.BarWriter
	log      *logger.Logger
}

func NewImportBarsUseCase(source domrepo.MarketData, universe domrepo.Universe, sink domrepo.BarWriter, log *logger.Logger) *ImportBarsUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &ImportBarsUseCase{source: source, universe: universe, sink: sink, log: log}
}

// ImportResult counts what was written.
type ImportResult struct {
	Market  string   `json:"market"`
	Symbols int      `json:"symbols"`
	Bars    int      `json:"bars"`
	Skipped []string `json:"skipped,omitempty"`
}

// Import writes every symbol of market. A symbol whose bars cannot be read is skipped;
// a write failure stops the import.
func (uc *ImportBarsUseCase) Import(ctx context.Context, market string) (*ImportResult, error) {
	symbols, err := uc.universe.Symbols(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("import %s: symbols: %w", market, err)
	}
	res := &ImportResult{Market: market}
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		bars, err := uc.source.GetBars(ctx, sym, domrepo.PeriodMax)
		if err != nil || len(bars) == 0 {
			uc.log.Warn("import skipped symbol", logger.String("symbol", sym), logger.Error(err))
			res.Skipped = append(res.Skipped, sym)
			continue
		}
		if err := uc.sink.InsertBars(ctx, market, bars); err != nil {
			return res, fmt.Errorf("import %s: %s: %w", market, sym, err)
		}
		res.Symbols++
		res.Bars += len(bars)
	}
	uc.log.Info("import done",
		logger.String("market", market),
		logger.Int("symbols", res.Symbols),
		logger.Int("bars", res.Bars),
	)
	return res, nil
}
