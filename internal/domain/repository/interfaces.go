package repository

import (
	"context"

	"StockSense/internal/domain/models"
)

// ModelStore persists trained artifacts keyed by symbol.
// Load reports ok=false with a nil error when any part of the artifact is absent.
type ModelStore interface {
	Save(ctx context.Context, a *models.Artifact) error
	Load(ctx context.Context, symbol string) (a *models.Artifact, ok bool, err error)
}

// ModelCounter is implemented by stores that can count their artifacts.
type ModelCounter interface {
	Count(ctx context.Context) (int, error)
}

// SummaryStore keeps the last bulk-run summary per market.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s *models.Summary) error
	LoadSummary(ctx context.Context, market string) (s *models.Summary, ok bool, err error)
}

// EventPublisher announces training results to downstream consumers.
type EventPublisher interface {
	PublishTrained(ctx context.Context, md models.Metadata) error
	PublishSummary(ctx context.Context, s *models.Summary) error
	Close() error
}

type Metrics interface {
	RecordTraining(market, result string, seconds float64)
	RecordModelQuality(symbol string, testMAE float64)
	RecordPrediction(source, result string, seconds float64)
	RecordError(kind string)
}
