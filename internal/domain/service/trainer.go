package service

import (
	"context"

	"StockSense/internal/domain/models"
)

// ModelTrainer fits, evaluates and persists the model for one symbol.
// The returned artifact is the one written to the model store.
type ModelTrainer interface {
	TrainOne(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error)
}

// JobEnqueuer schedules background work by message type.
type JobEnqueuer interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// ModelEvictor drops in-process copies of a symbol's model once a newer one is stored.
type ModelEvictor interface {
	Forget(symbol string)
}
