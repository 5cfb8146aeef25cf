package usecase

import (
	"context"
	"sync"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/services/lstm"
)

func smallNetwork(c *lstm.Config) {
	c.Units1, c.Units2, c.DenseUnits = 6, 4, 3
}

func newTestTrainer(store domrepo.ModelStore, events domrepo.EventPublisher, metrics domrepo.Metrics) *Trainer {
	return NewTrainer(store, events, metrics, nil,
		WithEpochs(2),
		WithNetwork(smallNetwork),
	)
}

// countingTrainer records every TrainOne call before delegating.
type countingTrainer struct {
	inner domsvc.ModelTrainer
	mu    sync.Mutex
	calls []string
}

func (c *countingTrainer) TrainOne(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error) {
	c.mu.Lock()
	c.calls = append(c.calls, symbol)
	c.mu.Unlock()
	return c.inner.TrainOne(ctx, symbol, bars)
}

// ForSimulation keeps counting calls made through seeded copies of the inner trainer.
func (c *countingTrainer) ForSimulation(i int) domsvc.ModelTrainer {
	st, ok := c.inner.(simulationTrainer)
	if !ok {
		return c
	}
	inner := st.ForSimulation(i)
	return trainerFunc(func(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error) {
		c.mu.Lock()
		c.calls = append(c.calls, symbol)
		c.mu.Unlock()
		return inner.TrainOne(ctx, symbol, bars)
	})
}

func (c *countingTrainer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type trainerFunc func(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error)

func (f trainerFunc) TrainOne(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error) {
	return f(ctx, symbol, bars)
}
