// Package lstm is a small stacked-LSTM regressor trained with Adam on mean squared error.
//
// Topology: LSTM(Units1, full sequence) -> Dropout -> LSTM(Units2, last state) -> Dropout
// -> Dense(DenseUnits, relu) -> Dense(1, linear).
package lstm

import (
	"fmt"

	"StockSense/internal/domain/models"
)

// Config fixes the shape and the optimizer of a network.
type Config struct {
	Lookback     int     `json:"lookback"`
	Features     int     `json:"features"`
	Units1       int     `json:"units1"`
	Units2       int     `json:"units2"`
	DenseUnits   int     `json:"dense_units"`
	Dropout      float64 `json:"dropout"`
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	Epsilon      float64 `json:"epsilon"`
	Seed         uint64  `json:"seed"`
}

// DefaultConfig returns the production topology for a (lookback x features) input.
func DefaultConfig(lookback, features int) Config {
	return Config{
		Lookback:     lookback,
		Features:     features,
		Units1:       50,
		Units2:       50,
		DenseUnits:   25,
		Dropout:      0.2,
		LearningRate: 1e-3,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		Seed:         42,
	}
}

// Validate checks that every dimension is positive and the dropout rate is in [0,1).
func (c Config) Validate() error {
	switch {
	case c.Lookback <= 0 || c.Features <= 0:
		return fmt.Errorf("lstm config: %w: input shape %dx%d", models.ErrInvalidInput, c.Lookback, c.Features)
	case c.Units1 <= 0 || c.Units2 <= 0 || c.DenseUnits <= 0:
		return fmt.Errorf("lstm config: %w: units %d/%d/%d", models.ErrInvalidInput, c.Units1, c.Units2, c.DenseUnits)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("lstm config: %w: dropout %v", models.ErrInvalidInput, c.Dropout)
	case c.LearningRate <= 0:
		return fmt.Errorf("lstm config: %w: learning rate %v", models.ErrInvalidInput, c.LearningRate)
	}
	return nil
}
