package usecase

import (
	"context"
	"errors"
	"testing"

	"StockSense/internal/domain/models"
	"StockSense/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBarWriter struct {
	bars map[string][]models.Bar
	err  error
}

func (w *memBarWriter) InsertBars(_ context.Context, market string, bars []models.Bar) error {
	if w.err != nil {
		return w.err
	}
	if w.bars == nil {
		w.bars = map[string][]models.Bar{}
	}
	w.bars[market] = append(w.bars[market], bars...)
	return nil
}

func TestImportBars(t *testing.T) {
	data := &testutil.StaticData{
		Bars: map[string][]models.Bar{
			"A": testutil.SyntheticBars("A", 30),
			"B": testutil.SyntheticBars("B", 20),
		},
		Markets: map[string][]string{"indian": {"A", "B", "GONE"}},
	}
	sink := &memBarWriter{}

	res, err := NewImportBarsUseCase(data, data, sink, nil).Import(context.Background(), "indian")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Symbols)
	assert.Equal(t, 50, res.Bars)
	assert.Equal(t, []string{"GONE"}, res.Skipped)
	assert.Len(t, sink.bars["indian"], 50)

	_, err = NewImportBarsUseCase(data, data, sink, nil).Import(context.Background(), "mars")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	sink.err = errors.New("disk full")
	_, err = NewImportBarsUseCase(data, data, sink, nil).Import(context.Background(), "indian")
	assert.ErrorContains(t, err, "disk full")
}
