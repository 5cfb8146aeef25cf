package forecast

import (
	"errors"
	"testing"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/internal/services/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepModel returns the last close plus 0.1 and records every window it sees.
type stepModel struct {
	seen [][][]float64
	err  error
}

func (s *stepModel) Predict(w [][]float64) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	cp := make([][]float64, len(w))
	for i, r := range w {
		cp[i] = append([]float64(nil), r...)
	}
	s.seen = append(s.seen, cp)
	return w[len(w)-1][0] + 0.1, nil
}

func window() [][]float64 {
	return [][]float64{
		{0.1, 7, 7, 7, 7, 7, 7, 7, 7},
		{0.2, 8, 8, 8, 8, 8, 8, 8, 8},
		{0.3, 9, 9, 9, 9, 9, 9, 9, 9},
	}
}

func TestRecursive_StaleCopiesOtherColumns(t *testing.T) {
	m := &stepModel{}
	in := window()

	out, err := Recursive(m, in, 3)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.4, 0.5, 0.6}, out, 1e-12)
	require.Len(t, m.seen, 3)
	last := m.seen[2]
	require.Len(t, last, 3)
	assert.InDelta(t, 0.4, last[1][0], 1e-12)
	assert.InDelta(t, 0.5, last[2][0], 1e-12)
	// non-close features are copied from the last observed row
	assert.Equal(t, []float64{9, 9, 9, 9, 9, 9, 9, 9}, last[2][1:])
	assert.Equal(t, window(), in)
}

func TestRecursive_Validation(t *testing.T) {
	m := &stepModel{}
	for _, days := range []int{0, -1, 91} {
		_, err := Recursive(m, window(), days)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "days=%d", days)
	}
	_, err := Recursive(m, nil, 5)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	boom := errors.New("boom")
	_, err = Recursive(&stepModel{err: boom}, window(), 2)
	assert.ErrorIs(t, err, boom)

	out, err := Recursive(m, window(), 90)
	require.NoError(t, err)
	assert.Len(t, out, 90)
}

func TestInverseAndDates(t *testing.T) {
	target, err := dataset.FitMinMaxColumn([]float64{100, 200})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{100, 150, 250}, Inverse(target, []float64{0, 0.5, 1.5}), 1e-9)

	last := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	dates := FutureDates(last, 3)
	assert.Equal(t, []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}, dates)

	assert.InDelta(t, 10.0, ChangePercent(100, 110), 1e-12)
	assert.Zero(t, ChangePercent(0, 5))
}
