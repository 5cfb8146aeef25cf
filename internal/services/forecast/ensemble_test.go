package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsemble(t *testing.T) {
	mean, std, err := Ensemble([][]float64{
		{10, 20, 30},
		{12, 20, 34},
	})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{11, 20, 32}, mean, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0, 2}, std, 1e-12)
}

func TestEnsemble_SinglePath(t *testing.T) {
	mean, std, err := Ensemble([][]float64{{5, 6}})
	require.NoError(t, err)

	assert.Equal(t, []float64{5, 6}, mean)
	assert.Equal(t, []float64{0, 0}, std)
}

func TestEnsemble_Errors(t *testing.T) {
	_, _, err := Ensemble(nil)
	assert.Error(t, err)

	_, _, err = Ensemble([][]float64{{1, 2}, {1}})
	assert.Error(t, err)
}
