package dataset

import (
	"fmt"

	"StockSense/internal/domain/models"
)

// MinMaxScaler maps every column independently onto [0,1] using the fitted min and max.
// A constant column maps to 0 and inverts back to its constant.
type MinMaxScaler struct {
	min []float64
	max []float64
}

// FitMinMax fits a scaler over rows (n × cols).
func FitMinMax(rows [][]float64) (*MinMaxScaler, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("fit scaler: %w: empty input", models.ErrInsufficientData)
	}
	cols := len(rows[0])
	s := &MinMaxScaler{min: make([]float64, cols), max: make([]float64, cols)}
	copy(s.min, rows[0])
	copy(s.max, rows[0])
	for _, r := range rows[1:] {
		if len(r) != cols {
			return nil, fmt.Errorf("fit scaler: %w: ragged rows", models.ErrInvalidInput)
		}
		for j, v := range r {
			if v < s.min[j] {
				s.min[j] = v
			}
			if v > s.max[j] {
				s.max[j] = v
			}
		}
	}
	return s, nil
}

// FitMinMaxColumn fits a single-column scaler over values.
func FitMinMaxColumn(values []float64) (*MinMaxScaler, error) {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return FitMinMax(rows)
}

// ScalerFromState rebuilds a fitted scaler.
func ScalerFromState(st models.ScalerState) (*MinMaxScaler, error) {
	if len(st.DataMin) == 0 || len(st.DataMin) != len(st.DataMax) {
		return nil, fmt.Errorf("scaler state: %w: min/max length %d/%d", models.ErrArtifactCorrupt, len(st.DataMin), len(st.DataMax))
	}
	s := &MinMaxScaler{min: make([]float64, len(st.DataMin)), max: make([]float64, len(st.DataMax))}
	copy(s.min, st.DataMin)
	copy(s.max, st.DataMax)
	return s, nil
}

// State exports the fitted min and max.
func (s *MinMaxScaler) State() models.ScalerState {
	st := models.ScalerState{DataMin: make([]float64, len(s.min)), DataMax: make([]float64, len(s.max))}
	copy(st.DataMin, s.min)
	copy(st.DataMax, s.max)
	return st
}

// Columns returns the number of fitted columns.
func (s *MinMaxScaler) Columns() int { return len(s.min) }

func (s *MinMaxScaler) scale(j int) float64 {
	r := s.max[j] - s.min[j]
	if r == 0 {
		return 1
	}
	return 1 / r
}

// Transform scales rows into a new table.
func (s *MinMaxScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(s.min) {
			return nil, fmt.Errorf("transform: %w: row has %d columns, scaler %d", models.ErrFeatureContract, len(r), len(s.min))
		}
		o := make([]float64, len(r))
		for j, v := range r {
			o[j] = (v - s.min[j]) * s.scale(j)
		}
		out[i] = o
	}
	return out, nil
}

// InverseTransform maps scaled rows back to original units.
func (s *MinMaxScaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(s.min) {
			return nil, fmt.Errorf("inverse transform: %w: row has %d columns, scaler %d", models.ErrFeatureContract, len(r), len(s.min))
		}
		o := make([]float64, len(r))
		for j, v := range r {
			o[j] = v/s.scale(j) + s.min[j]
		}
		out[i] = o
	}
	return out, nil
}

// TransformValue scales one value of column j.
func (s *MinMaxScaler) TransformValue(j int, v float64) float64 {
	return (v - s.min[j]) * s.scale(j)
}

// InverseValue maps one scaled value of column j back.
func (s *MinMaxScaler) InverseValue(j int, v float64) float64 {
	return v/s.scale(j) + s.min[j]
}

// ScalerPair is the feature scaler and the target (close) scaler of one model.
type ScalerPair struct {
	Feature *MinMaxScaler
	Target  *MinMaxScaler
}

// State exports both scalers under a shared bundle id.
func (p ScalerPair) State(bundleID string) models.ScalerPair {
	return models.ScalerPair{BundleID: bundleID, Feature: p.Feature.State(), Target: p.Target.State()}
}

// PairFromState rebuilds both scalers; the target scaler must have exactly one column.
func PairFromState(st models.ScalerPair) (ScalerPair, error) {
	f, err := ScalerFromState(st.Feature)
	if err != nil {
		return ScalerPair{}, fmt.Errorf("feature scaler: %w", err)
	}
	t, err := ScalerFromState(st.Target)
	if err != nil {
		return ScalerPair{}, fmt.Errorf("target scaler: %w", err)
	}
	if t.Columns() != 1 {
		return ScalerPair{}, fmt.Errorf("target scaler: %w: %d columns", models.ErrArtifactCorrupt, t.Columns())
	}
	return ScalerPair{Feature: f, Target: t}, nil
}
