package dataset

import (
	"fmt"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/internal/services/features"
)

// MinSamplesMargin is the number of rows required beyond the lookback before a symbol is trainable.
const MinSamplesMargin = 50

// Dataset is the supervised form of one symbol's feature frame.
// X[i] is the scaled window ending just before LabelDates[i]; Y[i] is the scaled close on that date.
type Dataset struct {
	X          [][][]float64
	Y          []float64
	LabelDates []time.Time
	Scalers    ScalerPair
	Lookback   int
	Cleaned    bool
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// BuildSequences scales the frame and slides a lookback window across it.
func BuildSequences(frame features.Frame, lookback int) (*Dataset, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("build sequences: %w: lookback %d", models.ErrInvalidInput, lookback)
	}
	if need := lookback + MinSamplesMargin; frame.Len() < need {
		return nil, fmt.Errorf("build sequences: %w: have %d rows, need %d", models.ErrInsufficientData, frame.Len(), need)
	}

	rows := frame.Rows
	cleaned := false
	if !AllFinite(rows) {
		rows, cleaned = FillNonFinite(rows)
		if !AllFinite(rows) {
			return nil, fmt.Errorf("build sequences: %w", models.ErrNonFiniteData)
		}
	}

	featScaler, err := FitMinMax(rows)
	if err != nil {
		return nil, fmt.Errorf("build sequences: %w", err)
	}
	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r[features.ColClose]
	}
	targetScaler, err := FitMinMaxColumn(closes)
	if err != nil {
		return nil, fmt.Errorf("build sequences: %w", err)
	}
	scaled, err := featScaler.Transform(rows)
	if err != nil {
		return nil, fmt.Errorf("build sequences: %w", err)
	}

	n := len(rows) - lookback
	ds := &Dataset{
		X:          make([][][]float64, 0, n),
		Y:          make([]float64, 0, n),
		LabelDates: make([]time.Time, 0, n),
		Scalers:    ScalerPair{Feature: featScaler, Target: targetScaler},
		Lookback:   lookback,
		Cleaned:    cleaned,
	}
	for i := lookback; i < len(rows); i++ {
		ds.X = append(ds.X, scaled[i-lookback:i])
		ds.Y = append(ds.Y, targetScaler.TransformValue(0, closes[i]))
		if i < len(frame.Dates) {
			ds.LabelDates = append(ds.LabelDates, frame.Dates[i])
		}
	}
	return ds, nil
}

// Split cuts the dataset chronologically at int(len*ratio); no shuffling.
func (d *Dataset) Split(ratio float64) (trainX [][][]float64, trainY []float64, testX [][][]float64, testY []float64) {
	at := int(float64(d.Len()) * ratio)
	return d.X[:at], d.Y[:at], d.X[at:], d.Y[at:]
}
