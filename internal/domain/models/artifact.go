package models

import (
	"strings"
	"time"
)

// Metadata describes one trained per-symbol model.
// Features is the authoritative column order the model expects.
type Metadata struct {
	Symbol          string    `json:"symbol"`
	TrainedDate     time.Time `json:"trained_date"`
	TrainingSamples int       `json:"training_samples"`
	TestSamples     int       `json:"test_samples"`
	TestLoss        float64   `json:"test_loss"`
	TestMAE         float64   `json:"test_mae"`
	FinalTrainLoss  float64   `json:"final_train_loss"`
	ValLoss         float64   `json:"val_loss,omitempty"`
	R2Score         float64   `json:"r2_score"`
	Epochs          int       `json:"epochs"`
	EpochsRun       int       `json:"epochs_run"`
	Lookback        int       `json:"lookback"`
	DataPoints      int       `json:"data_points"`
	Features        []string  `json:"features"`
	BundleID        string    `json:"bundle_id"`
}

// ScalerState is the fitted state of a column-wise min-max scaler.
type ScalerState struct {
	DataMin []float64 `json:"data_min"`
	DataMax []float64 `json:"data_max"`
}

// ScalerPair keeps the feature and target scalers fitted for one model together.
type ScalerPair struct {
	BundleID string      `json:"bundle_id"`
	Feature  ScalerState `json:"feature_scaler"`
	Target   ScalerState `json:"target_scaler"`
}

// Artifact is the persisted bundle for one symbol.
// Weights holds the serialized network snapshot.
type Artifact struct {
	Metadata Metadata
	Scalers  ScalerPair
	Weights  []byte
}

var keyReplacer = strings.NewReplacer(".", "_", "&", "AND")

// ArtifactKey derives the storage key for a symbol, e.g. "RELIANCE.NS" -> "RELIANCE_NS".
func ArtifactKey(symbol string) string {
	return keyReplacer.Replace(strings.TrimSpace(symbol))
}
