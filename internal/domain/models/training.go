package models

import "time"

// FailedEntry records why a symbol was skipped in a bulk run.
type FailedEntry struct {
	Symbol string    `json:"symbol"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

// Summary is the aggregate record of one bulk training run.
type Summary struct {
	Market        string        `json:"market"`
	TotalStocks   int           `json:"total_stocks"`
	Successful    int           `json:"successful"`
	Failed        int           `json:"failed"`
	FailedSymbols []string      `json:"failed_symbols"`
	Failures      []FailedEntry `json:"failures,omitempty"`
	TrainingDate  time.Time     `json:"training_date"`
	Duration      float64       `json:"duration_seconds"`
	Models        []Metadata    `json:"models"`
}

// TrainingStatus aggregates the last summaries of every configured market.
type TrainingStatus struct {
	Markets      map[string]*Summary `json:"markets"`
	TotalModels  int                 `json:"total_models"`
	QueuePending int64               `json:"queue_pending,omitempty"`
}

// FullReport is returned by a run over all configured markets.
type FullReport struct {
	Success     bool                `json:"success"`
	TotalModels int                 `json:"total_models"`
	Summaries   map[string]*Summary `json:"summaries"`
	Error       string              `json:"error,omitempty"`
}

// PredictionResult is the response of the inference path. Not persisted.
// Std, Simulations and NumSimulations are set when the forecast was trained in the request;
// Predictions is then the per-step mean of Simulations.
type PredictionResult struct {
	Success            bool        `json:"success"`
	Symbol             string      `json:"symbol"`
	Predictions        []float64   `json:"predictions"`
	FutureDates        []string    `json:"future_dates"`
	HistoricalPrices   []float64   `json:"historical_prices"`
	HistoricalDates    []string    `json:"historical_dates"`
	CurrentPrice       float64     `json:"current_price"`
	PredictedPrice     float64     `json:"predicted_price"`
	PriceChangePercent float64     `json:"price_change_percent"`
	ModelMetadata      *Metadata   `json:"model_metadata,omitempty"`
	UsingPretrained    bool        `json:"using_pretrained"`
	Std                []float64   `json:"std,omitempty"`
	Simulations        [][]float64 `json:"simulations,omitempty"`
	NumSimulations     int         `json:"num_simulations,omitempty"`
}

// FeatureSnapshot is the computed feature frame exposed for inspection.
type FeatureSnapshot struct {
	Symbol   string      `json:"symbol"`
	Period   string      `json:"period"`
	Features []string    `json:"features"`
	Dates    []string    `json:"dates"`
	Rows     [][]float64 `json:"rows"`
	Count    int         `json:"count"`
}
