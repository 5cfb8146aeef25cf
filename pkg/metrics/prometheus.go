package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainings   *prometheus.CounterVec
	trainTime   *prometheus.HistogramVec
	testMAE     *prometheus.GaugeVec
	predictions *prometheus.CounterVec
	predictTime *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksense_trainings_total",
				Help: "Symbol training attempts by market and result",
			},
			[]string{"market", "result"},
		),
		trainTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksense_training_duration_seconds",
				Help:    "Duration of a single symbol training",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"market"},
		),
		testMAE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stocksense_model_test_mae",
				Help: "Held-out mean absolute error of the latest model per symbol",
			},
			[]string{"symbol"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksense_predictions_total",
				Help: "Prediction requests by model source and result",
			},
			[]string{"source", "result"},
		),
		predictTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksense_prediction_duration_seconds",
				Help:    "Duration of prediction requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksense_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
	}
}

// RecordTraining records one symbol training outcome.
func (r *Recorder) RecordTraining(market, result string, seconds float64) {
	r.trainings.WithLabelValues(market, result).Inc()
	r.trainTime.WithLabelValues(market).Observe(seconds)
}

func (r *Recorder) RecordModelQuality(symbol string, testMAE float64) {
	r.testMAE.WithLabelValues(symbol).Set(testMAE)
}

// RecordPrediction records a prediction keyed by where the model came from.
func (r *Recorder) RecordPrediction(source, result string, seconds float64) {
	r.predictions.WithLabelValues(source, result).Inc()
	r.predictTime.WithLabelValues(source).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
