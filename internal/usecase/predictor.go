package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/service/cache"
	"StockSense/internal/services/dataset"
	"StockSense/internal/services/features"
	"StockSense/internal/services/forecast"
	"StockSense/internal/services/lstm"
	"StockSense/pkg/logger"
)

// PredictorConfig controls the inference path.
type PredictorConfig struct {
	// RecentPeriod is fetched for pretrained predictions.
	RecentPeriod domrepo.Period
	// FallbackPeriod is fetched when a model has to be trained first.
	FallbackPeriod domrepo.Period
	// AsyncFallback enqueues training on a store miss instead of training in the request.
	AsyncFallback bool
	// CacheTTL keeps decoded models in memory; zero disables the cache.
	CacheTTL time.Duration
}

// PredictParams is one inference request.
type PredictParams struct {
	Symbol     string
	Period     domrepo.Period
	FutureDays int
	// Fresh skips the model store and always trains first.
	Fresh bool
	// Simulations is the number of independently seeded models trained for a fresh
	// forecast; zero means one. A store miss always trains a single model.
	Simulations int
}

// simulationTrainer is implemented by trainers that can derive independently seeded copies.
type simulationTrainer interface {
	ForSimulation(i int) domsvc.ModelTrainer
}

// Predictor serves multi-day forecasts from stored models and trains on a miss.
type Predictor struct {
	cfg     PredictorConfig
	store   domrepo.ModelStore
	data    domrepo.MarketData
	trainer domsvc.ModelTrainer
	jobs    domsvc.JobEnqueuer
	metrics domrepo.Metrics
	log     *logger.Logger
	models  *cache.TTLCache
}

// NewPredictor creates a Predictor. jobs and metrics may be nil.
func NewPredictor(
	cfg PredictorConfig,
	store domrepo.ModelStore,
	data domrepo.MarketData,
	trainer domsvc.ModelTrainer,
	jobs domsvc.JobEnqueuer,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Predictor {
	if cfg.RecentPeriod == "" {
		cfg.RecentPeriod = domrepo.Period6M
	}
	if cfg.FallbackPeriod == "" {
		cfg.FallbackPeriod = domrepo.DefaultPeriod()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Predictor{
		cfg:     cfg,
		store:   store,
		data:    data,
		trainer: trainer,
		jobs:    jobs,
		metrics: metrics,
		log:     log,
		models:  cache.NewTTLCache(),
	}
}

// loadedModel is a decoded artifact ready for inference.
type loadedModel struct {
	meta    models.Metadata
	net     *lstm.Model
	scalers dataset.ScalerPair
}

// decodeArtifact validates the feature contract and rebuilds network and scalers.
func decodeArtifact(a *models.Artifact) (*loadedModel, error) {
	if !features.NamesMatch(a.Metadata.Features) {
		return nil, fmt.Errorf("%w: model has [%s], frame has [%s]", models.ErrFeatureContract,
			strings.Join(a.Metadata.Features, ","), strings.Join(features.Names, ","))
	}
	if a.Scalers.BundleID != a.Metadata.BundleID {
		return nil, fmt.Errorf("%w: scaler bundle %q, metadata bundle %q", models.ErrArtifactCorrupt, a.Scalers.BundleID, a.Metadata.BundleID)
	}
	pair, err := dataset.PairFromState(a.Scalers)
	if err != nil {
		return nil, err
	}
	if pair.Feature.Columns() != features.NumFeatures {
		return nil, fmt.Errorf("%w: feature scaler has %d columns", models.ErrArtifactCorrupt, pair.Feature.Columns())
	}
	net, err := lstm.Decode(a.Weights)
	if err != nil {
		return nil, err
	}
	if c := net.Config(); c.Lookback != a.Metadata.Lookback || c.Features != features.NumFeatures {
		return nil, fmt.Errorf("%w: network input %dx%d, metadata lookback %d", models.ErrArtifactCorrupt, c.Lookback, c.Features, a.Metadata.Lookback)
	}
	return &loadedModel{meta: a.Metadata, net: net, scalers: pair}, nil
}

// Predict forecasts p.FutureDays closes. A stored model is used when present; otherwise one is
// trained on the requested period first, or a training job is enqueued when async fallback is on.
func (p *Predictor) Predict(ctx context.Context, params PredictParams) (*models.PredictionResult, error) {
	start := time.Now()
	params.Symbol = strings.TrimSpace(params.Symbol)
	if params.Symbol == "" {
		return nil, fmt.Errorf("predict: %w: symbol required", models.ErrInvalidInput)
	}
	if params.FutureDays < 1 || params.FutureDays > forecast.MaxDays {
		return nil, fmt.Errorf("predict: %w: future_days must be between 1 and %d", models.ErrInvalidInput, forecast.MaxDays)
	}
	if params.Period == "" {
		params.Period = p.cfg.FallbackPeriod
	}
	if !domrepo.IsValidPeriod(params.Period) {
		return nil, fmt.Errorf("predict: %w: period %q", models.ErrInvalidInput, params.Period)
	}
	if params.Simulations < 0 || params.Simulations > forecast.MaxSimulations {
		return nil, fmt.Errorf("predict: %w: simulations must be between 1 and %d", models.ErrInvalidInput, forecast.MaxSimulations)
	}
	if !params.Fresh || params.Simulations == 0 {
		params.Simulations = 1
	}

	source := "pretrained"
	res, err := p.predict(ctx, params, &source)
	p.record(source, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", params.Symbol, err)
	}
	return res, nil
}

func (p *Predictor) predict(ctx context.Context, params PredictParams, source *string) (*models.PredictionResult, error) {
	if !params.Fresh {
		m, ok, err := p.pretrained(ctx, params.Symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			return p.fastPredict(ctx, params, m)
		}
		if p.cfg.AsyncFallback && p.jobs != nil {
			*source = "queued"
			payload := TrainSymbolPayload{Symbol: params.Symbol, Period: string(params.Period)}
			if err := p.jobs.PublishMessage(ctx, JobTrainSymbol, payload); err != nil {
				return nil, fmt.Errorf("enqueue training: %w", err)
			}
			p.log.Info("training enqueued", logger.String("symbol", params.Symbol))
			return nil, fmt.Errorf("%w: model for %s is being trained", models.ErrTrainingInProgress, params.Symbol)
		}
	}
	*source = "trained"
	return p.trainThenPredict(ctx, params)
}

// pretrained returns the cached or stored model. A corrupt artifact is reported as a miss so
// the caller retrains and overwrites it; a feature contract violation is returned as is.
func (p *Predictor) pretrained(ctx context.Context, symbol string) (*loadedModel, bool, error) {
	key := models.ArtifactKey(symbol)
	if v, ok := p.models.Get(key); ok {
		return v.(*loadedModel), true, nil
	}
	art, ok, err := p.store.Load(ctx, symbol)
	if err != nil {
		if errors.Is(err, models.ErrArtifactCorrupt) {
			p.log.Warn("stored model unreadable, retraining", logger.String("symbol", symbol), logger.Error(err))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load model: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	m, err := decodeArtifact(art)
	if err != nil {
		if errors.Is(err, models.ErrArtifactCorrupt) {
			p.log.Warn("stored model unreadable, retraining", logger.String("symbol", symbol), logger.Error(err))
			return nil, false, nil
		}
		return nil, false, err
	}
	p.remember(key, m)
	return m, true, nil
}

// fetchBars treats an empty result as missing upstream data.
func (p *Predictor) fetchBars(ctx context.Context, symbol string, period domrepo.Period) ([]models.Bar, error) {
	bars, err := p.data.GetBars(ctx, symbol, period)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", period, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no data for %s", models.ErrUpstreamFetch, symbol)
	}
	return bars, nil
}

func (p *Predictor) fastPredict(ctx context.Context, params PredictParams, m *loadedModel) (*models.PredictionResult, error) {
	bars, err := p.fetchBars(ctx, params.Symbol, p.cfg.RecentPeriod)
	if err != nil {
		return nil, err
	}
	frame := features.ComputeIndicators(bars)
	res, err := forecastFrame(m, frame, params.FutureDays)
	if err != nil {
		return nil, err
	}
	res.Symbol = params.Symbol
	res.UsingPretrained = true
	return res, nil
}

// trainThenPredict trains params.Simulations models on the same bars and averages their
// forecasts. A failed simulation is skipped as long as one succeeds; the store and the model
// cache end up holding the last successful model.
func (p *Predictor) trainThenPredict(ctx context.Context, params PredictParams) (*models.PredictionResult, error) {
	bars, err := p.fetchBars(ctx, params.Symbol, params.Period)
	if err != nil {
		return nil, err
	}
	frame := features.ComputeIndicators(bars)
	runs := max(1, params.Simulations)

	var (
		res     *models.PredictionResult
		last    *loadedModel
		paths   [][]float64
		lastErr error
	)
	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, r, err := p.simulate(ctx, i, params, bars, frame)
		if err != nil {
			lastErr = err
			if runs > 1 {
				p.log.Warn("simulation failed",
					logger.String("symbol", params.Symbol),
					logger.Int("simulation", i+1),
					logger.Error(err),
				)
			}
			continue
		}
		if res == nil {
			res = r
		}
		last = m
		paths = append(paths, r.Predictions)
	}
	if len(paths) == 0 {
		return nil, lastErr
	}
	p.remember(models.ArtifactKey(params.Symbol), last)

	mean, std, err := forecast.Ensemble(paths)
	if err != nil {
		return nil, err
	}
	meta := last.meta
	res.Predictions = mean
	res.PredictedPrice = mean[len(mean)-1]
	res.PriceChangePercent = forecast.ChangePercent(res.CurrentPrice, res.PredictedPrice)
	res.ModelMetadata = &meta
	res.Std = std
	res.Simulations = paths
	res.NumSimulations = len(paths)
	res.Symbol = params.Symbol
	res.UsingPretrained = false
	return res, nil
}

func (p *Predictor) simulate(ctx context.Context, i int, params PredictParams, bars []models.Bar, frame features.Frame) (*loadedModel, *models.PredictionResult, error) {
	trainer := p.trainer
	if st, ok := trainer.(simulationTrainer); ok {
		trainer = st.ForSimulation(i)
	}
	art, err := trainer.TrainOne(ctx, params.Symbol, bars)
	if err != nil {
		return nil, nil, err
	}
	m, err := decodeArtifact(art)
	if err != nil {
		return nil, nil, err
	}
	res, err := forecastFrame(m, frame, params.FutureDays)
	if err != nil {
		return nil, nil, err
	}
	return m, res, nil
}

// forecastFrame scales the last lookback rows of frame, rolls the model forward and
// maps the predictions back to prices.
func forecastFrame(m *loadedModel, frame features.Frame, days int) (*models.PredictionResult, error) {
	lookback := m.meta.Lookback
	if frame.Len() < lookback {
		return nil, fmt.Errorf("%w: %d feature rows, need %d", models.ErrInsufficientData, frame.Len(), lookback)
	}
	window, err := m.scalers.Feature.Transform(frame.Tail(lookback).Rows)
	if err != nil {
		return nil, err
	}
	scaled, err := forecast.Recursive(m.net, window, days)
	if err != nil {
		return nil, err
	}
	preds := forecast.Inverse(m.scalers.Target, scaled)

	closes := frame.Column(features.ColClose)
	dates := make([]string, frame.Len())
	for i, d := range frame.Dates {
		dates[i] = d.Format(models.DateLayout)
	}
	future := forecast.FutureDates(frame.LastDate(), days)
	futureStr := make([]string, len(future))
	for i, d := range future {
		futureStr[i] = d.Format(models.DateLayout)
	}

	current := closes[len(closes)-1]
	predicted := preds[len(preds)-1]
	meta := m.meta
	return &models.PredictionResult{
		Success:            true,
		Predictions:        preds,
		FutureDates:        futureStr,
		HistoricalPrices:   closes,
		HistoricalDates:    dates,
		CurrentPrice:       current,
		PredictedPrice:     predicted,
		PriceChangePercent: forecast.ChangePercent(current, predicted),
		ModelMetadata:      &meta,
	}, nil
}

func (p *Predictor) remember(key string, m *loadedModel) {
	if p.cfg.CacheTTL > 0 {
		p.models.Set(key, m, p.cfg.CacheTTL)
	}
}

// Forget drops a cached model, e.g. after a background retrain.
func (p *Predictor) Forget(symbol string) {
	p.models.Delete(models.ArtifactKey(symbol))
}

func (p *Predictor) record(source string, err error, took time.Duration) {
	if p.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(models.KindOf(err))
		p.metrics.RecordError(result)
	}
	p.metrics.RecordPrediction(source, result, took.Seconds())
}
