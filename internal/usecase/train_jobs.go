package usecase

import (
	"context"
	"fmt"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/pkg/logger"
	"StockSense/pkg/queue"
)

// Queue message types.
const (
	JobTrainSymbol = "train.symbol"
	JobTrainMarket = "train.market"
)

type TrainSymbolPayload struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
	Epochs int    `json:"epochs,omitempty"`
}

type TrainMarketPayload struct {
	Market string `json:"market"`
	Period string `json:"period"`
	Epochs int    `json:"epochs,omitempty"`
}

// TrainSymbolJob trains one symbol from the queue and evicts the cached model afterwards.
type TrainSymbolJob struct {
	data      domrepo.MarketData
	trainer   domsvc.ModelTrainer
	predictor *Predictor
	log       *logger.Logger
}

func NewTrainSymbolJob(data domrepo.MarketData, trainer domsvc.ModelTrainer, predictor *Predictor, log *logger.Logger) *TrainSymbolJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &TrainSymbolJob{data: data, trainer: trainer, predictor: predictor, log: log}
}

func (j *TrainSymbolJob) Name() string { return "train-symbol" }
func (j *TrainSymbolJob) Type() string { return JobTrainSymbol }

// Handle returns nil for failures a retry cannot fix, so they do not reach the dead letter queue.
func (j *TrainSymbolJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainSymbolPayload](payload)
	if err != nil {
		return fmt.Errorf("train symbol job: %w", err)
	}
	if p.Symbol == "" {
		j.log.Warn("train symbol job without symbol")
		return nil
	}
	if _, err := j.Run(ctx, *p); err != nil {
		if permanent(err) {
			j.log.Warn("train symbol job dropped", logger.String("symbol", p.Symbol), logger.Error(err))
			return nil
		}
		return fmt.Errorf("train symbol job: %w", err)
	}
	return nil
}

// Run fetches and trains one symbol and returns the stored metadata.
func (j *TrainSymbolJob) Run(ctx context.Context, p TrainSymbolPayload) (*models.Metadata, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("train symbol: %w: symbol required", models.ErrInvalidInput)
	}
	trainer := j.trainer
	if et, ok := trainer.(epochTrainer); ok && p.Epochs > 0 {
		trainer = et.ForEpochs(p.Epochs)
	}
	bars, err := j.data.GetBars(ctx, p.Symbol, domrepo.NormalizePeriod(p.Period))
	if err != nil {
		return nil, fmt.Errorf("train symbol %s: %w", p.Symbol, err)
	}
	a, err := trainer.TrainOne(ctx, p.Symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("train symbol %s: %w", p.Symbol, err)
	}
	if j.predictor != nil {
		j.predictor.Forget(p.Symbol)
	}
	return &a.Metadata, nil
}

// TrainMarketJob runs a bulk pipeline for one market.
type TrainMarketJob struct {
	pipeline *Pipeline
	log      *logger.Logger
}

func NewTrainMarketJob(pipeline *Pipeline, log *logger.Logger) *TrainMarketJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &TrainMarketJob{pipeline: pipeline, log: log}
}

func (j *TrainMarketJob) Name() string { return "train-market" }
func (j *TrainMarketJob) Type() string { return JobTrainMarket }

func (j *TrainMarketJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainMarketPayload](payload)
	if err != nil {
		return fmt.Errorf("train market job: %w", err)
	}
	s, err := j.pipeline.RunMarket(ctx, MarketRunParams{
		Market: p.Market,
		Period: periodOr(p.Period, j.pipeline.cfg.Period),
		Epochs: p.Epochs,
	})
	if err != nil {
		if permanent(err) {
			j.log.Warn("train market job dropped", logger.String("market", p.Market), logger.Error(err))
			return nil
		}
		return fmt.Errorf("train market job %s: %w", p.Market, err)
	}
	j.log.Info("train market job done",
		logger.String("market", s.Market),
		logger.Int("successful", s.Successful),
		logger.Int("failed", s.Failed),
	)
	return nil
}

func permanent(err error) bool {
	switch models.KindOf(err) {
	case models.KindInsufficientData, models.KindNonFiniteData, models.KindInvalidInput, models.KindFeatureContract:
		return true
	}
	return false
}

func periodOr(raw string, def domrepo.Period) domrepo.Period {
	if p := domrepo.Period(raw); domrepo.IsValidPeriod(p) {
		return p
	}
	return def
}
