package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/services/dataset"
	"StockSense/internal/services/features"
	"StockSense/internal/services/lstm"
	"StockSense/pkg/logger"

	"github.com/google/uuid"
)

// TrainerConfig holds the per-symbol training hyperparameters.
type TrainerConfig struct {
	Lookback        int
	Epochs          int
	BatchSize       int
	MinBatchSize    int
	TrainRatio      float64
	ValidationSplit float64
	Patience        int
	Seed            uint64
	// Network adjusts the default topology before a model is built.
	Network func(*lstm.Config)
}

type TrainerOption func(*TrainerConfig)

func WithLookback(n int) TrainerOption {
	return func(c *TrainerConfig) { c.Lookback = n }
}

func WithEpochs(n int) TrainerOption {
	return func(c *TrainerConfig) { c.Epochs = n }
}

func WithBatchSize(n int) TrainerOption {
	return func(c *TrainerConfig) { c.BatchSize = n }
}

func WithPatience(n int) TrainerOption {
	return func(c *TrainerConfig) { c.Patience = n }
}

func WithSeed(seed uint64) TrainerOption {
	return func(c *TrainerConfig) { c.Seed = seed }
}

func WithTrainRatio(r float64) TrainerOption {
	return func(c *TrainerConfig) { c.TrainRatio = r }
}

func WithValidationSplit(r float64) TrainerOption {
	return func(c *TrainerConfig) { c.ValidationSplit = r }
}

// WithNetwork adjusts the network topology, e.g. smaller layers in tests.
func WithNetwork(fn func(*lstm.Config)) TrainerOption {
	return func(c *TrainerConfig) { c.Network = fn }
}

func defaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Lookback:        30,
		Epochs:          10,
		BatchSize:       32,
		MinBatchSize:    8,
		TrainRatio:      0.8,
		ValidationSplit: 0.05,
		Seed:            42,
	}
}

// Trainer fits one LSTM per symbol and writes the artifact to the model store.
type Trainer struct {
	cfg     TrainerConfig
	store   domrepo.ModelStore
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	log     *logger.Logger
	locks   *keyedMutex
	now     func() time.Time
}

// NewTrainer creates a Trainer. events and metrics may be nil.
func NewTrainer(store domrepo.ModelStore, events domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger, opts ...TrainerOption) *Trainer {
	cfg := defaultTrainerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Trainer{
		cfg:     cfg,
		store:   store,
		events:  events,
		metrics: metrics,
		log:     log,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Config returns the effective configuration.
func (t *Trainer) Config() TrainerConfig { return t.cfg }

// ForEpochs returns a trainer sharing store, publisher and locks but running n epochs.
func (t *Trainer) ForEpochs(n int) domsvc.ModelTrainer {
	if n <= 0 || n == t.cfg.Epochs {
		return t
	}
	cp := *t
	cp.cfg.Epochs = n
	return &cp
}

// ForSimulation returns a trainer whose network seed is offset by i. Simulation 0 is t itself.
func (t *Trainer) ForSimulation(i int) domsvc.ModelTrainer {
	if i <= 0 {
		return t
	}
	cp := *t
	cp.cfg.Seed = t.cfg.Seed + uint64(i)
	return &cp
}

// TrainOne computes features, fits, evaluates on the chronological tail and persists the artifact.
func (t *Trainer) TrainOne(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error) {
	if symbol == "" {
		return nil, fmt.Errorf("train: %w: symbol required", models.ErrInvalidInput)
	}
	unlock := t.locks.Lock(models.ArtifactKey(symbol))
	defer unlock()

	start := t.now()
	art, err := t.train(ctx, symbol, bars)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError(string(models.KindOf(err)))
		}
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}

	if err := t.store.Save(ctx, art); err != nil {
		if models.KindOf(err) == models.KindUnknown {
			err = fmt.Errorf("%w: %w", models.ErrStorage, err)
		}
		if t.metrics != nil {
			t.metrics.RecordError(string(models.KindOf(err)))
		}
		return nil, fmt.Errorf("train %s: save artifact: %w", symbol, err)
	}

	if t.metrics != nil {
		t.metrics.RecordModelQuality(symbol, art.Metadata.TestMAE)
	}
	if t.events != nil {
		if err := t.events.PublishTrained(ctx, art.Metadata); err != nil {
			t.log.Warn("publish model.trained failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	t.log.Info("model trained",
		logger.String("symbol", symbol),
		logger.Int("samples", art.Metadata.TrainingSamples),
		logger.Int("epochs_run", art.Metadata.EpochsRun),
		logger.Float64("test_mae", art.Metadata.TestMAE),
		logger.Float64("r2", art.Metadata.R2Score),
		logger.Duration("took", t.now().Sub(start)),
	)
	return art, nil
}

func (t *Trainer) train(ctx context.Context, symbol string, bars []models.Bar) (*models.Artifact, error) {
	frame := features.ComputeIndicators(bars)
	ds, err := dataset.BuildSequences(frame, t.cfg.Lookback)
	if err != nil {
		return nil, err
	}
	trX, trY, teX, teY := ds.Split(t.cfg.TrainRatio)
	if len(trX) == 0 || len(teX) == 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be split", models.ErrInsufficientData, ds.Len())
	}

	netCfg := lstm.DefaultConfig(t.cfg.Lookback, features.NumFeatures)
	netCfg.Seed = t.cfg.Seed
	if t.cfg.Network != nil {
		t.cfg.Network(&netCfg)
	}
	net, err := lstm.New(netCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrTrainingFailed, err)
	}

	batch := min(t.cfg.BatchSize, max(t.cfg.MinBatchSize, len(trX)/10))
	hist, err := net.Fit(ctx, trX, trY, lstm.FitOptions{
		Epochs:          t.cfg.Epochs,
		BatchSize:       batch,
		ValidationSplit: t.cfg.ValidationSplit,
		Patience:        t.cfg.Patience,
		Shuffle:         true,
		OnEpoch: func(s lstm.EpochStats) {
			t.log.Debug("epoch",
				logger.String("symbol", symbol),
				logger.Int("epoch", s.Epoch),
				logger.Float64("loss", s.Loss),
				logger.Float64("val_loss", s.ValLoss),
			)
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if models.KindOf(err) == models.KindUnknown {
			err = fmt.Errorf("%w: %w", models.ErrTrainingFailed, err)
		}
		return nil, err
	}

	pred, err := net.PredictBatch(teX)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrTrainingFailed, err)
	}
	testLoss, testMAE := lossAndMAE(pred, teY)

	weights, err := net.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrTrainingFailed, err)
	}

	bundleID := uuid.NewString()
	md := models.Metadata{
		Symbol:          symbol,
		TrainedDate:     t.now().UTC(),
		TrainingSamples: len(trX),
		TestSamples:     len(teX),
		TestLoss:        finiteOrZero(testLoss),
		TestMAE:         finiteOrZero(testMAE),
		FinalTrainLoss:  finiteOrZero(hist.FinalLoss()),
		ValLoss:         finiteOrZero(hist.FinalValLoss()),
		R2Score:         finiteOrZero(R2Score(teY, pred)),
		Epochs:          t.cfg.Epochs,
		EpochsRun:       hist.EpochsRun,
		Lookback:        t.cfg.Lookback,
		DataPoints:      len(bars),
		Features:        append([]string(nil), features.Names...),
		BundleID:        bundleID,
	}
	return &models.Artifact{
		Metadata: md,
		Scalers:  ds.Scalers.State(bundleID),
		Weights:  weights,
	}, nil
}

// R2Score is the coefficient of determination of pred against y.
func R2Score(y, pred []float64) float64 {
	if len(y) == 0 || len(y) != len(pred) {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	var ssRes, ssTot float64
	for i, v := range y {
		ssRes += (v - pred[i]) * (v - pred[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func lossAndMAE(pred, y []float64) (float64, float64) {
	var sq, abs float64
	for i, p := range pred {
		d := p - y[i]
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(len(y))
	return sq / n, abs / n
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
