package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/pkg/logger"
)

// PipelineConfig controls bulk runs.
type PipelineConfig struct {
	Workers int
	// MinBars is the minimum number of fetched bars before a symbol is trained.
	MinBars int
	Period  domrepo.Period
	Markets []string
}

// Pipeline trains every symbol of a universe and records a summary per market.
type Pipeline struct {
	cfg       PipelineConfig
	trainer   domsvc.ModelTrainer
	data      domrepo.MarketData
	universe  domrepo.Universe
	summaries domrepo.SummaryStore
	events    domrepo.EventPublisher
	metrics   domrepo.Metrics
	evict     domsvc.ModelEvictor
	log       *logger.Logger
	now       func() time.Time
}

// epochTrainer is implemented by trainers that can run with a per-call epoch count.
type epochTrainer interface {
	ForEpochs(n int) domsvc.ModelTrainer
}

func NewPipeline(
	cfg PipelineConfig,
	trainer domsvc.ModelTrainer,
	data domrepo.MarketData,
	universe domrepo.Universe,
	summaries domrepo.SummaryStore,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Period == "" {
		cfg.Period = domrepo.Period1Y
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		trainer:   trainer,
		data:      data,
		universe:  universe,
		summaries: summaries,
		events:    events,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// WithEvictor makes the pipeline evict each retrained symbol from e, typically the
// Predictor's model cache. It returns p.
func (p *Pipeline) WithEvictor(e domsvc.ModelEvictor) *Pipeline {
	p.evict = e
	return p
}

// Markets returns the configured market names.
func (p *Pipeline) Markets() []string { return p.cfg.Markets }

type trainJob struct {
	symbol string
	bars   []models.Bar
	fetch  bool
}

type trainResult struct {
	symbol   string
	metadata *models.Metadata
	failure  *models.FailedEntry
	abort    error
}

type runParams struct {
	market  string
	period  domrepo.Period
	trainer domsvc.ModelTrainer
}

// TrainUniverse trains every symbol of symbolToBars. Per-symbol failures are recorded in the
// summary; only cancellation aborts the run, in which case the partial summary is returned
// with the error and nothing is persisted.
func (p *Pipeline) TrainUniverse(ctx context.Context, market string, symbolToBars map[string][]models.Bar) (*models.Summary, error) {
	jobs := make([]trainJob, 0, len(symbolToBars))
	for sym, bars := range symbolToBars {
		jobs = append(jobs, trainJob{symbol: sym, bars: bars})
	}
	return p.run(ctx, runParams{market: market, trainer: p.trainer}, jobs)
}

// MarketRunParams selects the market and overrides for one bulk run.
type MarketRunParams struct {
	Market string
	Period domrepo.Period
	Epochs int
}

// RunMarket resolves the market universe, fetches every symbol and trains it.
func (p *Pipeline) RunMarket(ctx context.Context, rp MarketRunParams) (*models.Summary, error) {
	if rp.Market == "" {
		return nil, fmt.Errorf("run market: %w: market required", models.ErrInvalidInput)
	}
	if p.universe == nil || p.data == nil {
		return nil, fmt.Errorf("run market %s: %w: no market data source configured", rp.Market, models.ErrInvalidInput)
	}
	symbols, err := p.universe.Symbols(ctx, rp.Market)
	if err != nil {
		return nil, fmt.Errorf("run market %s: symbols: %w", rp.Market, err)
	}
	params := runParams{market: rp.Market, period: rp.Period, trainer: p.trainer}
	if params.period == "" {
		params.period = p.cfg.Period
	}
	if et, ok := p.trainer.(epochTrainer); ok && rp.Epochs > 0 {
		params.trainer = et.ForEpochs(rp.Epochs)
	}

	jobs := make([]trainJob, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		jobs = append(jobs, trainJob{symbol: s, fetch: true})
	}
	p.log.Info("bulk run started",
		logger.String("market", rp.Market),
		logger.Int("symbols", len(jobs)),
		logger.String("period", string(params.period)),
	)
	return p.run(ctx, params, jobs)
}

// RunFull runs every configured market in turn. A market that fails is reported and
// the run moves on; cancellation stops it.
func (p *Pipeline) RunFull(ctx context.Context, period domrepo.Period, epochs int) (*models.FullReport, error) {
	report := &models.FullReport{Success: true, Summaries: make(map[string]*models.Summary, len(p.cfg.Markets))}
	var errs []string
	for _, market := range p.cfg.Markets {
		s, err := p.RunMarket(ctx, MarketRunParams{Market: market, Period: period, Epochs: epochs})
		if s != nil {
			report.Summaries[market] = s
			report.TotalModels += s.Successful
		}
		if err != nil {
			report.Success = false
			errs = append(errs, fmt.Sprintf("%s: %v", market, err))
			if !models.Skippable(models.KindOf(err)) {
				report.Error = joinErrors(errs)
				return report, err
			}
			p.log.Error("market run failed", logger.String("market", market), logger.Error(err))
		}
	}
	report.Error = joinErrors(errs)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, rp runParams, jobs []trainJob) (*models.Summary, error) {
	start := p.now()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].symbol < jobs[j].symbol })

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(chan trainJob, len(jobs))
	for _, j := range jobs {
		pending <- j
	}
	close(pending)

	results := make(chan trainResult, p.cfg.Workers)
	var (
		mdList   []models.Metadata
		failures []models.FailedEntry
		abortErr error
	)
	var resWg sync.WaitGroup
	resWg.Add(1)
	go func() {
		defer resWg.Done()
		for r := range results {
			switch {
			case r.abort != nil:
				if abortErr == nil {
					abortErr = r.abort
					cancel()
				}
			case r.failure != nil:
				failures = append(failures, *r.failure)
			case r.metadata != nil:
				mdList = append(mdList, *r.metadata)
			}
		}
	}()

	workers := min(p.cfg.Workers, max(1, len(jobs)))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range pending {
				if runCtx.Err() != nil {
					return
				}
				results <- p.trainJob(runCtx, rp, job)
			}
		}()
	}
	wg.Wait()
	close(results)
	resWg.Wait()

	if abortErr == nil && ctx.Err() != nil {
		abortErr = ctx.Err()
	}

	sort.Slice(mdList, func(i, j int) bool { return mdList[i].Symbol < mdList[j].Symbol })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Symbol < failures[j].Symbol })
	failed := make([]string, len(failures))
	for i, f := range failures {
		failed[i] = f.Symbol
	}
	summary := &models.Summary{
		Market:        rp.market,
		TotalStocks:   len(jobs),
		Successful:    len(mdList),
		Failed:        len(failures),
		FailedSymbols: failed,
		Failures:      failures,
		TrainingDate:  p.now().UTC(),
		Duration:      p.now().Sub(start).Seconds(),
		Models:        mdList,
	}
	if summary.Models == nil {
		summary.Models = []models.Metadata{}
	}

	if abortErr != nil {
		p.recordRun(rp.market, "aborted", summary.Duration)
		p.log.Warn("bulk run aborted",
			logger.String("market", rp.market),
			logger.Int("successful", summary.Successful),
			logger.Error(abortErr),
		)
		return summary, fmt.Errorf("train universe %s: %w", rp.market, abortErr)
	}

	result := "success"
	switch {
	case summary.Successful == 0 && summary.Failed > 0:
		result = "failed"
	case summary.Failed > 0:
		result = "partial"
	}
	p.recordRun(rp.market, result, summary.Duration)

	if p.summaries != nil {
		if err := p.summaries.SaveSummary(ctx, summary); err != nil {
			return summary, fmt.Errorf("train universe %s: save summary: %w", rp.market, err)
		}
	}
	if p.events != nil {
		if err := p.events.PublishSummary(ctx, summary); err != nil {
			p.log.Warn("publish training.summary failed", logger.String("market", rp.market), logger.Error(err))
		}
	}
	p.log.Info("bulk run finished",
		logger.String("market", rp.market),
		logger.Int("total", summary.TotalStocks),
		logger.Int("successful", summary.Successful),
		logger.Int("failed", summary.Failed),
		logger.Float64("seconds", summary.Duration),
	)
	return summary, nil
}

func (p *Pipeline) trainJob(ctx context.Context, rp runParams, job trainJob) trainResult {
	bars := job.bars
	if job.fetch {
		var err error
		bars, err = p.data.GetBars(ctx, job.symbol, rp.period)
		if err != nil {
			return p.failure(job.symbol, err)
		}
		if len(bars) < p.cfg.MinBars {
			return p.failure(job.symbol, fmt.Errorf("%w: %d bars, need %d", models.ErrInsufficientData, len(bars), p.cfg.MinBars))
		}
	}

	art, err := rp.trainer.TrainOne(ctx, job.symbol, bars)
	if err != nil {
		return p.failure(job.symbol, err)
	}
	if p.evict != nil {
		p.evict.Forget(job.symbol)
	}
	return trainResult{symbol: job.symbol, metadata: &art.Metadata}
}

func (p *Pipeline) failure(symbol string, err error) trainResult {
	kind := models.KindOf(err)
	if !models.Skippable(kind) {
		return trainResult{symbol: symbol, abort: err}
	}
	p.log.Warn("symbol skipped", logger.String("symbol", symbol), logger.String("kind", string(kind)), logger.Error(err))
	return trainResult{symbol: symbol, failure: &models.FailedEntry{Symbol: symbol, Kind: kind, Reason: err.Error()}}
}

func (p *Pipeline) recordRun(market, result string, seconds float64) {
	if p.metrics != nil {
		p.metrics.RecordTraining(market, result, seconds)
	}
}

func joinErrors(msgs []string) string {
	return strings.Join(msgs, "; ")
}
