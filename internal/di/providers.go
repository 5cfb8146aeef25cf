package di

import (
	"context"
	"fmt"
	"time"

	"StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/handler/api"
	internalrepo "StockSense/internal/repository"
	"StockSense/internal/service/ratelimit"
	"StockSense/internal/services/lstm"
	"StockSense/internal/usecase"
	"StockSense/pkg/cache"
	pkgch "StockSense/pkg/clickhouse"
	"StockSense/pkg/config"
	xhttp "StockSense/pkg/http"
	pkgkafka "StockSense/pkg/kafka"
	applogger "StockSense/pkg/logger"
	"StockSense/pkg/metrics"
	"StockSense/pkg/queue"
	"StockSense/pkg/server"
)

func noop() {}

// ProvideClickHouseClient creates a ClickHouse client when ClickHouse is the bar source.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Data.Source != "clickhouse" {
		return nil, noop, nil
	}
	client, err := newClickHouseClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func newClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.DailyBarsSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis when it backs the model store or the job queue.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if cfg.Store.Backend != "redis" && !cfg.Queue.Enabled {
		return nil, noop, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, noop, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and attaches the Kafka log collector when configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Log.Collector.Enabled || producer == nil {
		return l, noop, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Log.Collector.Interval,
		CountThreshold: cfg.Log.Collector.CountThreshold,
		Topic:          cfg.Kafka.LogsTopic,
		Publisher:      internalrepo.NewKafkaLogPublisher(producer),
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEventPublisher publishes training events to Kafka, or drops them when Kafka is off.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.TrainedTopic, cfg.Kafka.SummaryTopic)
}

// ProvideModelStore selects the artifact backend.
func ProvideModelStore(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (repository.ModelStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("model store: redis backend without a redis connection")
		}
		return internalrepo.NewRedisModelStore(rc, cfg.Store.TTL), nil
	case "memory":
		// Process-local and unbounded; artifacts are lost on restart.
		return internalrepo.NewRedisModelStore(cache.NewMemoryCache(cache.WithMemoryMaxSize(0)), cfg.Store.TTL), nil
	default:
		s, err := internalrepo.NewFileModelStore(cfg.Store.Dir, l.With(applogger.String("component", "model_store")))
		if err != nil {
			return nil, fmt.Errorf("model store: %w", err)
		}
		return s, nil
	}
}

// ProvideSummaryStore keeps summaries next to the artifacts.
func ProvideSummaryStore(cfg *config.Config, store repository.ModelStore) (repository.SummaryStore, error) {
	if ss, ok := store.(repository.SummaryStore); ok {
		return ss, nil
	}
	s, err := internalrepo.NewFileSummaryStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("summary store: %w", err)
	}
	return s, nil
}

// ProvideCHBarStore wraps the ClickHouse client; nil when ClickHouse is not configured.
func ProvideCHBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHBarStore {
	if ch == nil {
		return nil
	}
	s := internalrepo.NewCHBarStore(ch, cfg.Data.TopN, cfg.Pipeline.MinBars)
	s.SetLogger(l.With(applogger.String("component", "clickhouse_bars")))
	return s
}

// ProvideParquetSource opens the bhavcopy file lazily; nil unless it is the bar source.
func ProvideParquetSource(cfg *config.Config, l *applogger.Logger) *internalrepo.ParquetBarSource {
	if cfg.Data.Source != "parquet" {
		return nil
	}
	return newParquetSource(cfg, l)
}

func newParquetSource(cfg *config.Config, l *applogger.Logger) *internalrepo.ParquetBarSource {
	return internalrepo.NewParquetBarSource(cfg.Data.Parquet.Path, cfg.Data.Parquet.Market,
		cfg.Data.TopN, cfg.Pipeline.MinBars, l.With(applogger.String("component", "parquet_bars")))
}

// ProvideMarketData selects the bar source.
func ProvideMarketData(cfg *config.Config, chs *internalrepo.CHBarStore, pq *internalrepo.ParquetBarSource, l *applogger.Logger) repository.MarketData {
	switch {
	case chs != nil:
		return chs
	case pq != nil:
		return pq
	default:
		return internalrepo.NewHTTPBarSource(cfg.Data.BaseURL,
			internalrepo.WithHTTPTimeout(cfg.Data.Timeout),
			internalrepo.WithRetry(cfg.Data.Retries, 500*time.Millisecond),
			internalrepo.WithHTTPLogger(l.With(applogger.String("component", "http_bars"))),
		)
	}
}

// ProvideUniverse uses configured symbol lists, falling back to volume ranking when a market has none.
func ProvideUniverse(cfg *config.Config, chs *internalrepo.CHBarStore, pq *internalrepo.ParquetBarSource) repository.Universe {
	u := internalrepo.NewStaticUniverse(cfg.Markets)
	switch {
	case pq != nil:
		return u.WithFallback(pq)
	case chs != nil:
		return u.WithFallback(chs)
	default:
		return u
	}
}

// ProvideTrainer maps training config onto trainer options.
func ProvideTrainer(
	cfg *config.Config,
	store repository.ModelStore,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Trainer {
	tc := cfg.Training
	return usecase.NewTrainer(store, events, m, l.With(applogger.String("component", "trainer")),
		usecase.WithLookback(tc.Lookback),
		usecase.WithEpochs(tc.Epochs),
		usecase.WithBatchSize(tc.BatchSize),
		usecase.WithTrainRatio(tc.TrainRatio),
		usecase.WithValidationSplit(tc.ValidationSplit),
		usecase.WithPatience(tc.Patience),
		usecase.WithSeed(tc.Seed),
		usecase.WithNetwork(func(c *lstm.Config) {
			if tc.Units1 > 0 {
				c.Units1 = tc.Units1
			}
			if tc.Units2 > 0 {
				c.Units2 = tc.Units2
			}
			if tc.DenseUnits > 0 {
				c.DenseUnits = tc.DenseUnits
			}
			if tc.Dropout > 0 {
				c.Dropout = tc.Dropout
			}
			if tc.LearningRate > 0 {
				c.LearningRate = tc.LearningRate
			}
		}),
	)
}

// ProvideQueue creates the Redis job queue when enabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l.With(applogger.String("component", "queue")), &queue.QueueConfig{
		Workers:     cfg.Queue.Workers,
		RetryLimit:  cfg.Queue.MaxRetries,
		PollTimeout: cfg.Queue.PollTimeout,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideJobEnqueuer exposes the queue to use cases; nil without a queue.
func ProvideJobEnqueuer(q *queue.RedisQueue) domsvc.JobEnqueuer {
	if q == nil {
		return nil
	}
	return q
}

func ProvidePredictor(
	cfg *config.Config,
	store repository.ModelStore,
	data repository.MarketData,
	trainer domsvc.ModelTrainer,
	jobs domsvc.JobEnqueuer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(usecase.PredictorConfig{
		RecentPeriod:   repository.Period(cfg.Inference.RecentPeriod),
		FallbackPeriod: repository.Period(cfg.Inference.FallbackPeriod),
		AsyncFallback:  cfg.Inference.AsyncFallback,
		CacheTTL:       cfg.Inference.ModelCacheTTL,
	}, store, data, trainer, jobs, m, l.With(applogger.String("component", "predictor")))
}

func ProvidePipeline(
	cfg *config.Config,
	trainer domsvc.ModelTrainer,
	data repository.MarketData,
	universe repository.Universe,
	summaries repository.SummaryStore,
	events repository.EventPublisher,
	m repository.Metrics,
	evict domsvc.ModelEvictor,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineConfig{
		Workers: cfg.Pipeline.Workers,
		MinBars: cfg.Pipeline.MinBars,
		Period:  repository.Period(cfg.Pipeline.Period),
		Markets: cfg.MarketNames(),
	}, trainer, data, universe, summaries, events, m, l.With(applogger.String("component", "pipeline"))).WithEvictor(evict)
}

// ProvideNoModelEvictor is used by the train command, which serves no cached models.
func ProvideNoModelEvictor() domsvc.ModelEvictor {
	return nil
}

func ProvideTrainSymbolJob(data repository.MarketData, trainer domsvc.ModelTrainer, p *usecase.Predictor, l *applogger.Logger) *usecase.TrainSymbolJob {
	return usecase.NewTrainSymbolJob(data, trainer, p, l)
}

func ProvideTrainMarketJob(p *usecase.Pipeline, l *applogger.Logger) *usecase.TrainMarketJob {
	return usecase.NewTrainMarketJob(p, l)
}

func ProvideStatusUseCase(cfg *config.Config, summaries repository.SummaryStore, store repository.ModelStore, q *queue.RedisQueue) *usecase.StatusUseCase {
	var pending usecase.PendingCounter
	if q != nil {
		pending = q
	}
	return usecase.NewStatusUseCase(cfg.MarketNames(), summaries, store, pending)
}

func ProvideFeaturesUseCase(data repository.MarketData) *usecase.FeaturesUseCase {
	return usecase.NewFeaturesUseCase(data)
}

// ProvideAIHandler builds the HTTP handler with the optional queue and rate limiter.
func ProvideAIHandler(
	cfg *config.Config,
	l *applogger.Logger,
	p *usecase.Predictor,
	pipeline *usecase.Pipeline,
	symbolJob *usecase.TrainSymbolJob,
	status *usecase.StatusUseCase,
	features *usecase.FeaturesUseCase,
	jobs domsvc.JobEnqueuer,
) *api.AIHandler {
	var opts []api.AIHandlerOption
	if jobs != nil {
		opts = append(opts, api.WithJobQueue(jobs))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimiter(ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)))
	}
	return api.NewAIHandler(l.With(applogger.String("component", "http")), p, pipeline, symbolJob, status, features, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.AIHandler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetrics(""))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	symbolJob *usecase.TrainSymbolJob,
	marketJob *usecase.TrainMarketJob,
) *server.App {
	return server.New(cfg, l, srv, q, symbolJob, marketJob)
}

// ProvideImporter copies the configured parquet file into ClickHouse.
func ProvideImporter(cfg *config.Config, l *applogger.Logger) (*usecase.ImportBarsUseCase, func(), error) {
	if cfg.Data.Parquet.Path == "" || cfg.Data.Parquet.Market == "" {
		return nil, nil, fmt.Errorf("import: data.parquet.path and data.parquet.market are required")
	}
	ch, err := newClickHouseClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	sink := internalrepo.NewCHBarStore(ch, 0, 0)
	sink.SetLogger(l)
	src := newParquetSource(cfg, l)
	return usecase.NewImportBarsUseCase(src, src, sink, l), func() { _ = ch.Close() }, nil
}
