package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Training struct {
		Lookback        int     `yaml:"lookback"`
		Epochs          int     `yaml:"epochs"`
		BatchSize       int     `yaml:"batch_size"`
		TrainRatio      float64 `yaml:"train_ratio"`
		ValidationSplit float64 `yaml:"validation_split"`
		Patience        int     `yaml:"patience"`
		Seed            uint64  `yaml:"seed"`
		Units1          int     `yaml:"units1"`
		Units2          int     `yaml:"units2"`
		DenseUnits      int     `yaml:"dense_units"`
		Dropout         float64 `yaml:"dropout"`
		LearningRate    float64 `yaml:"learning_rate"`
	} `yaml:"training"`
	Inference struct {
		RecentPeriod   string        `yaml:"recent_period"`
		FallbackPeriod string        `yaml:"fallback_period"`
		AsyncFallback  bool          `yaml:"async_fallback"`
		ModelCacheTTL  time.Duration `yaml:"model_cache_ttl"`
	} `yaml:"inference"`
	Pipeline struct {
		Workers int    `yaml:"workers"`
		MinBars int    `yaml:"min_bars"`
		Period  string `yaml:"period"`
	} `yaml:"pipeline"`
	Store struct {
		Backend string        `yaml:"backend"` // file, redis or memory
		Dir     string        `yaml:"dir"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"store"`
	Data struct {
		Source  string        `yaml:"source"` // http, clickhouse or parquet
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
		Parquet struct {
			Path   string `yaml:"path"`
			Market string `yaml:"market"`
		} `yaml:"parquet"`
		TopN int `yaml:"top_n"`
	} `yaml:"data"`
	Markets map[string][]string `yaml:"markets"`
	Redis   struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Queue struct {
		Enabled     bool          `yaml:"enabled"`
		Workers     int           `yaml:"workers"`
		MaxRetries  int           `yaml:"max_retries"`
		PollTimeout time.Duration `yaml:"poll_timeout"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TrainedTopic string   `yaml:"trained_topic"`
		SummaryTopic string   `yaml:"summary_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled"`
		Capacity     int     `yaml:"capacity"`
		RefillPerSec float64 `yaml:"refill_per_sec"`
	} `yaml:"rate_limit"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("MODEL_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR: invalid port %q", port)
			}
			c.Redis.Port = p
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("EPOCHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EPOCHS: %w", err)
		}
		c.Training.Epochs = n
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.Collector.Interval == 0 {
		c.Log.Collector.Interval = 30 * time.Second
	}
	if c.Log.Collector.CountThreshold == 0 {
		c.Log.Collector.CountThreshold = 100
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// trains in-request on a store miss
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Training.Lookback == 0 {
		c.Training.Lookback = 30
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = 10
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 32
	}
	if c.Training.TrainRatio == 0 {
		c.Training.TrainRatio = 0.8
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = 42
	}
	if c.Inference.RecentPeriod == "" {
		c.Inference.RecentPeriod = "6mo"
	}
	if c.Inference.FallbackPeriod == "" {
		c.Inference.FallbackPeriod = "2y"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.MinBars == 0 {
		c.Pipeline.MinBars = 200
	}
	if c.Pipeline.Period == "" {
		c.Pipeline.Period = "1y"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "models"
	}
	if c.Data.Source == "" {
		c.Data.Source = "http"
	}
	if c.Data.BaseURL == "" {
		c.Data.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Data.Timeout == 0 {
		c.Data.Timeout = 10 * time.Second
	}
	if c.Data.Retries == 0 {
		c.Data.Retries = 3
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "stocksense"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.PollTimeout == 0 {
		c.Queue.PollTimeout = 5 * time.Second
	}
	if c.Kafka.TrainedTopic == "" {
		c.Kafka.TrainedTopic = "stocksense.models.trained"
	}
	if c.Kafka.SummaryTopic == "" {
		c.Kafka.SummaryTopic = "stocksense.training.summary"
	}
	if c.Kafka.LogsTopic == "" {
		c.Kafka.LogsTopic = "stocksense.logs"
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "gzip"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillPerSec == 0 {
		c.RateLimit.RefillPerSec = 0.5
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("store.backend must be 'file', 'redis' or 'memory', got '%s'", c.Store.Backend)
	}
	switch c.Data.Source {
	case "http":
		if c.Data.BaseURL == "" {
			return fmt.Errorf("data.base_url is required for the http source")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse source")
		}
	case "parquet":
		if c.Data.Parquet.Path == "" || c.Data.Parquet.Market == "" {
			return fmt.Errorf("data.parquet.path and data.parquet.market are required for the parquet source")
		}
	default:
		return fmt.Errorf("data.source must be 'http', 'clickhouse' or 'parquet', got '%s'", c.Data.Source)
	}
	if c.Training.Lookback < 1 {
		return fmt.Errorf("training.lookback must be positive")
	}
	if c.Training.Epochs < 1 {
		return fmt.Errorf("training.epochs must be positive")
	}
	if c.Training.TrainRatio <= 0 || c.Training.TrainRatio >= 1 {
		return fmt.Errorf("training.train_ratio must be in (0, 1), got %v", c.Training.TrainRatio)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Data.Source != "parquet" && len(c.Markets) == 0 {
		return fmt.Errorf("markets cannot be empty for the %s source", c.Data.Source)
	}
	return nil
}

// MarketNames returns the configured markets in a stable order.
func (c *Config) MarketNames() []string {
	names := make([]string, 0, len(c.Markets)+1)
	for m := range c.Markets {
		names = append(names, m)
	}
	if _, ok := c.Markets[c.Data.Parquet.Market]; c.Data.Source == "parquet" && !ok {
		names = append(names, c.Data.Parquet.Market)
	}
	sort.Strings(names)
	return names
}
