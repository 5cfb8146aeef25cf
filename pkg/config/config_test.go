package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "markets:\n  us: [AAPL]\n"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30, c.Training.Lookback)
	assert.Equal(t, 10, c.Training.Epochs)
	assert.Equal(t, 0.8, c.Training.TrainRatio)
	assert.Equal(t, "6mo", c.Inference.RecentPeriod)
	assert.Equal(t, "2y", c.Inference.FallbackPeriod)
	assert.Equal(t, 200, c.Pipeline.MinBars)
	assert.Equal(t, "file", c.Store.Backend)
	assert.Equal(t, "http", c.Data.Source)
	assert.Equal(t, 5*time.Second, c.Queue.PollTimeout)
	assert.Equal(t, []string{"us"}, c.MarketNames())
}

func TestLoad_SampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"indian", "us"}, c.MarketNames())
	assert.Contains(t, c.Markets["indian"], "RELIANCE.NS")
	assert.Equal(t, 10*time.Minute, c.Inference.ModelCacheTTL)
}

func TestApplyEnv(t *testing.T) {
	c, err := Load(writeConfig(t, "markets:\n  us: [AAPL]\n"))
	require.NoError(t, err)
	env := map[string]string{
		"LOG_LEVEL":       "debug",
		"MODEL_DIR":       "/data/models",
		"STORE_BACKEND":   "redis",
		"REDIS_ADDR":      "cache:6380",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"EPOCHS":          "25",
		"CLICKHOUSE_HOST": "ch",
	}

	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/data/models", c.Store.Dir)
	assert.Equal(t, "redis", c.Store.Backend)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 25, c.Training.Epochs)
	assert.Equal(t, "ch", c.ClickHouse.Host)

	assert.Error(t, c.applyEnv(func(k string) string {
		if k == "EPOCHS" {
			return "many"
		}
		return ""
	}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad store backend", "store:\n  backend: s3\nmarkets:\n  us: [A]\n"},
		{"bad data source", "data:\n  source: ftp\nmarkets:\n  us: [A]\n"},
		{"parquet without path", "data:\n  source: parquet\n"},
		{"no markets", "environment: test\n"},
		{"bad train ratio", "training:\n  train_ratio: 1.5\nmarkets:\n  us: [A]\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\nmarkets:\n  us: [A]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_MemoryStore(t *testing.T) {
	c, err := Load(writeConfig(t, "store:\n  backend: memory\nmarkets:\n  us: [A]\n"))
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Store.Backend)
}

func TestMarketNames_Parquet(t *testing.T) {
	c, err := Load(writeConfig(t, "data:\n  source: parquet\n  parquet:\n    path: x.parquet\n    market: indian\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"indian"}, c.MarketNames())
}
