package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, zerolog.DebugLevel).With(String("component", "trainer"))

	l.Info("trained",
		String("symbol", "AAPL"),
		Int("epochs", 3),
		Float64("mae", 0.25),
		Bool("early_stop", true),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	got := lines(t, &buf)
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "trained", e["message"])
	assert.Equal(t, "trainer", e["component"])
	assert.Equal(t, "AAPL", e["symbol"])
	assert.Equal(t, float64(3), e["epochs"])
	assert.Equal(t, 0.25, e["mae"])
	assert.Equal(t, true, e["early_stop"])
	assert.Equal(t, float64(1500), e["took"])
	assert.Equal(t, "boom", e["error"])
	assert.Contains(t, e, "caller")
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["message"])
}

func TestLogger_CollectsErrors(t *testing.T) {
	var buf bytes.Buffer
	pub := &recordingPublisher{}
	l := newWithWriter(&buf, zerolog.InfoLevel)
	l.collector = newCollector(CollectionConfig{CountThreshold: 100, Publisher: pub}, "h")

	l.Warn("not collected")
	l.Error("fetch failed", String("symbol", "AAPL"), Error(errors.New("timeout")))
	l.collector.Flush()

	require.Equal(t, 1, pub.count())
	entries := pub.batches[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "fetch failed", entries[0].Message)
	assert.Equal(t, "timeout", entries[0].Fields["error"])
	assert.Contains(t, entries[0].Caller, "logger_test.go:")
}

func TestNew(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(&Config{Level: "debug", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	NewNop().Error("discarded", Error(errors.New("x")))
}
