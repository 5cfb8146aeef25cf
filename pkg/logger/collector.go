package logger

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Publisher ships aggregated log batches, e.g. to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, default 30s
	CountThreshold int           // unique entries that trigger an early flush, default 100
	Topic          string
	Publisher      Publisher
	// OnError receives publish failures; the default writes them to stderr.
	OnError func(error)
}

// AggregatedLogEntry is one distinct log line and how often it was seen in the window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload of one flush, most frequent entries first.
type LogBatch struct {
	Host    string               `json:"host"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// LogCollector deduplicates error logs and publishes them in batches.
type LogCollector struct {
	config  CollectionConfig
	host    string
	now     func() time.Time
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			_, _ = os.Stderr.WriteString("log collector: " + err.Error() + "\n")
		}
	}
	host, _ := os.Hostname()

	c := newCollector(cfg, host)
	c.wg.Add(1)
	go c.loop()
	return c
}

func newCollector(cfg CollectionConfig, host string) *LogCollector {
	return &LogCollector{
		config:  cfg,
		host:    host,
		now:     time.Now,
		entries: make(map[uint64]*AggregatedLogEntry),
		stop:    make(chan struct{}),
	}
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	key := entryKey(level, message, fields, caller)
	now := d.now()

	d.mu.Lock()
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []AggregatedLogEntry
	if len(d.entries) >= d.config.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.publish(batch)
		}()
	}
}

// entryKey hashes the identifying parts of an entry. Fields are JSON encoded, which
// sorts map keys.
func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(level + "\x00" + message + "\x00" + caller + "\x00"))
	if len(fields) > 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			b = []byte(strconv.Itoa(len(fields)))
		}
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

func (d *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(d.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	d.entries = make(map[uint64]*AggregatedLogEntry)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

// Flush publishes the pending entries synchronously.
func (d *LogCollector) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

func (d *LogCollector) publish(entries []AggregatedLogEntry) {
	if d.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, LogBatch{Host: d.host, Entries: entries}); err != nil {
		d.config.OnError(err)
	}
}

func (d *LogCollector) loop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.stop:
			d.Flush()
			return
		}
	}
}

// Close flushes what is left and waits for in-flight publishes.
func (d *LogCollector) Close() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}
