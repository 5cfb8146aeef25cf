package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
)

// MemStore is an in-memory ModelStore, ModelCounter and SummaryStore.
type MemStore struct {
	mu        sync.Mutex
	artifacts map[string]*models.Artifact
	summaries map[string]*models.Summary
	Saves     int
	SaveErr   error
}

func NewMemStore() *MemStore {
	return &MemStore{artifacts: map[string]*models.Artifact{}, summaries: map[string]*models.Summary{}}
}

func (s *MemStore) Save(_ context.Context, a *models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *a
	s.artifacts[models.ArtifactKey(a.Metadata.Symbol)] = &cp
	s.Saves++
	return nil
}

func (s *MemStore) Load(_ context.Context, symbol string) (*models.Artifact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[models.ArtifactKey(symbol)]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

// Put stores a without counting it as a save.
func (s *MemStore) Put(a *models.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[models.ArtifactKey(a.Metadata.Symbol)] = a
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts), nil
}

// Keys lists stored artifact keys in order.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.artifacts))
	for k := range s.artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemStore) SaveSummary(_ context.Context, sum *models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.Market] = sum
	return nil
}

func (s *MemStore) LoadSummary(_ context.Context, market string) (*models.Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[market]
	return sum, ok, nil
}

// StaticData serves fixed bars per symbol and fixed symbol lists per market.
type StaticData struct {
	mu       sync.Mutex
	Bars     map[string][]models.Bar
	Markets  map[string][]string
	Errs     map[string]error
	Requests []domrepo.Period
}

func (d *StaticData) GetBars(_ context.Context, symbol string, period domrepo.Period) ([]models.Bar, error) {
	d.mu.Lock()
	d.Requests = append(d.Requests, period)
	d.mu.Unlock()
	if err, ok := d.Errs[symbol]; ok {
		return nil, err
	}
	bars, ok := d.Bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %s", models.ErrUpstreamFetch, symbol)
	}
	return bars, nil
}

func (d *StaticData) Symbols(_ context.Context, market string) ([]string, error) {
	syms, ok := d.Markets[market]
	if !ok {
		return nil, fmt.Errorf("%w: unknown market %s", models.ErrInvalidInput, market)
	}
	return syms, nil
}

// RecordingPublisher keeps every event it is given.
type RecordingPublisher struct {
	mu        sync.Mutex
	Trained   []models.Metadata
	Summaries []*models.Summary
}

func (p *RecordingPublisher) PublishTrained(_ context.Context, md models.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Trained = append(p.Trained, md)
	return nil
}

func (p *RecordingPublisher) PublishSummary(_ context.Context, s *models.Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Summaries = append(p.Summaries, s)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// RecordingMetrics counts metric calls by label.
type RecordingMetrics struct {
	mu          sync.Mutex
	Trainings   map[string]int
	Predictions map[string]int
	Errors      map[string]int
	Quality     map[string]float64
}

func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		Trainings:   map[string]int{},
		Predictions: map[string]int{},
		Errors:      map[string]int{},
		Quality:     map[string]float64{},
	}
}

func (m *RecordingMetrics) RecordTraining(market, result string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trainings[market+"/"+result]++
}

func (m *RecordingMetrics) RecordModelQuality(symbol string, testMAE float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quality[symbol] = testMAE
}

func (m *RecordingMetrics) RecordPrediction(source, result string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Predictions[source+"/"+result]++
}

func (m *RecordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[kind]++
}

// RecordingQueue captures published jobs.
type RecordingQueue struct {
	mu       sync.Mutex
	Messages []QueuedMessage
	Err      error
}

type QueuedMessage struct {
	Type    string
	Payload interface{}
}

func (q *RecordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Messages = append(q.Messages, QueuedMessage{Type: msgType, Payload: payload})
	return nil
}

func (q *RecordingQueue) Pending(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.Messages)), nil
}
