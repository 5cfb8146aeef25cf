package repository

import (
	"context"
	"fmt"

	"StockSense/internal/domain/models"
)

// MessageProducer is the part of pkg/kafka.Producer used here.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// TrainedEvent is published on the model-trained topic.
type TrainedEvent struct {
	Type     string          `json:"type"`
	Symbol   string          `json:"symbol"`
	Metadata models.Metadata `json:"metadata"`
}

// SummaryEvent is published on the summary topic after a bulk run.
type SummaryEvent struct {
	Type    string          `json:"type"`
	Market  string          `json:"market"`
	Summary *models.Summary `json:"summary"`
}

// KafkaEventPublisher implements EventPublisher on Kafka topics keyed by symbol or market.
type KafkaEventPublisher struct {
	producer     MessageProducer
	trainedTopic string
	summaryTopic string
}

func NewKafkaEventPublisher(producer MessageProducer, trainedTopic, summaryTopic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, trainedTopic: trainedTopic, summaryTopic: summaryTopic}
}

func (p *KafkaEventPublisher) PublishTrained(ctx context.Context, md models.Metadata) error {
	ev := TrainedEvent{Type: "model.trained", Symbol: md.Symbol, Metadata: md}
	if err := p.producer.Publish(ctx, p.trainedTopic, []byte(md.Symbol), ev); err != nil {
		return fmt.Errorf("publish %s: %w", p.trainedTopic, err)
	}
	return nil
}

func (p *KafkaEventPublisher) PublishSummary(ctx context.Context, s *models.Summary) error {
	ev := SummaryEvent{Type: "training.summary", Market: s.Market, Summary: s}
	if err := p.producer.Publish(ctx, p.summaryTopic, []byte(s.Market), ev); err != nil {
		return fmt.Errorf("publish %s: %w", p.summaryTopic, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaLogPublisher adapts a producer to the log collector's Publisher.
type KafkaLogPublisher struct {
	producer MessageProducer
}

func NewKafkaLogPublisher(producer MessageProducer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// NoopEventPublisher drops every event.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishTrained(context.Context, models.Metadata) error { return nil }
func (NoopEventPublisher) PublishSummary(context.Context, *models.Summary) error { return nil }
func (NoopEventPublisher) Close() error                                          { return nil }
