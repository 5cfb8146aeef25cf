package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSense/internal/domain/models"
)

type sentMessage struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	sent   []sentMessage
	err    error
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), value: value})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEventPublisher(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaEventPublisher(fp, "models.trained", "training.summary")
	ctx := context.Background()

	require.NoError(t, p.PublishTrained(ctx, models.Metadata{Symbol: "AAPL", BundleID: "b"}))
	require.NoError(t, p.PublishSummary(ctx, &models.Summary{Market: "us"}))
	require.NoError(t, p.Close())

	require.Len(t, fp.sent, 2)
	assert.Equal(t, "models.trained", fp.sent[0].topic)
	assert.Equal(t, "AAPL", fp.sent[0].key)
	ev, ok := fp.sent[0].value.(TrainedEvent)
	require.True(t, ok)
	assert.Equal(t, "model.trained", ev.Type)
	assert.Equal(t, "b", ev.Metadata.BundleID)
	assert.Equal(t, "training.summary", fp.sent[1].topic)
	assert.Equal(t, "us", fp.sent[1].key)
	assert.True(t, fp.closed)

	fp.err = errors.New("broker down")
	assert.ErrorContains(t, p.PublishTrained(ctx, models.Metadata{Symbol: "X"}), "broker down")
}

func TestKafkaLogPublisher(t *testing.T) {
	fp := &fakeProducer{}

	require.NoError(t, NewKafkaLogPublisher(fp).PublishMessage(context.Background(), "logs", []string{"a"}))

	require.Len(t, fp.sent, 1)
	assert.Equal(t, "logs", fp.sent[0].topic)
	assert.Empty(t, fp.sent[0].key)
}
