package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/testutil"
)

// mockKafkaReader hands out queued messages, then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "test-group",
		Topics:  []string{TopicTechnologyStatus},
		RetryConfig: RetryConfig{
			RetryBackoff: time.Millisecond,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	cfg := newTestConsumerConfig()
	cfg.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.Topics = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.RetryConfig.MaxRetries = -1
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestConsumerConfigFrom(t *testing.T) {
	cfg := ConsumerConfigFrom(config.KafkaConfig{
		Brokers:     []string{"b:9092"},
		GroupID:     "g",
		StatusTopic: "s",
		DeadLetter:  "dlq",
		MaxRetries:  2,
	})
	assert.Equal(t, []string{"s"}, cfg.Topics)
	assert.Equal(t, "dlq", cfg.RetryConfig.DeadLetterTopic)
	assert.Equal(t, 2, cfg.RetryConfig.MaxRetries)
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: TopicTechnologyStatus, Value: []byte("a"), Headers: []kafka.Header{{Key: "request_id", Value: []byte("r1")}}},
		{Topic: "other.topic", Value: []byte("b")},
	}}
	logger := testutil.NewMockLogger()
	c := newConsumer(reader, newTestConsumerConfig(), nil, logger)

	var got atomic.Value
	c.Subscribe(TopicTechnologyStatus, func(_ context.Context, msg *Message) error {
		got.Store(msg.Headers["request_id"])
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))

	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, "r1", got.Load())
	consumed, processed, failed, _, _ := c.Stats()
	assert.Equal(t, int64(2), consumed)
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(0), failed)
	assert.True(t, reader.closed)
	assert.True(t, logger.HasMessage("warn", "No handler for topic"))
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: TopicTechnologyStatus, Value: []byte("x")}}}
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.MaxRetries = 3
	c := newConsumer(reader, cfg, nil, nil)

	var calls int32
	c.Subscribe(TopicTechnologyStatus, func(context.Context, *Message) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	_, processed, _, retried, _ := c.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(2), retried)
}

func TestConsumer_DeadLettersAfterRetries(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: TopicTechnologyStatus, Key: []byte("k"), Value: []byte("poison")}}}
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.MaxRetries = 1
	cfg.RetryConfig.DeadLetterTopic = TopicDeadLetter
	dlq := &recordingPublisher{}
	c := newConsumer(reader, cfg, dlq, nil)

	c.Subscribe(TopicTechnologyStatus, func(context.Context, *Message) error {
		return errors.New("cannot decode")
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, TopicDeadLetter, dl.Topic)
	assert.Equal(t, []byte("poison"), dl.Value)
	assert.Equal(t, TopicTechnologyStatus, dl.Headers["original_topic"])
	assert.Equal(t, "cannot decode", dl.Headers["error_message"])

	_, _, failed, _, deadLettered := c.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), deadLettered)
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	reader := &mockKafkaReader{}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
