package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/domain"
)

// EventMatchResolved is the event type of a freshly resolved match
const EventMatchResolved = "match.resolved"

// MatchEvent is the message format for the matches topic
type MatchEvent struct {
	EventType   string             `json:"event_type"`
	Match       domain.MatchRecord `json:"match"`
	PublishedAt time.Time          `json:"published_at"`
}

// Producer publishes resolved matches to Kafka
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer connects a synchronous producer to the configured brokers
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return NewProducerWithClient(producer, cfg.Topic, logger), nil
}

// NewProducerWithClient wraps an existing sarama producer
func NewProducerWithClient(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishMatch sends a match event keyed by server ID, so the matches of a
// server stay ordered within one partition.
func (p *Producer) PublishMatch(ctx context.Context, match domain.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(MatchEvent{
		EventType:   EventMatchResolved,
		Match:       match,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding match event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(match.ServerID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publishing match %s: %w", match.ID, err)
	}

	p.logger.Debug("match published",
		"match_id", match.ID,
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
