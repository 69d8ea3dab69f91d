package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/domain"
)

var errInvalidEvent = errors.New("match event is missing required fields")

// MatchArchiver stores resolved matches for long-term history
type MatchArchiver interface {
	ArchiveMatches(ctx context.Context, matches []domain.MatchRecord) error
}

// readyTimeout bounds how long Start waits for the first group session
var readyTimeout = 30 * time.Second

// Consumer consumes match events from Kafka and archives them in batches
type Consumer struct {
	config        *config.KafkaConfig
	archiver      MatchArchiver
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan struct{}
	readyOnce     sync.Once
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, archiver MatchArchiver, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return newConsumerWithGroup(cfg, consumerGroup, archiver, logger), nil
}

func newConsumerWithGroup(cfg *config.KafkaConfig, group sarama.ConsumerGroup, archiver MatchArchiver, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		archiver:      archiver,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan struct{}),
	}
}

func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Start begins consuming messages from Kafka. It waits for the first group
// session up to readyTimeout; after that consumption keeps retrying in the
// background until Stop.
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &consumerGroupHandler{
			config:   c.config,
			archiver: c.archiver,
			logger:   c.logger,
			onSetup:  c.markReady,
		}

		for {
			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)

				// Back off before rejoining so a missing topic does not spin
				select {
				case <-c.ctx.Done():
				case <-time.After(c.config.RetryDelay):
				}
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	// Wait until consumer is ready
	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-time.After(readyTimeout):
		c.logger.Warn("Kafka consumer not ready yet, still joining in background", "waited", readyTimeout)
	}

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// decodeMatchEvent parses a message value into the match it carries
func decodeMatchEvent(value []byte) (domain.MatchRecord, error) {
	var event MatchEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return domain.MatchRecord{}, err
	}
	m := event.Match
	if m.ID == "" || m.ServerID == "" || m.Player1ID == "" || m.Player2ID == "" || m.WinnerID == "" {
		return domain.MatchRecord{}, errInvalidEvent
	}
	return m, nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	config   *config.KafkaConfig
	archiver MatchArchiver
	logger   *slog.Logger
	onSetup  func()
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.onSetup != nil {
		h.onSetup()
	}
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// archive writes a batch, retrying transient failures. Archiving is
// idempotent on match ID, so a retried batch never duplicates rows.
func (h *consumerGroupHandler) archive(batch []domain.MatchRecord) error {
	attempts := h.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(h.config.RetryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = h.archiver.ArchiveMatches(ctx, batch)
		cancel()
		if err == nil {
			return nil
		}
		h.logger.Warn("archive attempt failed", "attempt", i+1, "batch_size", len(batch), "error", err)
	}
	return err
}

// ConsumeClaim processes messages from a topic partition. Offsets are
// marked only after their batch is archived; a batch that still fails
// after its retries ends the claim unmarked, so the next session replays
// it from the last committed offset.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.config
	batch := make([]domain.MatchRecord, 0, cfg.BatchSize)
	var last *sarama.ConsumerMessage
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		if len(batch) > 0 {
			if err := h.archive(batch); err != nil {
				h.logger.Error("failed to archive batch, offsets left uncommitted",
					"error", err,
					"batch_size", len(batch),
					"last_offset", last.Offset,
				)
				return fmt.Errorf("archiving %d matches: %w", len(batch), err)
			}
			h.logger.Debug("archived batch", "batch_size", len(batch))
		}
		if last != nil {
			session.MarkMessage(last, "")
		}

		batch = batch[:0]
		last = nil
		return nil
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}
			last = message

			match, err := decodeMatchEvent(message.Value)
			if err != nil {
				h.logger.Warn("skipping invalid match event",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}

			batch = append(batch, match)

			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
