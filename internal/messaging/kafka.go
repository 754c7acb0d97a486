package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

const (
	DefaultEvidenceTopic    = "profile-evidence"
	DefaultEvidenceDLQTopic = "profile-evidence-dlq"
	DefaultConsumerGroup    = "profile-updaters"

	maxRetries = 3
)

// EvidenceMessage carries one evidence event for a profile. Messages are
// keyed by profile id so updates to one profile stay ordered.
type EvidenceMessage struct {
	ProfileID  uuid.UUID            `json:"profile_id"`
	Event      models.EvidenceEvent `json:"event"`
	Timestamp  time.Time            `json:"timestamp"`
	RetryCount int                  `json:"retry_count"`
}

// Handler applies one message. Errors wrapping ErrPermanent skip retries.
type Handler func(ctx context.Context, msg EvidenceMessage) error

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Stats() kafka.ReaderStats
	Close() error
}

// EvidenceBus publishes evidence to Kafka and consumes it for asynchronous
// profile updates.
type EvidenceBus struct {
	writer    messageWriter
	reader    messageReader
	dlqWriter messageWriter
	topic     string
	dlqTopic  string
	baseDelay time.Duration
	logger    *logrus.Logger
}

func NewEvidenceBus(cfg *config.Config, logger *logrus.Logger) (*EvidenceBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	topic := cfg.Kafka.Topics.Evidence
	if topic == "" {
		topic = DefaultEvidenceTopic
	}
	dlqTopic := cfg.Kafka.Topics.EvidenceDLQ
	if dlqTopic == "" {
		dlqTopic = DefaultEvidenceDLQTopic
	}
	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = DefaultConsumerGroup
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same profile, same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        dlqTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newEvidenceBus(writer, reader, dlqWriter, topic, dlqTopic, logger), nil
}

func newEvidenceBus(writer messageWriter, reader messageReader, dlqWriter messageWriter, topic, dlqTopic string, logger *logrus.Logger) *EvidenceBus {
	return &EvidenceBus{
		writer:    writer,
		reader:    reader,
		dlqWriter: dlqWriter,
		topic:     topic,
		dlqTopic:  dlqTopic,
		baseDelay: time.Second,
		logger:    logger,
	}
}

// PublishEvidence queues event for profileID
func (b *EvidenceBus) PublishEvidence(ctx context.Context, profileID uuid.UUID, event models.EvidenceEvent) error {
	message := EvidenceMessage{
		ProfileID: profileID,
		Event:     event,
		Timestamp: time.Now(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(profileID.String()),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "profile_id", Value: []byte(profileID.String())},
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "timestamp", Value: []byte(message.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		b.logger.WithError(err).WithField("profile_id", profileID).Error("Failed to publish evidence to Kafka")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"profile_id": profileID,
		"kind":       event.Kind,
		"topic":      b.topic,
	}).Debug("Evidence published to Kafka")

	return nil
}

// Consume reads messages until ctx is done. Messages that keep failing are
// moved to the dead letter topic.
func (b *EvidenceBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		message, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).Error("Failed to read message from Kafka")
			continue
		}

		var evidence EvidenceMessage
		if err := json.Unmarshal(message.Value, &evidence); err != nil {
			b.logger.WithError(err).Error("Failed to unmarshal evidence message")
			if dlqErr := b.sendUndecodableToDLQ(ctx, message, err); dlqErr != nil {
				b.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		if err := b.processWithRetry(ctx, evidence, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("profile_id", evidence.ProfileID).Error("Failed to apply evidence")
			if dlqErr := b.sendToDLQ(ctx, evidence, err); dlqErr != nil {
				b.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
		}
	}
}

func (b *EvidenceBus) processWithRetry(ctx context.Context, message EvidenceMessage, handler Handler) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.baseDelay * time.Duration(1<<uint(attempt-1))
			b.logger.WithFields(logrus.Fields{
				"profile_id": message.ProfileID,
				"attempt":    attempt,
				"delay":      delay,
			}).Info("Retrying evidence")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		err := handler(ctx, message)
		if err == nil {
			return nil
		}

		b.logger.WithError(err).WithFields(logrus.Fields{
			"profile_id": message.ProfileID,
			"attempt":    attempt,
		}).Warn("Evidence processing failed")

		if errors.Is(err, ErrPermanent) {
			return err
		}
		if attempt == maxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (b *EvidenceBus) sendToDLQ(ctx context.Context, message EvidenceMessage, originalError error) error {
	payload := map[string]interface{}{
		"original_message": message,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now(),
	}
	if err := b.writeDLQ(ctx, []byte(message.ProfileID.String()), payload, originalError); err != nil {
		return err
	}

	b.logger.WithFields(logrus.Fields{
		"profile_id": message.ProfileID,
		"error":      originalError.Error(),
	}).Warn("Evidence sent to DLQ")
	return nil
}

// sendUndecodableToDLQ forwards a message that is not an EvidenceMessage,
// keeping its raw value so it can be inspected.
func (b *EvidenceBus) sendUndecodableToDLQ(ctx context.Context, message kafka.Message, decodeError error) error {
	payload := map[string]interface{}{
		"raw_message":   string(message.Value),
		"error":         decodeError.Error(),
		"dlq_timestamp": time.Now(),
	}
	if err := b.writeDLQ(ctx, message.Key, payload, decodeError); err != nil {
		return err
	}

	b.logger.WithFields(logrus.Fields{
		"partition": message.Partition,
		"offset":    message.Offset,
		"error":     decodeError.Error(),
	}).Warn("Undecodable evidence sent to DLQ")
	return nil
}

func (b *EvidenceBus) writeDLQ(ctx context.Context, key []byte, payload map[string]interface{}, originalError error) error {
	dlqBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   key,
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "profile_id", Value: key},
			{Key: "original_topic", Value: []byte(b.topic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := b.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}
	return nil
}

func (b *EvidenceBus) Close() error {
	var errs []error

	if err := b.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := b.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := b.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing evidence bus: %v", errs)
	}
	return nil
}

// GetMetrics returns consumer statistics for monitoring
func (b *EvidenceBus) GetMetrics() map[string]interface{} {
	stats := b.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
