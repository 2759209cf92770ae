package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/events"
)

// Dead-letter reasons.
const (
	reasonDecode     = "decode"
	reasonValidation = "validation"
)

// Publisher writes messages to a Kafka topic.
type Publisher interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// StoreHandler submits ActivityBatchSubmitted events to the domain service.
// Batches that can never be stored are routed to the dead-letter topic and
// acknowledged; persistence failures are returned so the message stays
// uncommitted.
type StoreHandler struct {
	service         *domain.Service
	publisher       Publisher
	deadLetterTopic string
	logger          *zap.Logger
	now             func() time.Time
}

// NewStoreHandler constructs a StoreHandler. A nil publisher or empty topic
// disables dead-lettering; rejected batches are then only logged.
func NewStoreHandler(service *domain.Service, publisher Publisher, deadLetterTopic string, logger *zap.Logger) *StoreHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreHandler{
		service:         service,
		publisher:       publisher,
		deadLetterTopic: deadLetterTopic,
		logger:          logger,
		now:             time.Now,
	}
}

// Handle processes a single message.
func (h *StoreHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityBatchSubmitted {
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType), zap.String("topic", msg.Topic))
		return nil
	}

	var event events.ActivityBatchSubmitted
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return h.deadLetter(ctx, msg, event, reasonDecode, domain.Report{Errors: []string{fmt.Sprintf("decode payload: %v", err)}})
	}
	if event.UserID == "" {
		event.UserID = msg.UserID
	}
	source := event.Source
	if source == "" {
		source = "kafka"
	}

	batch, err := domain.RawBatchFromObjects(event.Records)
	if err != nil {
		return h.deadLetter(ctx, msg, event, reasonDecode, domain.Report{Errors: []string{err.Error()}})
	}

	result, err := h.service.SubmitBatch(ctx, domain.SubmitBatchInput{
		UserID:       event.UserID,
		ActivityType: event.ActivityType,
		Batch:        batch,
		Source:       source,
	})
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return h.deadLetter(ctx, msg, event, reasonValidation, result.Report)
	case err != nil:
		return fmt.Errorf("submit batch for user %s: %w", event.UserID, err)
	}

	h.logger.Info("stored activity batch",
		zap.String("batch_id", result.BatchID),
		zap.String("user_id", event.UserID),
		zap.String("activity_type", event.ActivityType),
		zap.Int("records", result.Stored),
	)
	return nil
}

func (h *StoreHandler) deadLetter(ctx context.Context, msg Message, event events.ActivityBatchSubmitted, reason string, report domain.Report) error {
	recordDeadLetter(reason)
	logger := h.logger.With(
		zap.String("reason", reason),
		zap.String("user_id", event.UserID),
		zap.Int64("offset", msg.Offset),
		zap.Strings("errors", report.Errors),
	)
	if h.publisher == nil || h.deadLetterTopic == "" {
		logger.Warn("dropping rejected batch")
		return nil
	}

	rejected := events.ActivityBatchRejected{
		UserID:       event.UserID,
		ActivityType: event.ActivityType,
		Errors:       report.Errors,
		Warnings:     report.Warnings,
		RejectedAt:   h.now().UTC(),
		Original:     msg.Payload,
	}
	value, err := json.Marshal(rejected)
	if err != nil {
		return fmt.Errorf("encode rejected batch: %w", err)
	}

	out := kafka.Message{
		Key:   []byte(msg.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeActivityBatchRejected)},
			{Key: "user_id", Value: []byte(event.UserID)},
			{Key: "reason", Value: []byte(reason)},
		},
	}
	if err := h.publisher.WriteMessages(ctx, h.deadLetterTopic, out); err != nil {
		return fmt.Errorf("publish to %s: %w", h.deadLetterTopic, err)
	}
	logger.Warn("routed rejected batch to dead-letter topic", zap.String("topic", h.deadLetterTopic))
	return nil
}
