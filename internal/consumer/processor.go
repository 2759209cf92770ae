// Package consumer ingests activity batches from Kafka into the store.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	magicByte = 0

	defaultMinRetryBackoff = 500 * time.Millisecond
	defaultMaxRetryBackoff = 30 * time.Second
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Key       string
	EventType string
	UserID    string
	SchemaID  int
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryBackoff overrides the delays between attempts at a message whose
// handler failed.
func WithRetryBackoff(minBackoff, maxBackoff time.Duration) Option {
	return func(p *Processor) {
		if minBackoff > 0 {
			p.minBackoff = minBackoff
		}
		if maxBackoff >= p.minBackoff {
			p.maxBackoff = maxBackoff
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     zap.NewNop(),
		minBackoff: defaultMinRetryBackoff,
		maxBackoff: defaultMaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context
// is cancelled. A message whose handler fails is retried with backoff and
// the loop does not advance past it, so no later offset is committed ahead
// of it. If the context ends first the message stays uncommitted and is
// redelivered to the next reader of the group.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch error", zap.Error(err))
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr),
			)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Warn("commit error after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if err := p.handle(ctx, event); err != nil {
			return err
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Warn("commit error", zap.Error(commitErr))
		} else {
			recordProcessed(event)
		}
	}
}

// handle calls the handler until it succeeds or ctx is done.
func (p *Processor) handle(ctx context.Context, event Message) error {
	backoff := p.minBackoff
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			return nil
		}
		p.logger.Error("handler error",
			zap.String("event_type", event.EventType),
			zap.String("user_id", event.UserID),
			zap.Int64("offset", event.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		recordHandlerError(event)
		if err := ctx.Err(); err != nil {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, p.maxBackoff)
	}
}

// decodeMessage accepts both schema-registry framed values (magic byte plus
// a big-endian schema id) and bare JSON documents.
func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) == 0 {
		return Message{}, errors.New("empty payload")
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	userID, _ := headerValue(msg, "user_id")

	schemaID := 0
	payload := msg.Value
	if msg.Value[0] == magicByte {
		if len(msg.Value) < 5 {
			return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
		}
		schemaID = int(binary.BigEndian.Uint32(msg.Value[1:5]))
		payload = msg.Value[5:]
	}
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Key:       string(msg.Key),
		EventType: string(eventType),
		UserID:    string(userID),
		SchemaID:  schemaID,
		Payload:   json.RawMessage(append([]byte(nil), payload...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
