package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/events"
	"example.com/activitystore/internal/store"
)

var clock = time.Date(2024, time.March, 21, 9, 0, 0, 0, time.UTC)

type stubPublisher struct {
	err      error
	topic    string
	messages []kafka.Message
}

func (p *stubPublisher) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.messages = append(p.messages, msgs...)
	return nil
}

func newStoreHandler(t *testing.T, publisher Publisher) (*StoreHandler, *store.Store) {
	t.Helper()
	layout, err := store.NewLayout(t.TempDir())
	require.NoError(t, err)
	s := store.New(layout, store.WithClock(func() time.Time { return clock }))
	h := NewStoreHandler(domain.NewService(s, zaptest.NewLogger(t)), publisher, "activity_batches_dlq", zaptest.NewLogger(t))
	h.now = func() time.Time { return clock }
	return h, s
}

func batchMessage(t *testing.T, event events.ActivityBatchSubmitted) Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return Message{
		Topic:     "activity_batches",
		Offset:    7,
		Key:       event.UserID,
		EventType: events.TypeActivityBatchSubmitted,
		UserID:    event.UserID,
		Payload:   payload,
	}
}

func record(fields string) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fields), &out); err != nil {
		panic(err)
	}
	return out
}

func TestStoreHandlerPersistsValidBatch(t *testing.T) {
	publisher := &stubPublisher{}
	h, s := newStoreHandler(t, publisher)

	msg := batchMessage(t, events.ActivityBatchSubmitted{
		UserID:       "u1",
		ActivityType: "running",
		Records: []map[string]json.RawMessage{
			record(`{"activity_id":"a1","date":"2024-03-21","activity_type":"run","duration":3600,"distance":10000,"avg_heart_rate":150,"max_heart_rate":180}`),
		},
	})
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Empty(t, publisher.messages)

	records, err := s.Load(context.Background(), "u1", "running", clock)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "a1", records[0].ActivityID)
}

func TestStoreHandlerFallsBackToHeaderUserID(t *testing.T) {
	h, s := newStoreHandler(t, &stubPublisher{})

	msg := batchMessage(t, events.ActivityBatchSubmitted{
		ActivityType: "running",
		Records: []map[string]json.RawMessage{
			record(`{"activity_id":"a1","date":"2024-03-21","activity_type":"run","duration":1,"distance":1,"avg_heart_rate":1,"max_heart_rate":1}`),
		},
	})
	msg.UserID = "u9"
	require.NoError(t, h.Handle(context.Background(), msg))

	records, err := s.Load(context.Background(), "u9", "running", clock)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestStoreHandlerDeadLettersInvalidBatch(t *testing.T) {
	publisher := &stubPublisher{}
	h, s := newStoreHandler(t, publisher)

	msg := batchMessage(t, events.ActivityBatchSubmitted{
		UserID:       "u1",
		ActivityType: "running",
		Records: []map[string]json.RawMessage{
			record(`{"activity_id":"a1","date":"2024-03-21","activity_type":"run","duration":"abc","distance":10000,"avg_heart_rate":150,"max_heart_rate":180}`),
		},
	})
	require.NoError(t, h.Handle(context.Background(), msg))

	require.Equal(t, "activity_batches_dlq", publisher.topic)
	require.Len(t, publisher.messages, 1)
	out := publisher.messages[0]
	require.Equal(t, []byte("u1"), out.Key)

	var rejected events.ActivityBatchRejected
	require.NoError(t, json.Unmarshal(out.Value, &rejected))
	require.Equal(t, "u1", rejected.UserID)
	require.Equal(t, []string{"duration contains invalid values"}, rejected.Errors)
	require.Equal(t, clock, rejected.RejectedAt)
	require.JSONEq(t, string(msg.Payload), string(rejected.Original))

	records, err := s.Load(context.Background(), "u1", "running", clock)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestStoreHandlerDeadLettersUndecodablePayload(t *testing.T) {
	publisher := &stubPublisher{}
	h, _ := newStoreHandler(t, publisher)

	err := h.Handle(context.Background(), Message{
		EventType: events.TypeActivityBatchSubmitted,
		Payload:   json.RawMessage(`{"records":"nope"}`),
	})
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)
}

func TestStoreHandlerReturnsPublishFailure(t *testing.T) {
	h, _ := newStoreHandler(t, &stubPublisher{err: errors.New("broker down")})

	err := h.Handle(context.Background(), Message{
		EventType: events.TypeActivityBatchSubmitted,
		Payload:   json.RawMessage(`{"records":"nope"}`),
	})
	require.ErrorContains(t, err, "broker down")
}

func TestStoreHandlerReturnsPersistenceFailure(t *testing.T) {
	h, _ := newStoreHandler(t, &stubPublisher{})

	// An activity type that cannot name a directory makes the store refuse the write.
	msg := batchMessage(t, events.ActivityBatchSubmitted{
		UserID:       "u1",
		ActivityType: "a/b",
		Records: []map[string]json.RawMessage{
			record(`{"activity_id":"a1","date":"2024-03-21","activity_type":"run","duration":1,"distance":1,"avg_heart_rate":1,"max_heart_rate":1}`),
		},
	})
	err := h.Handle(context.Background(), msg)
	require.ErrorIs(t, err, domain.ErrNotPersisted)
}

func TestStoreHandlerIgnoresOtherEvents(t *testing.T) {
	publisher := &stubPublisher{}
	h, _ := newStoreHandler(t, publisher)

	require.NoError(t, h.Handle(context.Background(), Message{EventType: "SomethingElse", Payload: json.RawMessage(`{}`)}))
	require.Empty(t, publisher.messages)
}

func TestStoreHandlerWithoutPublisherDrops(t *testing.T) {
	h, _ := newStoreHandler(t, nil)

	err := h.Handle(context.Background(), Message{
		EventType: events.TypeActivityBatchSubmitted,
		Payload:   json.RawMessage(`{"records":"nope"}`),
	})
	require.NoError(t, err)
}
