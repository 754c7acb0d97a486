package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	messages chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.messages:
		return m, nil
	}
}

func (r *fakeReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{Messages: int64(len(r.messages))} }
func (r *fakeReader) Close() error             { return nil }

func newTestBus(queued ...kafka.Message) (*EvidenceBus, *fakeWriter, *fakeWriter) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	reader := &fakeReader{messages: make(chan kafka.Message, len(queued)+1)}
	for _, m := range queued {
		reader.messages <- m
	}

	writer, dlq := &fakeWriter{}, &fakeWriter{}
	bus := newEvidenceBus(writer, reader, dlq, DefaultEvidenceTopic, DefaultEvidenceDLQTopic, logger)
	bus.baseDelay = time.Millisecond
	return bus, writer, dlq
}

func encode(t *testing.T, msg EvidenceMessage) kafka.Message {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(msg.ProfileID.String()), Value: data}
}

func TestEvidenceBus_PublishEvidence(t *testing.T) {
	bus, writer, _ := newTestBus()
	profileID := uuid.New()
	rating := 9.0

	event := models.EvidenceEvent{ID: "item:x", Kind: models.EvidenceFeedback, ItemID: "x", Rating: &rating}
	require.NoError(t, bus.PublishEvidence(context.Background(), profileID, event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, profileID.String(), string(msg.Key))

	var decoded EvidenceMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, profileID, decoded.ProfileID)
	assert.Equal(t, "x", decoded.Event.ItemID)
	require.NotNil(t, decoded.Event.Rating)
	assert.InDelta(t, 9.0, *decoded.Event.Rating, 1e-9)
}

func TestEvidenceBus_PublishFailure(t *testing.T) {
	bus, writer, _ := newTestBus()
	writer.err = errors.New("broker unavailable")

	err := bus.PublishEvidence(context.Background(), uuid.New(), models.EvidenceEvent{Kind: models.EvidenceChoice})
	assert.Error(t, err)
}

func TestEvidenceBus_Consume(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		handlerErr  error
		wantCalls   int
		wantDLQ     int
		wantApplied bool
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1, wantApplied: true},
		{name: "succeeds after retries", failures: 2, handlerErr: errors.New("db busy"), wantCalls: 3, wantApplied: true},
		{name: "exhausts retries", failures: 10, handlerErr: errors.New("db down"), wantCalls: maxRetries + 1, wantDLQ: 1},
		{name: "permanent failure skips retries", failures: 10, handlerErr: fmt.Errorf("%w: no profile", ErrPermanent), wantCalls: 1, wantDLQ: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := EvidenceMessage{ProfileID: uuid.New(), Event: models.EvidenceEvent{Kind: models.EvidenceChoice}, Timestamp: time.Now()}
			bus, _, dlq := newTestBus(encode(t, msg))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			applied := false
			done := make(chan struct{})
			handler := func(_ context.Context, got EvidenceMessage) error {
				calls++
				assert.Equal(t, msg.ProfileID, got.ProfileID)
				if calls <= tt.failures {
					if calls == tt.wantCalls {
						close(done)
					}
					return tt.handlerErr
				}
				applied = true
				close(done)
				return nil
			}

			errc := make(chan error, 1)
			go func() { errc <- bus.Consume(ctx, handler) }()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("handler was not called")
			}

			// allow the DLQ write to happen before stopping the consumer
			require.Eventually(t, func() bool {
				dlq.mu.Lock()
				defer dlq.mu.Unlock()
				return len(dlq.messages) == tt.wantDLQ
			}, time.Second, 5*time.Millisecond)

			cancel()
			assert.ErrorIs(t, <-errc, context.Canceled)

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantApplied, applied)
		})
	}
}

func TestEvidenceBus_UndecodableMessageGoesToDLQ(t *testing.T) {
	msg := EvidenceMessage{ProfileID: uuid.New(), Event: models.EvidenceEvent{Kind: models.EvidenceChoice}, Timestamp: time.Now()}
	bus, _, dlq := newTestBus(kafka.Message{Key: []byte("broken"), Value: []byte("not json")}, encode(t, msg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan uuid.UUID, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- bus.Consume(ctx, func(_ context.Context, got EvidenceMessage) error {
			applied <- got.ProfileID
			return nil
		})
	}()

	select {
	case id := <-applied:
		assert.Equal(t, msg.ProfileID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("valid message after the broken one was not applied")
	}

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "broken", string(dlq.messages[0].Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(dlq.messages[0].Value, &payload))
	assert.Equal(t, "not json", payload["raw_message"])
	assert.NotEmpty(t, payload["error"])
}

func TestNewEvidenceBus_RequiresBrokers(t *testing.T) {
	logger := logrus.New()
	_, err := NewEvidenceBus(&config.Config{}, logger)
	assert.Error(t, err)
}

func TestEvidenceBus_GetMetrics(t *testing.T) {
	bus, _, _ := newTestBus(kafka.Message{Value: []byte("{}")}, kafka.Message{Value: []byte("{}")})

	metrics := bus.GetMetrics()
	assert.Equal(t, int64(2), metrics["messages_read"])
	assert.Contains(t, metrics, "consumer_lag")
}
