package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkbook/internal/core/id"
	"checkbook/internal/domain/events"
	"checkbook/internal/infrastructure/storage/postgres"
)

func TestToMessage(t *testing.T) {
	msgID := id.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m := toMessage(&postgres.OutboxMessage{
		ID:            msgID,
		AggregateType: events.AggregateCheckRequest,
		AggregateID:   "42",
		EventType:     events.TypeCheckIssued,
		Payload:       []byte(`{"requestId":42}`),
		CreatedAt:     created,
	})

	assert.Equal(t, events.AggregateCheckRequest+":42", string(m.Key))
	assert.JSONEq(t, `{"requestId":42}`, string(m.Value))
	assert.Equal(t, created, m.Time)

	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Len(t, headers, 3)
	assert.Equal(t, events.TypeCheckIssued, headers[HeaderEventType])
	assert.Equal(t, events.AggregateCheckRequest, headers[HeaderAggregateType])
	assert.Equal(t, msgID.String(), headers[HeaderMessageID])
}

func TestNewPublisher_DefaultTopic(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "")
	defer p.Close()

	assert.Equal(t, DefaultTopic, p.writer.Topic)
}
