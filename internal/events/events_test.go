package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("storefront", TopicOrderPlaced, "o1", map[string]any{"totalPrice": 44.98})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "o1", env.CorrelationID)

	var payload map[string]float64
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 44.98, payload["totalPrice"])
}

func TestKafkaPublisher_FullBuffer(t *testing.T) {
	// not started, so nothing drains the buffer
	p := NewKafkaPublisher([]string{"127.0.0.1:1"}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env, _ := NewEnvelope("storefront", TopicOrderPaid, "o1", nil)

	require.NoError(t, p.Publish(t.Context(), env))
	assert.ErrorIs(t, p.Publish(t.Context(), env), ErrPublisherFull)
}
