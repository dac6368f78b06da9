package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrPublisherFull = errors.New("event buffer full")

// KafkaPublisher buffers messages and writes them from a single goroutine. The topic
// is taken from the envelope's event type.
type KafkaPublisher struct {
	w      *kafka.Writer
	inbox  chan kafka.Message
	done   chan struct{}
	logger *slog.Logger
	once   sync.Once
}

func NewKafkaPublisher(brokers []string, buf int, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		inbox:  make(chan kafka.Message, buf),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start runs the writer loop until Close is called.
func (p *KafkaPublisher) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.logger.Error("failed to publish event", "topic", m.Topic, "key", string(m.Key), "err", err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.logger.Error("failed to close kafka writer", "err", err)
		}
	}()
}

// Publish enqueues env. It fails fast rather than wait when the buffer is full.
func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: env.EventType,
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrPublisherFull
	}
}

// Close flushes buffered messages and waits for the writer to stop.
func (p *KafkaPublisher) Close() {
	p.once.Do(func() { close(p.inbox) })
	<-p.done
}
