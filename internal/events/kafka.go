package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes lifecycle events to a Kafka topic through a buffered
// inbox so callers never block on the broker. Events are dropped, with a log
// line, when the inbox is full.
type KafkaPublisher struct {
	writer  kafkaWriter
	inbox   chan kafka.Message
	done    chan struct{}
	logger  zerolog.Logger
	nowFunc func() time.Time
}

// kafkaWriter is the subset of *kafka.Writer used by KafkaPublisher.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaPublisher constructs a publisher for the given brokers and topic.
// Run must be started before events are delivered.
func NewKafkaPublisher(brokers []string, topic string, buf int, logger zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, buf, logger)
}

func newKafkaPublisher(w kafkaWriter, buf int, logger zerolog.Logger) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	return &KafkaPublisher{
		writer:  w,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Publish enqueues an event for asynchronous delivery.
func (p *KafkaPublisher) Publish(eventType, key string, payload any) {
	env, err := NewEnvelope(eventType, key, p.nowFunc(), payload)
	if err != nil {
		p.logger.Error().Err(err).Str("type", eventType).Msg("marshal event")
		return
	}
	value, _ := json.Marshal(env)

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn().Str("type", eventType).Str("key", key).Msg("event inbox full, dropping")
	}
}

// Run drains the inbox until ctx is canceled, then flushes what remains and
// closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			if err := p.writer.Close(); err != nil {
				p.logger.Error().Err(err).Msg("close kafka writer")
			}
			return
		case msg := <-p.inbox:
			p.write(msg)
		}
	}
}

// Wait blocks until Run has flushed and returned.
func (p *KafkaPublisher) Wait() { <-p.done }

func (p *KafkaPublisher) flush() {
	for {
		select {
		case msg := <-p.inbox:
			p.write(msg)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("key", string(msg.Key)).Msg("write kafka message")
	}
}
