package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish keys the message by market so one market stays on one partition, in order
func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	env, b, err := Encode(ev)
	if err != nil {
		return err
	}
	return s.PublishEnvelope(ctx, ev.Market(), env, b)
}

func (s *KafkaSink) PublishEnvelope(ctx context.Context, symbol string, env Envelope, b []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
			{Key: "id", Value: []byte(env.ID)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
