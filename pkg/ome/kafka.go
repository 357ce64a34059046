package ome

import (
	"context"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer reads the event topic with one consumer group per market and keeps that market's events.
// An offset is committed only once its message was handled, a failure restarts the reader at the last commit.
type KafkaConsumer struct {
	Brokers []string
	Topic   string
	GroupID string // a -SYMBOL suffix is added per market
}

func (c *KafkaConsumer) Consume(ctx context.Context, symbol string, handle Handler) (err error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    c.Topic,
		GroupID:  c.GroupID + "-" + symbol,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()
	logger.Infof("kafka consumer %s-%s reading %s", c.GroupID, symbol, c.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if strings.EqualFold(string(m.Key), symbol) {
			err = dispatch(ctx, symbol, m.Value, handle)
			if errors.Is(err, errPoison) {
				logger.Errorf("kafka drop message at %d/%d, err:%s", m.Partition, m.Offset, err)
			} else if err != nil {
				return err
			}
		}

		if err := r.CommitMessages(ctx, m); err != nil {
			return err
		}
	}
}
