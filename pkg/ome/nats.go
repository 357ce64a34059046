package ome

import (
	"context"
	"errors"

	"ccspot/pkg/notify"

	"github.com/nats-io/nats.go"
)

// NatsConsumer reads OrderCreated events of a market from a JetStream durable consumer
type NatsConsumer struct {
	JS      nats.JetStreamContext
	Stream  string // e.g. SPOT
	Durable string // a -SYMBOL suffix is added per market
}

func (c *NatsConsumer) Consume(ctx context.Context, symbol string, handle Handler) (err error) {
	if err = notify.EnsureStream(c.JS, c.Stream); err != nil {
		return
	}

	ch := make(chan *nats.Msg, 256)
	sub, err := c.JS.ChanSubscribe(
		notify.Subject(c.Stream, symbol, notify.TypeOrderCreated), ch,
		nats.Durable(c.Durable+"-"+symbol),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
	)
	if err != nil {
		return
	}
	defer sub.Unsubscribe()
	logger.Infof("nats consumer %s-%s subscribed", c.Durable, symbol)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return errors.New("nats subscription closed")
			}
			err := dispatch(ctx, symbol, m.Data, handle)
			switch {
			case err == nil:
				err = m.Ack()
			case errors.Is(err, errPoison):
				logger.Errorf("nats drop message of %s, err:%s", m.Subject, err)
				err = m.Term()
			default:
				logger.Warningf("nats redeliver message of %s, err:%s", m.Subject, err)
				err = m.Nak()
			}
			if err != nil {
				return err
			}
		}
	}
}
