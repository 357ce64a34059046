package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Subject returns STREAM.SYMBOL.Type, e.g. SPOT.BTC_USDT.OrderCreated
func Subject(stream, symbol, typ string) string {
	return fmt.Sprintf("%s.%s.%s", stream, strings.ToUpper(symbol), typ)
}

// EnsureStream creates the stream capturing every STREAM.*.* subject when missing
func EnsureStream(js nats.JetStreamContext, stream string) error {
	if _, err := js.StreamInfo(stream); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{stream + ".*.*"},
	})
	return err
}

// ConnectJetStream dials url and returns its JetStream context
func ConnectJetStream(url, name string) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, nil, err
	}
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, js, nil
}

type NatsSink struct {
	js     nats.JetStreamContext
	stream string
}

func NewNatsSink(js nats.JetStreamContext, stream string) *NatsSink {
	return &NatsSink{js: js, stream: stream}
}

func (s *NatsSink) Publish(ctx context.Context, ev Event) error {
	env, b, err := Encode(ev)
	if err != nil {
		return err
	}
	return s.PublishEnvelope(ctx, ev.Market(), env, b)
}

func (s *NatsSink) PublishEnvelope(ctx context.Context, symbol string, env Envelope, b []byte) error {
	// the envelope id lets JetStream drop a re-published duplicate
	_, err := s.js.Publish(Subject(s.stream, symbol, env.Type), b, nats.MsgId(env.ID), nats.Context(ctx))
	return err
}
