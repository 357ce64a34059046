package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/order"
	"ccspot/pkg/xnats"

	"github.com/nats-io/nats.go"
)

// NatsSender publishes order requests to the request subjects of a stream
type NatsSender struct {
	JS     nats.JetStreamContext
	Stream string
}

func (s *NatsSender) SendOrderReq(ctx context.Context, req xnats.OrderReq) (err error) {
	data, err := json.Marshal(req)
	if err != nil {
		return
	}
	_, err = s.JS.Publish(xnats.SubjectReq(s.Stream, req.Symbol, xnats.MsgTypeOrderReq), data, nats.Context(ctx))
	return
}

// DirectSender places requests on an in-process order service
type DirectSender struct {
	Orders *order.Service
}

func (s *DirectSender) SendOrderReq(ctx context.Context, req xnats.OrderReq) error {
	_, err := s.Orders.PlaceOrder(ctx, req.PlaceRequest())
	return err
}

var errBadRequest = errors.New("malformed request")

// rejected reports a request the order service refused on its merits, redelivery would not help
func rejected(err error) bool {
	return errors.Is(err, errBadRequest) ||
		errors.Is(err, model.ErrInvalidOrder) ||
		errors.Is(err, model.ErrInvalidAmount) ||
		errors.Is(err, model.ErrInsufficientBalance) ||
		errors.Is(err, model.ErrMarketInactive) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrInvalidOrderState)
}

// Handle places or cancels the order of one request message
func Handle(ctx context.Context, orders *order.Service, typ string, data []byte) (err error) {
	switch typ {
	case xnats.MsgTypeOrderReq:
		var req xnats.OrderReq
		if err = json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %s", errBadRequest, err)
		}
		_, err = orders.PlaceOrder(ctx, req.PlaceRequest())
	case xnats.MsgTypeCancelReq:
		var req xnats.CancelReq
		if err = json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: %s", errBadRequest, err)
		}
		_, err = orders.CancelOrder(ctx, req.OrderID, req.Owner)
	default:
		err = fmt.Errorf("%w: type %q", errBadRequest, typ)
	}
	return
}

// SubNats consumes the request subjects of stream until ctx is done or the subscription fails
func SubNats(ctx context.Context, js nats.JetStreamContext, stream, durable string, orders *order.Service) (err error) {
	if err = notify.EnsureStream(js, stream); err != nil {
		return
	}

	ch := make(chan *nats.Msg, 256)
	for _, typ := range []string{xnats.MsgTypeOrderReq, xnats.MsgTypeCancelReq} {
		sub, err := js.ChanSubscribe(stream+".*."+typ, ch, nats.Durable(durable+"-"+typ), nats.ManualAck(), nats.AckExplicit())
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}
	logger.Infof("ingress consumer %s subscribed to %s", durable, stream)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return errors.New("nats subscription closed")
			}
			err := Handle(ctx, orders, lastToken(m.Subject), m.Data)
			switch {
			case err == nil:
				err = m.Ack()
			case rejected(err):
				logger.Infof("ingress rejected %s, err:%s", m.Subject, err)
				err = m.Ack()
			default:
				logger.Warningf("ingress redeliver %s, err:%s", m.Subject, err)
				err = m.Nak()
			}
			if err != nil {
				return err
			}
		}
	}
}

func lastToken(subject string) string {
	return subject[strings.LastIndex(subject, ".")+1:]
}
