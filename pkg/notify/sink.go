package notify

import (
	"context"
	"errors"
	"sync"

	"ccspot/pkg/xlog"
)

var logger = xlog.GetLogger().Named("notify")

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Deliver publishes events in order, failures are logged and dropped since the ledger already committed
func Deliver(ctx context.Context, sink Sink, events ...Event) {
	if sink == nil {
		return
	}
	for _, ev := range events {
		if err := sink.Publish(ctx, ev); err != nil {
			logger.Warningf("deliver %s of %s failed, err: %s", ev.Type(), ev.Market(), err)
		}
	}
}

type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }

// Memory records every event, Handler when set is called synchronously after recording
type Memory struct {
	mu      sync.Mutex
	events  []Event
	Handler func(ctx context.Context, ev Event)
	Err     error // returned by Publish when set, the event is still recorded
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(ctx context.Context, ev Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	h, err := m.Handler, m.Err
	m.mu.Unlock()

	if h != nil {
		h(ctx, ev)
	}
	return err
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// OfType returns the recorded events of one type
func (m *Memory) OfType(typ string) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Multi publishes to every sink, one failing sink does not stop the others
type Multi []Sink

func (ms Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range ms {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a handler, e.g. an in-process matcher, into a Sink
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
