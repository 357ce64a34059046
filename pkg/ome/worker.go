package ome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ccspot/pkg/notify"
	"ccspot/pkg/xetcd"
)

// Handler processes one decoded event, an error asks the consumer to redeliver it
type Handler func(ctx context.Context, ev notify.Event) error

// Consumer feeds the OrderCreated events of one market to a handler until ctx is done
type Consumer interface {
	Consume(ctx context.Context, symbol string, handle Handler) error
}

// errPoison marks a message that can never be handled, it is dropped instead of redelivered
var errPoison = errors.New("undecodable message")

// dispatch decodes one wire message and hands it to handle when it belongs to symbol
func dispatch(ctx context.Context, symbol string, b []byte, handle Handler) error {
	_, ev, err := notify.Decode(b)
	if err != nil {
		return fmt.Errorf("%w: %s", errPoison, err)
	}
	if !strings.EqualFold(ev.Market(), symbol) {
		return nil
	}
	return handle(ctx, ev)
}

// Worker is the matcher process, one consumer loop per served market
type Worker struct {
	Name    string   // e.g. Matcher_BTC_USDT
	Symbols []string // e.g. BTC_USDT
	State   string

	LockTTL int // seconds, etcd session ttl of a market lock

	engine   *Engine
	consumer Consumer
	etcd     *xetcd.Worker // nil runs without market locks

	mu sync.Mutex
}

func NewWorker(e *Engine, c Consumer, etcd *xetcd.Worker, symbols []string) *Worker {
	return &Worker{
		Name:    "Matcher_" + strings.Join(symbols, "_"),
		Symbols: symbols,
		State:   "Init",
		LockTTL: 10,

		engine:   e,
		consumer: c,
		etcd:     etcd,
	}
}

func (w *Worker) setState(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.State = s
}

// Run serves every market until ctx is done
func (w *Worker) Run(ctx context.Context) (err error) {
	if len(w.Symbols) == 0 {
		return errors.New("matcher without symbols")
	}
	w.setState("Working")
	logger.Infof("%s working", w.Name)

	var wg sync.WaitGroup
	for _, symbol := range w.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			w.StartMarket(ctx, symbol)
		}(symbol)
	}
	wg.Wait()

	w.setState("Stopped")
	return ctx.Err()
}

// StartMarket keeps one market served, restarting its consumer after any failure
func (w *Worker) StartMarket(ctx context.Context, symbol string) {
	round := 0
	for ctx.Err() == nil {
		round++
		logger.Infof("StartMarket %s round:%d started", symbol, round)
		err := w.ServeMarket(ctx, symbol)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("StartMarket %s round:%d failed with err:%s", symbol, round, err)
		} else {
			logger.Infof("StartMarket %s round:%d done", symbol, round)
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

// ServeMarket takes the market lock when etcd is configured, then consumes until the lock or ctx is lost
func (w *Worker) ServeMarket(ctx context.Context, symbol string) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.etcd != nil {
		unlock, lost, err := w.etcd.LockMarket(ctx, symbol, w.LockTTL)
		if err != nil {
			return err
		}
		defer unlock()
		go func() {
			select {
			case <-lost:
				logger.Warningf("%s lost matcher lock of %s", w.Name, symbol)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return w.consumer.Consume(ctx, symbol, w.engine.HandleEvent)
}
