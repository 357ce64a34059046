// Package ingress feeds order requests into the exchange, generated ones for load tests
// and NATS published ones for the order service.
package ingress

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/xlog"
	"ccspot/pkg/xnats"

	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger().Named("ingress")

// Sender delivers one order request, to NATS or straight to the order service
type Sender interface {
	SendOrderReq(ctx context.Context, req xnats.OrderReq) error
}

// Generator creates orders(ask and bid) with random price and quantity
type Generator struct {
	Symbols []string // e.g. BTC_USDT
	Owners  int64    // owners are drawn from 1..Owners

	MinPrice, PriceRange int64
	MaxQty               int64

	Concurrency int
	rnd         *rand.Rand
}

func NewGenerator(symbols []string, seed int64) *Generator {
	return &Generator{
		Symbols:     symbols,
		Owners:      1000,
		MinPrice:    10,
		PriceRange:  100,
		MaxQty:      10,
		Concurrency: 16,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

// Next returns one random request
func (g *Generator) Next() xnats.OrderReq {
	price := g.MinPrice + g.rnd.Int63n(g.PriceRange)
	qty := 1 + g.rnd.Int63n(g.MaxQty)
	return xnats.OrderReq{
		Symbol:   g.Symbols[g.rnd.Intn(len(g.Symbols))],
		Owner:    1 + g.rnd.Int63n(g.Owners),
		Side:     int8(1 + g.rnd.Int63n(2)),
		Type:     model.OrderTypeLimit,
		Price:    decimal.NewFromInt(price),
		Quantity: decimal.NewFromInt(qty),
		Time:     time.Now().UnixNano(),
	}
}

type Stats struct {
	Sent    int64
	Failed  int64
	Elapsed time.Duration
}

// Rate returns requests per second
func (s Stats) Rate() int64 {
	if s.Elapsed < time.Second {
		return s.Sent
	}
	return s.Sent / int64(s.Elapsed.Seconds())
}

// Run sends target requests with Concurrency senders and reports how it went
func (g *Generator) Run(ctx context.Context, sender Sender, target int) (st Stats) {
	ch := make(chan xnats.OrderReq, 1024)
	var sent, failed int64
	var wg sync.WaitGroup

	for i := 0; i < g.Concurrency; i++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			for od := range ch {
				if err := sender.SendOrderReq(ctx, od); err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Debugf("sender:%d SendOrderReq failed with err:%s", j, err)
					continue
				}
				atomic.AddInt64(&sent, 1)
			}
		}(i)
	}

	start := time.Now()
	for i := 0; i < target && ctx.Err() == nil; i++ {
		ch <- g.Next()
	}
	close(ch)
	wg.Wait()

	st = Stats{Sent: sent, Failed: failed, Elapsed: time.Since(start)}
	logger.Infof("ingress sent %d orders, %d failed, in %s with rate %d/sec", st.Sent, st.Failed, st.Elapsed, st.Rate())
	return
}
