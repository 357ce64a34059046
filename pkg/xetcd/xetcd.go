// Package xetcd service discovery and per-market matcher locks on etcd.
package xetcd

import (
	"context"
	"errors"
	"strings"
	"time"

	"ccspot/pkg/xlog"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

type Worker struct {
	Cli *clientv3.Client
}

var Shared *Worker
var logger = xlog.GetLogger().Named("etcd")

var ErrNotFound = errors.New("not found")

func New(urls []string) (w *Worker, err error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   urls,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return
	}

	w = &Worker{
		Cli: cli,
	}

	return
}

func InitShared(urls []string) (err error) {
	Shared, err = New(urls)
	return
}

func (w *Worker) Get(ctx context.Context, k string) (v string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer func() {
		if err != nil {
			logger.Errorf("xetcd Get k:%s failed with err:%s", k, err)
		} else {
			logger.Debugf("xetcd Get k:%s, v:%s", k, v)
		}
		cancel()
	}()

	r, err := w.Cli.Get(ctx, k)
	if err != nil {
		return
	}
	if len(r.Kvs) == 0 {
		err = ErrNotFound
		return
	}

	v = string(r.Kvs[0].Value)
	return
}

func (w *Worker) Put(ctx context.Context, k string, v string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer func() {
		if err != nil {
			logger.Errorf("xetcd Put k:%s, v:%s failed with err:%s", k, v, err)
		} else {
			logger.Debugf("xetcd Put k:%s, v:%s", k, v)
		}
		cancel()
	}()

	_, err = w.Cli.Put(ctx, k, v)
	return
}

// Register publishes an endpoint under k for as long as this process keeps its lease alive
func (w *Worker) Register(ctx context.Context, k, v string, ttl int64) (err error) {
	lease, err := w.Cli.Grant(ctx, ttl)
	if err != nil {
		return
	}
	if _, err = w.Cli.Put(ctx, k, v, clientv3.WithLease(lease.ID)); err != nil {
		return
	}
	ch, err := w.Cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		return
	}
	go func() {
		for range ch {
		}
		logger.Warningf("xetcd lease of %s ended", k)
	}()
	logger.Infof("xetcd registered %s => %s", k, v)
	return
}

// LockMarket blocks until this process is the only matcher of symbol.
// The lock is held until unlock is called or the process loses its etcd session.
func (w *Worker) LockMarket(ctx context.Context, symbol string, ttl int) (unlock func(), lost <-chan struct{}, err error) {
	session, err := concurrency.NewSession(w.Cli, concurrency.WithTTL(ttl))
	if err != nil {
		return
	}

	mu := concurrency.NewMutex(session, KeyMatcherLock(symbol))
	if err = mu.Lock(ctx); err != nil {
		session.Close()
		return
	}
	logger.Infof("xetcd matcher lock of %s acquired", symbol)

	unlock = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mu.Unlock(ctx); err != nil {
			logger.Warningf("xetcd matcher unlock of %s failed with err:%s", symbol, err)
		}
		session.Close()
	}
	return unlock, session.Done(), nil
}

func KeyMatcherLock(symbol string) string {
	return "/ccspot/matcher/" + strings.ToLower(symbol)
}

func KeyGrpcService() string {
	return "/ccspot/service/grpc"
}

func KeyNatsService() string {
	return "/ccspot/service/nats"
}
