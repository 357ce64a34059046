package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ccspot/pkg/api"
	"ccspot/pkg/catalog"
	"ccspot/pkg/config"
	"ccspot/pkg/filedb"
	"ccspot/pkg/info"
	"ccspot/pkg/ingress"
	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/ome"
	"ccspot/pkg/order"
	"ccspot/pkg/store"
	"ccspot/pkg/store/memstore"
	"ccspot/pkg/store/sqlstore"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xetcd"
	"ccspot/pkg/xgrpc"
	"ccspot/pkg/xlog"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fSymbol  string
	fTarget  int
	fLogDir  string
	fLogFile string
)

var (
	apps = map[string]bool{"server": true, "matcher": true, "relay": true, "ingress": true, "migrate": true, "fm": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.StringVar(&fSymbol, "symbol", "", "comma separated markets of the matcher, defaults to matching.symbols")
	flag.IntVar(&fTarget, "target", 1_000_000, "orders sent by the ingress app")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := ""
		for k := range apps {
			validApps += k + ", "
		}
		panic("invalid app, only (" + validApps + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()
	cfg := config.Shared

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(cfg.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	if cfg.Env.XlogMode != "" {
		xlog.EnvMode = cfg.Env.XlogMode
		xlog.EnvColor = cfg.Env.XlogColor
	}
	xlog.Init(fApp, logPath, nil)
	logger.Info(fApp + " started, " + info.Get().String())
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the etcd instance
	if cfg.Etcd.Main.Enable {
		err = xetcd.InitShared([]string{cfg.Etcd.Main.Url})
		if err != nil {
			logger.Errorf("xetcd.InitShared failed with err:%s", err)
			panic(err)
		}
	}

	// Start the app
	switch fApp {
	case "server":
		err = startServer(ctx, cfg)
	case "matcher":
		err = startMatcher(ctx, cfg)
	case "relay":
		err = startRelay(ctx, cfg)
	case "ingress":
		err = startIngress(ctx, cfg)
	case "migrate":
		err = startMigrate(ctx, cfg)
	case "fm":
		err = startJournalMonitor(ctx, cfg)
	default:
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err)
		panic(err)
	}
	logger.Info(fApp + " stopped")
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)

	for sig := range sigChan {
		if sig != syscall.SIGUSR1 {
			continue
		}
		// Read log level from environment variable
		level := os.Getenv("XLOG_LVL")
		if level == "" {
			continue
		}
		logger := xlog.GetLogger()
		logger.SetLevel(level)
		logger.Infof("Log level set to %s via signal", level)
	}
}

// retry runs fn in rounds until ctx is done, the way every long running loop of the apps restarts
func retry(ctx context.Context, name string, fn func(ctx context.Context) error) {
	round := 0
	for ctx.Err() == nil {
		round++
		logger.Infof("%s round:%d started", name, round)
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("%s round:%d failed with err:%s", name, round, err)
		} else {
			logger.Infof("%s round:%d done", name, round)
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

// openStore returns the mysql store when mysql is enabled, an in-memory one otherwise
func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.MySQL.Main.Enabled {
		logger.Warning("mysql disabled, using the in-memory store")
		return memstore.New(), nil
	}
	db, err := model.OpenMySQL(cfg.MySQL.Main, cfg.IsDebug)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db), nil
}

// openCatalog serves markets from the store when it is persistent, fronted by redis when enabled
func openCatalog(ctx context.Context, cfg *config.Config, st store.Store) (catalog.Catalog, error) {
	static, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.MySQL.Main.Enabled {
		if err := catalog.Seed(ctx, st, static); err != nil {
			return nil, err
		}
		return static, nil
	}

	var cat catalog.Catalog = catalog.NewStoreCatalog(st)
	if cfg.Redis.Main.Enabled {
		ttl := time.Duration(cfg.Redis.Main.TTL) * time.Second
		cat = catalog.NewRedisCache(cat, model.OpenRedis(cfg.Redis.Main), ttl)
	}
	return cat, nil
}

// openSink returns where committed events go: the journal when enabled, else nats and/or kafka
func openSink(cfg *config.Config) (sink notify.Sink, closeFn func(), err error) {
	closeFn = func() {}
	if cfg.Journal.Enabled {
		fdb, err := filedb.New(cfg.JournalPath())
		if err != nil {
			return nil, closeFn, err
		}
		if err = fdb.Open(); err != nil {
			return nil, closeFn, err
		}
		return notify.NewFileSink(fdb), func() { fdb.Close() }, nil
	}
	return openRemoteSink(cfg)
}

func openRemoteSink(cfg *config.Config) (sink notify.Sink, closeFn func(), err error) {
	var sinks notify.Multi
	var closers []func()
	closeFn = func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Nats.Enabled {
		nc, js, err := notify.ConnectJetStream(cfg.Nats.Url, fApp)
		if err != nil {
			return nil, closeFn, err
		}
		closers = append(closers, nc.Close)
		if err = notify.EnsureStream(js, cfg.Nats.Stream); err != nil {
			return nil, closeFn, err
		}
		sinks = append(sinks, notify.NewNatsSink(js, cfg.Nats.Stream))
	}
	if cfg.Kafka.Enabled {
		ks := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() { ks.Close() })
		sinks = append(sinks, ks)
	}

	switch len(sinks) {
	case 0:
		return notify.Nop{}, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	}
	return sinks, closeFn, nil
}

// matchesRemotely reports whether OrderCreated events reach a separate matcher app
func matchesRemotely(cfg *config.Config) bool {
	return cfg.Journal.Enabled || cfg.Nats.Enabled || cfg.Kafka.Enabled
}

type services struct {
	st     store.Store
	cat    catalog.Catalog
	wallet *wallet.Service
	engine *ome.Engine
	orders *order.Service
	sink   notify.Sink
	close  func()
}

func openServices(ctx context.Context, cfg *config.Config) (s *services, err error) {
	s = &services{}
	if s.st, err = openStore(cfg); err != nil {
		return
	}
	if s.cat, err = openCatalog(ctx, cfg, s.st); err != nil {
		return
	}
	if s.sink, s.close, err = openSink(cfg); err != nil {
		return
	}

	s.wallet = wallet.New(s.st, s.cat, wallet.WithStrictCapture(cfg.Wallet.StrictCapture))
	s.engine = ome.New(s.st, s.cat, s.wallet, s.sink, cfg.Matching.PageSize)

	orderSink := s.sink
	if !matchesRemotely(cfg) {
		// no broker, orders are matched in this process right after they commit
		orderSink = notify.Multi{s.sink, notify.SinkFunc(s.engine.HandleEvent)}
	}
	s.orders = order.New(s.st, s.cat, s.wallet, orderSink)
	return
}

// startServer serves the http and grpc apis, plus the nats order requests when nats is enabled
func startServer(ctx context.Context, cfg *config.Config) (err error) {
	s, err := openServices(ctx, cfg)
	if err != nil {
		return
	}
	defer s.close()

	if cfg.HTTP.Enabled {
		router := api.NewRouter(api.NewHandler(s.orders, s.wallet, s.engine))
		go retry(ctx, "StartServeHttp", func(ctx context.Context) error {
			logger.Infof("http server listening %s", cfg.HTTP.Addr)
			return router.Run(cfg.HTTP.Addr)
		})
	}

	if cfg.GRPC.Enabled {
		srv := xgrpc.NewServer(s.orders, s.wallet, s.engine)
		go retry(ctx, "StartServeGrpc", func(ctx context.Context) error {
			return xgrpc.Serve(cfg.GRPC.Addr, srv)
		})
		if xetcd.Shared != nil {
			if err = xetcd.Shared.Register(ctx, xetcd.KeyGrpcService()+"/"+info.InstanceID, cfg.GRPC.Addr, 10); err != nil {
				return
			}
		}
	}

	if cfg.Nats.Enabled {
		go retry(ctx, "StartSubNats", func(ctx context.Context) error {
			nc, js, err := notify.ConnectJetStream(cfg.Nats.Url, "ingress-consumer")
			if err != nil {
				return err
			}
			defer nc.Close()
			return ingress.SubNats(ctx, js, cfg.Nats.Stream, "orders", s.orders)
		})
	}

	<-ctx.Done()
	return ctx.Err()
}

func matcherSymbols(cfg *config.Config) []string {
	if fSymbol != "" {
		return strings.Split(strings.ToUpper(fSymbol), ",")
	}
	if len(cfg.Matching.Symbols) > 0 {
		return cfg.Matching.Symbols
	}
	var out []string
	for _, m := range cfg.Markets {
		out = append(out, model.NormalizeSymbol(m.Symbol))
	}
	return out
}

// startMatcher consumes OrderCreated events of its markets from nats or kafka and matches them
func startMatcher(ctx context.Context, cfg *config.Config) (err error) {
	s, err := openServices(ctx, cfg)
	if err != nil {
		return
	}
	defer s.close()

	var consumer ome.Consumer
	switch {
	case cfg.Nats.Enabled:
		var nc *nats.Conn
		var js nats.JetStreamContext
		nc, js, err = notify.ConnectJetStream(cfg.Nats.Url, "matcher")
		if err != nil {
			return
		}
		defer nc.Close()
		consumer = &ome.NatsConsumer{JS: js, Stream: cfg.Nats.Stream, Durable: cfg.Nats.Durable}
	case cfg.Kafka.Enabled:
		consumer = &ome.KafkaConsumer{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, GroupID: cfg.Kafka.GroupID}
	default:
		return errors.New("matcher needs nats or kafka enabled")
	}

	w := ome.NewWorker(s.engine, consumer, xetcd.Shared, matcherSymbols(cfg))
	return w.Run(ctx)
}

// startRelay ships the event journal to nats and/or kafka
func startRelay(ctx context.Context, cfg *config.Config) (err error) {
	target, closeFn, err := openRemoteSink(cfg)
	if err != nil {
		return
	}
	defer closeFn()

	fdb, err := filedb.New(cfg.JournalPath())
	if err != nil {
		return
	}
	if err = fdb.Open(); err != nil {
		return
	}
	defer fdb.Close()

	r := &notify.Relay{
		Journal:   fdb,
		Offset:    filedb.OffsetFile{Path: cfg.JournalPath() + ".offset"},
		Target:    target,
		BatchSize: cfg.Journal.BatchSize,
	}
	retry(ctx, "StartRelay", r.Run)
	return ctx.Err()
}

// startIngress generates random orders and sends them to nats, or places them in process without nats
//
//	Function 1: Generate orders
//	Function 2: Benchmark the order path
func startIngress(ctx context.Context, cfg *config.Config) (err error) {
	var sender ingress.Sender
	if cfg.Nats.Enabled {
		nc, js, err := notify.ConnectJetStream(cfg.Nats.Url, "ingress")
		if err != nil {
			return err
		}
		defer nc.Close()
		if err = notify.EnsureStream(js, cfg.Nats.Stream); err != nil {
			return err
		}
		sender = &ingress.NatsSender{JS: js, Stream: cfg.Nats.Stream}
	} else {
		s, err := openServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close()
		sender = &ingress.DirectSender{Orders: s.orders}
	}

	g := ingress.NewGenerator(matcherSymbols(cfg), time.Now().UnixNano())
	st := g.Run(ctx, sender, fTarget)
	fmt.Printf(
		"Benchmark: Ingress sent %d orders (%d failed) in %s at %s with rate %d/sec\n",
		st.Sent, st.Failed, st.Elapsed, time.Now().Format(time.RFC3339), st.Rate(),
	)
	return
}

// startMigrate creates the tables and seeds the configured assets and markets
func startMigrate(ctx context.Context, cfg *config.Config) (err error) {
	if !cfg.MySQL.Main.Enabled {
		return errors.New("migrate needs mysql enabled")
	}
	db, err := model.OpenMySQL(cfg.MySQL.Main, cfg.IsDebug)
	if err != nil {
		return
	}
	if err = model.Migrate(db); err != nil {
		return
	}

	static, err := catalog.FromConfig(cfg)
	if err != nil {
		return
	}
	return catalog.Seed(ctx, sqlstore.New(db), static)
}
