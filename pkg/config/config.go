package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Config structs

type Config struct {
	IsDebug bool `yaml:"is_debug"`

	DataDir string `yaml:"data_dir"`

	MySQL MySQL `yaml:"mysql"`
	Redis Redis `yaml:"redis"`
	Etcd  Etcd  `yaml:"etcd"`
	Nats  Nats  `yaml:"nats"`
	Kafka Kafka `yaml:"kafka"`

	Journal Journal `yaml:"journal"`

	HTTP HTTP `yaml:"http"`
	GRPC GRPC `yaml:"grpc"`

	Matching Matching `yaml:"matching"`
	Wallet   Wallet   `yaml:"wallet"`

	Assets  []Asset  `yaml:"assets"`
	Markets []Market `yaml:"markets"`

	Env Env `yaml:"env"`
}

type MySQL struct {
	Main MySQLServer `yaml:"main"`
}

type MySQLServer struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Pass         string `yaml:"pass"`
	DB           string `yaml:"db"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// DSN returns the go-sql-driver dsn for this server
func (s MySQLServer) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.User, s.Pass, s.Host, s.Port, s.DB,
	)
}

type Redis struct {
	Main RedisServer `yaml:"main"`
}

type RedisServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Pass    string `yaml:"pass"`
	TTL     int    `yaml:"ttl"` // seconds a cached market stays valid
}

type Etcd struct {
	Main EtcdServer `yaml:"main"`
}

type EtcdServer struct {
	Enable bool   `yaml:"enable"`
	Url    string `yaml:"url"`
}

type Nats struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"`
	Stream  string `yaml:"stream"`  // e.g. SPOT
	Durable string `yaml:"durable"` // durable consumer name of the matcher
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// Journal makes the services append events to a local file, the relay app ships them to nats/kafka
type Journal struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`       // default <data_dir>/journal/events.log
	BatchSize int    `yaml:"batch_size"` // lines shipped per offset commit
}

type HTTP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type GRPC struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Matching struct {
	PageSize int      `yaml:"page_size"` // makers fetched per matching round
	Symbols  []string `yaml:"symbols"`   // markets served by this matcher, empty means all
}

type Wallet struct {
	// StrictCapture turns a capture without any hold into ErrInconsistentLedger
	// instead of decrementing locked directly
	StrictCapture bool `yaml:"strict_capture"`
}

type Asset struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Scale  int32  `yaml:"scale"`
}

type Market struct {
	ID     int64  `yaml:"id"`
	Symbol string `yaml:"symbol"`
	Base   string `yaml:"base"`
	Quote  string `yaml:"quote"`
	Active bool   `yaml:"active"`
}

type Env struct {
	XlogMode  string `yaml:"xlog_mode"`
	XlogColor bool   `yaml:"xlog_color"`
}

// Global variables

const DEVDATA = "/usr/local/ccspot/devdata"

const DefaultPageSize = 50

var Shared *Config // single instance of the config

var (
	fConfig string // config file path
)

func init() {
	flag.StringVar(&fConfig, "config", "", "specify the config file")
}

// Init initializes the Shared config with the given config file path
func Init(configFile string) {
	file, err := os.Open(configFile)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(cfg)
	if err != nil {
		panic(err)
	}
	Shared = cfg
}

// EasyInit initializes the Shared config with the default config file path
func EasyInit() {
	fpath := fConfig
	if fpath == "" {
		fpath = "config/config.yml"
	}

	// if the config file does not exist, use the default config file path
	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		fpath = DEVDATA + "/config.yml"
		printf(fmt.Sprintf("use config: %s (DEVDATA)", fpath))
	} else {
		printf(fmt.Sprintf("use config: %s", fpath))
	}

	Init(fpath)
}

// Default returns a config usable without any external service
func Default() *Config {
	return &Config{
		DataDir: DEVDATA,
		Nats: Nats{
			Stream:  "SPOT",
			Durable: "matcher",
		},
		Kafka: Kafka{
			Topic:   "spot-events",
			GroupID: "ccspot-matcher",
		},
		Journal:  Journal{BatchSize: 100},
		HTTP:     HTTP{Addr: ":8080"},
		GRPC:     GRPC{Addr: ":9090"},
		Matching: Matching{PageSize: DefaultPageSize},
		Wallet:   Wallet{StrictCapture: true},
	}
}

// JournalPath returns the event journal file
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.DataDir, "journal", "events.log")
}

// Print the given string to the standard output
func printf(s string) {
	fmt.Printf("%s %s\n", time.Now().Format("2006/01/02 15:04:05"), s)
}
