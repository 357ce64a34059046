package model

import (
	"context"
	"log"
	"os"
	"time"

	"ccspot/pkg/config"
	"ccspot/pkg/model/xgorm"
	"ccspot/pkg/xlog"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var logger = xlog.GetLogger()

// OpenMySQL connects to the main mysql server, sql statements are logged in debug mode
func OpenMySQL(cfg config.MySQLServer, debug bool) (*gorm.DB, error) {
	return OpenMySQLDSN(cfg.DSN(), cfg.MaxOpenConns, debug)
}

// OpenMySQLDSN connects with a raw go-sql-driver dsn
func OpenMySQLDSN(dsn string, maxOpenConns int, debug bool) (*gorm.DB, error) {
	logMode := gormLogger.Info
	if !debug {
		logMode = gormLogger.Warn
	}
	newLogger := xgorm.New(
		log.New(os.Stdout, "", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logMode,
			IgnoreRecordNotFoundError: true,
			Colorful:                  debug,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 50
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(10 * time.Hour)
	sqlDB.SetMaxIdleConns(20)

	return db, nil
}

// MustOpenMySQL is OpenMySQL for the binaries, it exits on failure
func MustOpenMySQL(cfg config.MySQLServer, debug bool) *gorm.DB {
	if cfg.Host == "" {
		logger.Fatalf("empty db host")
	}
	logger.Infof("mysql connecting tcp(%s:%d)/%s", cfg.Host, cfg.Port, cfg.DB)
	db, err := OpenMySQL(cfg, debug)
	if err != nil {
		logger.Fatalf("connect mysql failed, err:%s", err)
	}
	logger.Infof("mysql connected tcp(%s:%d)/%s", cfg.Host, cfg.Port, cfg.DB)
	return db
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Tables()...)
}

// OpenRedis returns a client of the main redis server
func OpenRedis(cfg config.RedisServer) *redis.Client {
	logger.Infof("redis connecting %s[%d]", cfg.Addr, cfg.DB)

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Warningf("redis ping %s failed, err:%s", cfg.Addr, err)
	} else {
		logger.Infof("redis connected %s[%d]", cfg.Addr, cfg.DB)
	}

	return rc
}
