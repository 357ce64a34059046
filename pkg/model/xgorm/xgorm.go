// Package xgorm bridges gorm's logger into xlog, so sql traces land in the same zap core as everything else.
package xgorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ccspot/pkg/xlog"

	gl "gorm.io/gorm/logger"
)

var ErrRecordNotFound = gl.ErrRecordNotFound

const (
	Silent = gl.Silent
	Error  = gl.Error
	Warn   = gl.Warn
	Info   = gl.Info
)

type Config = gl.Config

var zapLogger = xlog.GetLogger().Named("gorm")

// New returns a gorm logger, writer is only used for the level-less Printf path
func New(writer gl.Writer, config Config) gl.Interface {
	l := &logger{
		Writer:   writer,
		Config:   config,
		traceStr: "[%.3fms] [rows:%v] %s",
		slowStr:  "%s [%.3fms] [rows:%v] %s",
		errStr:   "%s [%.3fms] [rows:%v] %s",
	}
	if config.Colorful {
		l.traceStr = gl.Yellow + "[%.3fms] " + gl.BlueBold + "[rows:%v]" + gl.Reset + " %s"
		l.slowStr = gl.Yellow + "%s " + gl.RedBold + "[%.3fms] " + gl.Yellow + "[rows:%v]" + gl.Magenta + " %s" + gl.Reset
		l.errStr = gl.MagentaBold + "%s " + gl.Yellow + "[%.3fms] " + gl.BlueBold + "[rows:%v]" + gl.Reset + " %s"
	}
	return l
}

type logger struct {
	gl.Writer
	Config
	traceStr, slowStr, errStr string
}

func (l *logger) LogMode(level gl.LogLevel) gl.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

func (l *logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		zapLogger.Infof(msg, data...)
	}
}

func (l *logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		zapLogger.Warningf(msg, data...)
	}
}

func (l *logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		zapLogger.Errorf(msg, data...)
	}
}

// Trace logs failed and slow statements, and every statement at Info level
func (l *logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed := float64(time.Since(begin).Nanoseconds()) / 1e6
	rowsOf := func(rows int64) interface{} {
		if rows == -1 {
			return "-"
		}
		return rows
	}

	switch {
	case err != nil && l.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		zapLogger.Errorf(l.errStr, err, elapsed, rowsOf(rows), sql)
	case l.SlowThreshold != 0 && time.Since(begin) > l.SlowThreshold && l.LogLevel >= Warn:
		sql, rows := fc()
		zapLogger.Warningf(l.slowStr, fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold), elapsed, rowsOf(rows), sql)
	case l.LogLevel == Info:
		sql, rows := fc()
		zapLogger.Debugf(l.traceStr, elapsed, rowsOf(rows), sql)
	}
}
