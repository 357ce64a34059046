package xlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Logger is a leveled printf-style logger backed by Zap.
// Named loggers share the level of the root logger.
type Logger struct {
	module string
}

const (
	TRACE = iota
	DEBUG
	INFO
	WARNING
	ERROR
	FATAL
)

var levelNames = []string{
	"TRACE",
	"DEBUG",
	"INFO",
	"WARNING",
	"ERROR",
	"FATAL",
}

var (
	level    atomic.Int32
	rootOnce sync.Once
	root     *Logger
)

// GetLogger returns the root logger, the level is read from XLOG_LVL once
func GetLogger() *Logger {
	rootOnce.Do(func() {
		lvl := strings.ToUpper(os.Getenv("XLOG_LVL"))
		level.Store(int32(parseLevel(lvl, INFO)))
		root = &Logger{}
	})
	return root
}

// Named returns a logger tagging every entry with x-mod:<module>
func (s *Logger) Named(module string) *Logger {
	return &Logger{module: module}
}

func parseLevel(lvl string, def int) int {
	switch lvl {
	case "T", "TRC", "TRACE":
		return TRACE
	case "D", "DBG", "DEBUG":
		return DEBUG
	case "I", "INF", "INFO":
		return INFO
	case "W", "WRN", "WARN", "WARNING":
		return WARNING
	case "E", "ERR", "ERROR":
		return ERROR
	case "F", "FTL", "FATAL":
		return FATAL
	}
	return def
}

func (s *Logger) SetLevel(lvl string) {
	n := parseLevel(strings.ToUpper(lvl), -1)
	if n < 0 {
		s.Infof("set xlog level to %s failed", lvl)
		return
	}
	level.Store(int32(n))
	s.Infof("set xlog level to %s", levelNames[n])
}

func (s *Logger) GetLevel() int {
	return int(level.Load())
}

func (s *Logger) enabled(l int) bool {
	return l >= int(level.Load())
}

func (s *Logger) fields() []zap.Field {
	if s.module == "" {
		return []zap.Field{FileField()}
	}
	return []zap.Field{FileField(), zap.String("x-mod", s.module)}
}

func (s *Logger) Trace(args ...interface{}) {
	if s.enabled(TRACE) {
		Zap.Debug("[TRC] "+argsToString(args...), s.fields()...)
	}
}

func (s *Logger) Tracef(format string, args ...interface{}) {
	if s.enabled(TRACE) {
		Zap.Debug("[TRC] "+fmt.Sprintf(format, args...), s.fields()...)
	}
}

func (s *Logger) Debug(args ...interface{}) {
	if s.enabled(DEBUG) {
		Zap.Debug("[DBG] "+argsToString(args...), s.fields()...)
	}
}

func (s *Logger) Debugf(format string, args ...interface{}) {
	if s.enabled(DEBUG) {
		Zap.Debug("[DBG] "+fmt.Sprintf(format, args...), s.fields()...)
	}
}

func (s *Logger) Info(args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+argsToString(args...), s.fields()...)
	}
}

func (s *Logger) Infof(format string, args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+fmt.Sprintf(format, args...), s.fields()...)
	}
}

func (s *Logger) Warning(args ...interface{}) {
	if s.enabled(WARNING) {
		Zap.Warn("[WRN] "+argsToString(args...), s.fields()...)
	}
}

func (s *Logger) Warningf(format string, args ...interface{}) {
	if s.enabled(WARNING) {
		Zap.Warn("[WRN] "+fmt.Sprintf(format, args...), s.fields()...)
	}
}

func (s *Logger) Error(args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+argsToString(args...), s.fields()...)
	}
}

func (s *Logger) Errorf(format string, args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+fmt.Sprintf(format, args...), s.fields()...)
	}
}

func (s *Logger) Fatal(args ...interface{}) {
	Zap.Error("[FTL] "+argsToString(args...), s.fields()...)
	_ = Zap.Sync()
	os.Exit(1)
}

func (s *Logger) Fatalf(format string, args ...interface{}) {
	Zap.Error("[FTL] "+fmt.Sprintf(format, args...), s.fields()...)
	_ = Zap.Sync()
	os.Exit(1)
}

// Write lets the logger act as an io.Writer, e.g. for gin or the std log package
func (s *Logger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	Zap.Info(strings.TrimRight(string(p), "\n"), s.fields()...)
	return len(p), nil
}

func argsToString(args ...interface{}) string {
	return fmt.Sprint(args...)
}
