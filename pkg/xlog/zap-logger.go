package xlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorTrace   = "\033[0;36m"
	colorDebug   = "\033[1;36m"
	colorWarning = "\033[1;33m"
	colorError   = "\033[1;31m"
)

// stdoutWriter re-renders zap json entries as one readable line per entry.
// Fields prefixed with "x-" are appended as { k:v }.
type stdoutWriter struct {
	Enabled    bool
	Color      bool
	ServerHook func(p []byte)
}

func levelColor(level string) (string, string) {
	switch level {
	case "debug":
		return colorDebug, colorReset
	case "warn", "warning":
		return colorWarning, colorReset
	case "error", "fatal", "dpanic", "panic":
		return colorError, colorReset
	default:
		return "", ""
	}
}

func (l *stdoutWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	if !l.Enabled && l.ServerHook == nil {
		return
	}

	entry := map[string]interface{}{}
	if json.Unmarshal(p, &entry) != nil {
		return n, nil
	}

	if l.Enabled {
		keys := make([]string, 0)
		for k := range entry {
			if strings.HasPrefix(k, "x-") {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		extra := ""
		for _, k := range keys {
			extra += k + ":" + fmt.Sprint(entry[k]) + " "
		}
		if extra != "" {
			extra = "{ " + extra + "}"
		}

		level := fmt.Sprint(entry["level"])
		pre, sub := "", ""
		if l.Color {
			pre, sub = levelColor(level)
			if strings.HasPrefix(fmt.Sprint(entry["msg"]), "[TRC]") {
				pre = colorTrace
			}
		}

		tStr := fmt.Sprint(entry["time"])
		if t, err := time.Parse("2006-01-02T15:04:05.999Z07:00", tStr); err == nil {
			tStr = t.Format("2006/01/02 15:04:05")
		}

		fname, _ := entry["file"].(string)
		if len(fname) < 20 {
			fname += strings.Repeat(" ", 20-len(fname))
		} else if len(fname) > 20 {
			fname = fname[len(fname)-20:]
		}

		fmt.Printf(pre+"[%s] %s %s: %s %s"+sub+"\n", entry["app"], tStr, fname, entry["msg"], extra)
	}

	if l.ServerHook != nil && entry["level"] != "debug" {
		l.ServerHook(p)
	}

	return n, nil
}
