package main

import (
	"context"
	"fmt"
	"time"

	"ccspot/pkg/config"
	"ccspot/pkg/filedb"
	"ccspot/pkg/notify"
)

// startJournalMonitor starts the journal monitor app
//
//	Function 1: Print how far the event journal got and how far the relay shipped it, every 30 seconds
func startJournalMonitor(ctx context.Context, cfg *config.Config) (err error) {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Second):
		}
		err = runJournalMonitorOne(cfg)
		if err != nil {
			logger.Errorf("runJournalMonitorOne failed with err:%s", err)
		}
	}
}

// runJournalMonitorOne reads the first and last envelope of the journal,
// calculates the time span and rate, and the relay offset against the file size
func runJournalMonitorOne(cfg *config.Config) (err error) {
	fdb, err := filedb.New(cfg.JournalPath())
	if err != nil {
		return
	}
	if err = fdb.Open(); err != nil {
		return
	}
	defer fdb.Close()

	firstLine, err := fdb.ReadFirstLine()
	if err != nil || firstLine == "" {
		return
	}
	lastLine, err := fdb.ReadLastLine()
	if err != nil {
		return
	}

	first, _, err := notify.Decode([]byte(firstLine))
	if err != nil {
		return
	}
	last, _, err := notify.Decode([]byte(lastLine))
	if err != nil {
		return
	}

	st, err := fdb.File.Stat()
	if err != nil {
		return
	}
	shipped, err := filedb.OffsetFile{Path: cfg.JournalPath() + ".offset"}.Load()
	if err != nil {
		return
	}

	duration := time.Duration(last.Ts-first.Ts) * time.Millisecond
	fmt.Printf(
		"Journal: %s spans %s up to %s, relay shipped %d of %d bytes\n",
		fdb.FilePath, duration, time.UnixMilli(last.Ts).Format(time.RFC3339), shipped, st.Size(),
	)
	return
}
