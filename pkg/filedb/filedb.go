// Package filedb is a simple database based on files, one record per line.
package filedb

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ccspot/pkg/xlog"

	"github.com/nxadm/tail"
)

var logger = xlog.GetLogger().Named("filedb")

type Filedb struct {
	mu       sync.Mutex
	File     *os.File
	FilePath string
}

// Line a record read back from the file, Offset is the position right after it
type Line struct {
	Text   string
	Offset int64
}

func New(filePath string) (fdb *Filedb, err error) {
	fdb = &Filedb{
		FilePath: filePath,
	}
	err = fdb.Open()

	return
}

func (f *Filedb) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(f.FilePath), 0755)
	if err != nil {
		return
	}

	f.File, err = os.OpenFile(f.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	return
}

func (f *Filedb) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return
	}
	err = f.File.Close()
	f.File = nil

	return
}

// WriteLine appends one record, a trailing newline is added when missing
func (f *Filedb) WriteLine(s string) (err error) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return os.ErrClosed
	}
	_, err = f.File.WriteString(s)
	if err != nil {
		logger.Errorf("write line to %s failed, err: %s", f.FilePath, err)
	}

	return
}

// ReadLastLine reads the last non-empty line of the file
func (f *Filedb) ReadLastLine() (s string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stat, err := f.File.Stat()
	if err != nil {
		return
	}

	// a record is assumed to fit in the last 4096 bytes
	var b []byte
	var off int64
	size := stat.Size()
	if size < 4096 {
		b = make([]byte, size)
	} else {
		b = make([]byte, 4096)
		off = size - 4096
	}

	_, err = f.File.ReadAt(b, off)
	if err != nil {
		return
	}

	txt := strings.Trim(string(b), " \n")
	txts := strings.Split(txt, "\n")
	s = txts[len(txts)-1]

	return
}

// ReadFirstLine reads the first non-empty line of the file
func (f *Filedb) ReadFirstLine() (s string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reader := bufio.NewReader(io.NewSectionReader(f.File, 0, 1<<62))
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

// Tailf follows the file from offset and passes each complete line to ch until ctx is done
func (f *Filedb) Tailf(ctx context.Context, offset int64, ch chan<- Line) (err error) {
	ta, err := tail.TailFile(f.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		Location:      &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return
	}
	defer ta.Cleanup()
	defer ta.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-ta.Lines:
			if !ok {
				return ta.Err()
			}
			if line.Err != nil {
				// stop rather than skip, skipping a line would reorder the journal for the reader
				return line.Err
			}
			select {
			case ch <- Line{Text: line.Text, Offset: line.SeekInfo.Offset}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Batch drains ch into handler, handing over everything already queued up to max lines at a time
func Batch(ctx context.Context, name string, ch <-chan Line, max int, handler func([]Line) error) (err error) {
	logger.Infof("batch %s start", name)
	defer func() {
		if err != nil {
			logger.Errorf("batch %s end, err: %v", name, err)
		} else {
			logger.Infof("batch %s end", name)
		}
	}()

	if max <= 0 {
		max = 100
	}
	ss := make([]Line, max)
	var total int
	first := time.Time{}

	for {
		size := 1
		if n := len(ch); n > 1 {
			size = n
			if size > max {
				size = max
			}
		}

		for i := 0; i < size; i++ {
			select {
			case l, ok := <-ch:
				if !ok {
					return
				}
				ss[i] = l
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if first.IsZero() {
			first = time.Now()
		}
		err = handler(ss[:size])
		if err != nil {
			return
		}

		total += size
		if total%10000 < size {
			secs := time.Since(first).Seconds()
			if secs > 0 {
				logger.Infof("batch %s handled %d lines at %d/sec", name, total, int64(float64(total)/secs))
			}
		}
	}
}

// OffsetFile persists a tail position next to the journal, so a follower can resume after restart
type OffsetFile struct {
	Path string
}

func (o OffsetFile) Load() (int64, error) {
	b, err := os.ReadFile(o.Path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
}

func (o OffsetFile) Save(offset int64) error {
	tmp := o.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(offset, 10)), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, o.Path)
}
