package notify

import (
	"context"
	"fmt"

	"ccspot/pkg/filedb"
)

// EnvelopeSink forwards an already encoded envelope, keeping its id
type EnvelopeSink interface {
	PublishEnvelope(ctx context.Context, symbol string, env Envelope, raw []byte) error
}

// FileSink appends events to a local journal, a Relay ships them later
type FileSink struct {
	fdb *filedb.Filedb
}

func NewFileSink(fdb *filedb.Filedb) *FileSink {
	return &FileSink{fdb: fdb}
}

func (s *FileSink) Publish(ctx context.Context, ev Event) error {
	_, b, err := Encode(ev)
	if err != nil {
		return err
	}
	return s.fdb.WriteLine(string(b))
}

// Relay follows a FileSink journal and forwards every line to Target, resuming from Offset
type Relay struct {
	Journal *filedb.Filedb
	Offset  filedb.OffsetFile
	Target  Sink

	BatchSize int
}

func (r *Relay) Run(ctx context.Context) (err error) {
	from, err := r.Offset.Load()
	if err != nil {
		return fmt.Errorf("load relay offset: %w", err)
	}
	logger.Infof("relay %s from offset %d", r.Journal.FilePath, from)

	ch := make(chan filedb.Line, 1000)
	tailErr := make(chan error, 1)
	go func() {
		tailErr <- r.Journal.Tailf(ctx, from, ch)
		close(ch)
	}()

	err = filedb.Batch(ctx, "relay", ch, r.BatchSize, func(lines []filedb.Line) error {
		for _, l := range lines {
			if err := r.forward(ctx, l.Text); err != nil {
				return err
			}
		}
		return r.Offset.Save(lines[len(lines)-1].Offset)
	})
	if err == nil {
		err = <-tailErr
	}
	return
}

func (r *Relay) forward(ctx context.Context, line string) error {
	env, ev, err := Decode([]byte(line))
	if err != nil {
		// a torn or foreign line is skipped, it can never be delivered
		logger.Errorf("relay skip line %q, err: %s", line, err)
		return nil
	}
	if es, ok := r.Target.(EnvelopeSink); ok {
		return es.PublishEnvelope(ctx, ev.Market(), env, []byte(line))
	}
	return r.Target.Publish(ctx, ev)
}
