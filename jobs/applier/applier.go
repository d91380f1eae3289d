// Package applier consumes array commands from Kafka and applies them
// through the service write path. Commands reuse the journal record
// encoding: a put or fill record carries everything a mutation needs,
// and anything else is rejected.
package applier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"audhumla/infra/journal"
)

// Target is the slice of the array service that commands mutate.
type Target interface {
	Put(name string, index uint64, value int64) (uint64, error)
	Fill(name string, value int64) (uint64, error)
}

// Fetcher matches infra/kafka.Reader.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Applier struct {
	log    *slog.Logger
	reader Fetcher
	target Target
}

func New(log *slog.Logger, reader Fetcher, target Target) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{log: log, reader: reader, target: target}
}

// Run fetches, applies, and commits commands until the context is
// cancelled or the reader is closed. A command that fails to apply is
// logged and committed anyway: redelivering a bad command forever
// would wedge the partition.
func (a *Applier) Run(ctx context.Context) error {
	a.log.Info("applier started")

	for {
		msg, err := a.reader.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				a.log.Info("applier stopped")
				return nil
			}
			return fmt.Errorf("fetch command: %w", err)
		}

		if err := a.apply(msg.Value); err != nil {
			a.log.Warn("command rejected",
				"partition", msg.Partition, "offset", msg.Offset, "err", err)
		}

		if err := a.reader.Commit(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

func (a *Applier) apply(payload []byte) error {
	rec, err := journal.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	switch rec.Kind {
	case journal.KindPut:
		_, err = a.target.Put(rec.Name, rec.Index, rec.Value)
	case journal.KindFill:
		_, err = a.target.Fill(rec.Name, rec.Value)
	default:
		err = fmt.Errorf("unsupported command kind %s", rec.Kind)
	}
	return err
}

func (a *Applier) Close() error {
	return a.reader.Close()
}
