// Package broadcaster drains the event outbox into Kafka. Every sweep
// scans pending records, publishes them, and acknowledges the ones the
// broker accepted. Delivery is at-least-once: a record stuck between
// send and ack is re-sent on the next sweep.
package broadcaster

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	"audhumla/infra/outbox"
)

// maxAttempts parks a record as FAILED after this many send attempts
// so one poison event cannot wedge the whole drain.
const maxAttempts = 10

// producer is the slice of sarama.SyncProducer the broadcaster needs.
type producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type Broadcaster struct {
	log      *slog.Logger
	outbox   *outbox.Outbox
	producer producer
	topic    string
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	log *slog.Logger,
	ob *outbox.Outbox,
	brokers []string,
	topic string,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		log:      log,
		outbox:   ob,
		producer: p,
		topic:    topic,
	}, nil
}

// ------------------------------------------------
// SWEEP (CRITICAL)
// ------------------------------------------------

// Sweep publishes every pending outbox record once. Send failures are
// left in SENT for the next sweep; only broker-acknowledged records
// move to ACKED.
func (b *Broadcaster) Sweep(ctx context.Context) error {
	return b.outbox.ScanPending(func(rec *outbox.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if rec.Retries >= maxAttempts {
			b.log.Warn("parking poison event",
				"seq", rec.Seq, "attempts", rec.Retries)
			return b.outbox.MarkFailed(rec.Seq)
		}

		// 1️⃣ Mark SENT before touching the network (idempotent)
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		// 2️⃣ Publish to Kafka
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry",
				"seq", rec.Seq, "err", err)
			return nil // stays SENT → retried next sweep
		}

		// 3️⃣ Mark ACKED
		return b.outbox.MarkAcked(rec.Seq)
	})
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
