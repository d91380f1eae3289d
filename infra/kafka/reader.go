package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader consumes one topic as part of a consumer group. Offsets are
// committed explicitly so a command is only marked consumed after it
// has been applied.
type Reader struct {
	reader *kafka.Reader
}

func NewReader(brokers []string, groupID, topic string) *Reader {
	return &Reader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10 << 20,
			MaxWait:  250 * time.Millisecond,
		}),
	}
}

// Fetch blocks for the next message without committing its offset.
func (r *Reader) Fetch(ctx context.Context) (kafka.Message, error) {
	return r.reader.FetchMessage(ctx)
}

// Commit marks msgs as consumed for the group.
func (r *Reader) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return r.reader.CommitMessages(ctx, msgs...)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
