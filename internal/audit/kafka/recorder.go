// internal/audit/kafka/recorder.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledgersync/internal/audit"

	"github.com/segmentio/kafka-go"
)

// entry is the wire shape of one audit record.
type entry struct {
	Action     string            `json:"action"`
	Resource   string            `json:"resource"`
	Details    map[string]string `json:"details"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Recorder publishes audit records to a Kafka topic.
type Recorder struct {
	writer *kafka.Writer
}

// NewRecorder creates a Kafka-backed audit recorder writing to topic.
func NewRecorder(brokers []string, topic string) *Recorder {
	return &Recorder{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Record publishes one audit entry. The resource name keys the message so
// records for one resource land on one partition in order.
func (r *Recorder) Record(ctx context.Context, action, resource string, details map[string]string) error {
	data, err := json.Marshal(entry{
		Action:     action,
		Resource:   resource,
		Details:    details,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(resource),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (r *Recorder) Close() error {
	return r.writer.Close()
}

var _ audit.Recorder = (*Recorder)(nil)
