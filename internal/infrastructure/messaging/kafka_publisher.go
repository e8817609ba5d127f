// Package messaging publishes notification wake-ups to Kafka. The durable
// pending-job list stays the source of truth; a message only tells the
// delivery worker to look at it.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/societyledger/backend/internal/domain/bill"
)

// EventBillsReady is the event type header of a wake-up message
const EventBillsReady = "bulk_bill.ready"

// JobMessage is the JSON payload of a wake-up
type JobMessage struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	MasterBillID uuid.UUID `json:"master_bill_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobPublisher announces a queued notification job
type JobPublisher interface {
	Publish(ctx context.Context, tenantID uuid.UUID, job bill.PendingJob) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaJobPublisher writes one message per job, keyed by tenant so a
// tenant's wake-ups stay ordered within a partition.
type KafkaJobPublisher struct {
	writer messageWriter
}

// NewKafkaJobPublisher creates a publisher for topic
func NewKafkaJobPublisher(brokers []string, topic string) *KafkaJobPublisher {
	return &KafkaJobPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

// Publish sends the wake-up for job
func (p *KafkaJobPublisher) Publish(ctx context.Context, tenantID uuid.UUID, job bill.PendingJob) error {
	data, err := json.Marshal(JobMessage{
		TenantID:     tenantID,
		MasterBillID: job.MasterBillID,
		Name:         job.Name,
		CreatedAt:    job.CreatedAt,
	})
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tenantID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventBillsReady)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish bill notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaJobPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when messaging is disabled
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, uuid.UUID, bill.PendingJob) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }

var (
	_ JobPublisher = (*KafkaJobPublisher)(nil)
	_ JobPublisher = NopPublisher{}
)
