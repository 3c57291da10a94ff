package users

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Producer handles sending provisioning events to Kafka
type Producer struct {
	Writer *kafka.Writer
}

// NewProducer wraps a Kafka writer. Messages are keyed by user id so all
// events for one user land on the same partition in order.
func NewProducer(writer *kafka.Writer) *Producer {
	return &Producer{Writer: writer}
}

// Publish sends the event to the writer's topic
func (p *Producer) Publish(ctx context.Context, event ProvisioningEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}

var _ Publisher = (*Producer)(nil)
