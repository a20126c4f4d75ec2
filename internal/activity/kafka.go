package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
)

// KafkaSink publishes activity entries to a topic, keyed by user id so one
// user's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates an asynchronous writer. Delivery failures surface
// through the completion callback and are only logged.
func NewKafkaSink(brokers []string, topic string, log *logger.Logger) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithComponent("activity").
					WithError(err).
					WithField("messages", len(messages)).
					Warn("kafka delivery failed")
			}
		},
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, entry *models.ActivityLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode activity event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.UserID),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
