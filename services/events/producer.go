package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

// EnrollmentCreated is published once per committed enrollment
type EnrollmentCreated struct {
	EventID    string          `json:"event_id"`
	TranID     string          `json:"tran_id"`
	UserID     uint            `json:"user_id"`
	CourseID   uint            `json:"course_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	EnrolledAt time.Time       `json:"enrolled_at"`
}

// Producer publishes domain events to Kafka
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

const connectAttempts = 3

// NewProducer connects a synchronous producer, retrying a few times while the brokers come up
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= connectAttempts; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Infof("[EVENTS] Kafka producer connected, topic %s", topic)
			return NewProducerFromSync(producer, topic), nil
		}

		log.Warnf("[EVENTS] Waiting for Kafka... (%d/%d) Error: %v", i, connectAttempts, err)
		if i < connectAttempts {
			time.Sleep(2 * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
}

// NewProducerFromSync wraps an existing producer
func NewProducerFromSync(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// PublishEnrollmentCreated sends the event keyed by tranId so redeliveries land on one partition
func (p *Producer) PublishEnrollmentCreated(ctx context.Context, event EnrollmentCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", p.topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.TranID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", p.topic, err)
	}

	log.Infof("[EVENTS] Published %s for %s (partition %d, offset %d)", p.topic, event.TranID, partition, offset)
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
