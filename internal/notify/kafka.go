package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const OTPDeliveryTopic = "otp-delivery"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type codeMessage struct {
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	Channel     string    `json:"channel"`
	SentAt      time.Time `json:"sent_at"`
}

// KafkaNotifier hands codes to the delivery service through a Kafka topic.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OTPDeliveryTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w, now: time.Now}
}

func (n *KafkaNotifier) SendCode(ctx context.Context, destination, code string) error {
	payload, err := json.Marshal(codeMessage{
		Destination: destination,
		Code:        code,
		Channel:     "email",
		SentAt:      n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal otp message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(destination),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("otp.issued")},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write otp message: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
