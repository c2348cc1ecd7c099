package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes events as JSON envelopes keyed so that every event of
// one order lands on the same partition.
type KafkaSender struct {
	writer messageWriter
	now    func() time.Time
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return newKafkaSender(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaSender(w messageWriter) *KafkaSender {
	return &KafkaSender{writer: w, now: time.Now}
}

func (s *KafkaSender) OrderPlaced(ctx context.Context, ev OrderPlaced) error {
	return s.publish(ctx, EventOrderPlaced, strconv.FormatInt(ev.Order.ID, 10), ev)
}

func (s *KafkaSender) StatusChanged(ctx context.Context, ev StatusChanged) error {
	return s.publish(ctx, EventOrderStatus, strconv.FormatInt(ev.OrderID, 10), ev)
}

func (s *KafkaSender) EmailVerification(ctx context.Context, ev EmailVerification) error {
	return s.publish(ctx, EventEmailVerification, ev.CustomerID, ev)
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

func (s *KafkaSender) publish(ctx context.Context, eventType, key string, payload any) error {
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Time:    env.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(eventType)}},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
