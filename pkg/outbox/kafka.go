package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaDispatcher publishes event tasks to a kafka topic, keyed by the
// aggregate id so events of one order stay ordered.
type KafkaDispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewKafkaDispatcher(log *slog.Logger, producer Producer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{log: log, producer: producer, topic: topic}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, task Task) error {
	headers := make([]kafka.Header, 0, len(task.Headers)+2)
	for k, v := range task.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(task.Type)})
	if task.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(task.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(task.AggregateID),
		Value:   task.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	d.log.Debug("event dispatched", "task_id", task.ID, "type", task.Type)
	return nil
}

// NewWriter builds the kafka writer used by the event relay.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}
