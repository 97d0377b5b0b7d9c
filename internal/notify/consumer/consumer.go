package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/HurmakR/herabuna-b2b/internal/notify/invoice"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
	"github.com/HurmakR/herabuna-b2b/pkg/idempotency"
	"github.com/HurmakR/herabuna-b2b/pkg/tracing"
)

const eventTypeHeader = "event_type"

// Notifier is what the consumer needs from the messaging side.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string)
}

// Consumer turns order lifecycle events into operator notifications and
// invoice issuance. Reactions are best effort; a failed side effect is
// logged, the message is committed either way.
type Consumer struct {
	log     *slog.Logger
	reader  *kafka.Reader
	idem    *idempotency.Store
	bot     Notifier
	invoice *invoice.Issuer
	tracer  trace.Tracer

	adminChat string
	orderChat string
}

func New(log *slog.Logger, reader *kafka.Reader, idem *idempotency.Store,
	bot Notifier, issuer *invoice.Issuer, adminChat, orderChat string) *Consumer {
	return &Consumer{
		log:       log,
		reader:    reader,
		idem:      idem,
		bot:       bot,
		invoice:   issuer,
		tracer:    otel.Tracer("notify-consumer"),
		adminChat: adminChat,
		orderChat: orderChat,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Warn("dedup check failed, processing anyway", "key", key, "error", err)
	} else if seen {
		c.log.Debug("duplicate message skipped", "key", key)
		return
	}

	ctx = tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "notify.handle")
	defer span.End()

	switch eventType(msg) {
	case domain.EventTypeOrderSubmitted:
		c.onSubmitted(ctx, msg.Value)
	case domain.EventTypeOrderConfirmed:
		c.onConfirmed(ctx, msg.Value)
	case domain.EventTypeOrderCancelled:
		c.onCancelled(ctx, msg.Value)
	case domain.EventTypeOrderShipped:
		c.onShipped(ctx, msg.Value)
	default:
		c.log.Warn("unknown event type", "type", eventType(msg), "key", string(msg.Key))
	}
}

func (c *Consumer) onSubmitted(ctx context.Context, payload []byte) {
	var ev domain.OrderSubmittedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Error("bad OrderSubmitted payload", "error", err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Нове замовлення <b>%s</b>\nДилер: %s\nСума: %s грн\n", ev.OrderID, ev.DealerID, ev.Total)
	for _, l := range ev.Lines {
		fmt.Fprintf(&b, "— %s x%d\n", lineLabel(l), l.Qty)
	}
	c.bot.Notify(ctx, c.adminChat, b.String())
}

func (c *Consumer) onConfirmed(ctx context.Context, payload []byte) {
	var ev domain.OrderConfirmedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Error("bad OrderConfirmed payload", "error", err)
		return
	}

	err := c.invoice.Issue(ctx, invoice.Request{
		OrderID:  ev.OrderID,
		DealerID: ev.DealerID,
		Total:    ev.Total.StringFixed(2),
	})
	if err != nil {
		c.log.Error("invoice issue failed", "order_id", ev.OrderID, "error", err)
	}

	text := fmt.Sprintf("Замовлення <b>%s</b> підтверджено, рахунок на %s грн виставлено", ev.OrderID, ev.Total)
	c.bot.Notify(ctx, c.orderChat, text)
}

func (c *Consumer) onCancelled(ctx context.Context, payload []byte) {
	var ev domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Error("bad OrderCancelled payload", "error", err)
		return
	}
	text := fmt.Sprintf("Замовлення <b>%s</b> скасовано, резерви повернуто на склад", ev.OrderID)
	c.bot.Notify(ctx, c.orderChat, text)
}

func (c *Consumer) onShipped(ctx context.Context, payload []byte) {
	var ev domain.OrderShippedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Error("bad OrderShipped payload", "error", err)
		return
	}
	text := fmt.Sprintf("Замовлення <b>%s</b> відправлено. ТТН: %s", ev.OrderID, ev.TrackingNumber)
	c.bot.Notify(ctx, c.orderChat, text)
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == eventTypeHeader {
			return string(h.Value)
		}
	}
	return ""
}

func lineLabel(l domain.EventLine) string {
	name := l.Label
	if name == "" {
		name = l.ProductID
	}
	if len(l.Attrs) == 0 {
		return name
	}
	parts := make([]string, 0, len(l.Attrs))
	for k, v := range l.Attrs {
		parts = append(parts, k+": "+v)
	}
	return name + " (" + strings.Join(parts, ", ") + ")"
}
