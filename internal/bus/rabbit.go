package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"
)

// Broker-side prefetch per consuming channel. The consumer engine applies
// its own in-flight bound on top of this.
const defaultPrefetch = 20

// RabbitBus implements the dispatch bus on RabbitMQ.
//
// The topic is a headers exchange, so subscription filters are evaluated by
// the broker from routing attributes, never from the body. Each subscription
// is a quorum queue with a delivery limit; once a message exceeds it the
// broker dead-letters it into the subscription's own <name>.dlq queue via a
// shared direct dead-letter exchange keyed by subscription name.
type RabbitBus struct {
	conn     *amqp091.Connection
	topic    string
	subs     map[string]Subscription
	strategy retry.Strategy

	pubMu sync.Mutex
	pubCh *amqp091.Channel

	dlqMu sync.Mutex
	dlqCh *amqp091.Channel
}

// NewRabbitBus declares the topic, subscription queues, bindings and
// dead-letter topology, and returns a bus ready for publishing and consuming.
func NewRabbitBus(conn *amqp091.Connection, topic string, strategy retry.Strategy, subs ...Subscription) (*RabbitBus, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(topic, "headers", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare topic exchange: %w", err)
	}

	dlx := topic + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}

	b := &RabbitBus{
		conn:     conn,
		topic:    topic,
		subs:     make(map[string]Subscription, len(subs)),
		strategy: strategy,
		pubCh:    ch,
	}

	for _, sub := range subs {
		if sub.MaxDeliveries <= 0 {
			sub.MaxDeliveries = defaultMaxDeliveries
		}
		b.subs[sub.Name] = sub

		_, err := ch.QueueDeclare(dlqQueue(sub.Name), true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to declare dead-letter queue for %s: %w", sub.Name, err)
		}

		if err := ch.QueueBind(dlqQueue(sub.Name), sub.Name, dlx, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind dead-letter queue for %s: %w", sub.Name, err)
		}

		// x-delivery-limit counts redeliveries, so the attempt budget is one
		// more than the limit.
		_, err = ch.QueueDeclare(sub.Name, true, false, false, false, amqp091.Table{
			"x-queue-type":              "quorum",
			"x-delivery-limit":          int32(sub.MaxDeliveries - 1),
			"x-dead-letter-exchange":    dlx,
			"x-dead-letter-routing-key": sub.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", sub.Name, err)
		}

		if err := ch.QueueBind(sub.Name, "", topic, false, filterTable(sub.Filter)); err != nil {
			return nil, fmt.Errorf("failed to bind queue %s: %w", sub.Name, err)
		}
	}

	return b, nil
}

// Publish sends the message to the topic with its routing attributes as
// AMQP headers.
func (b *RabbitBus) Publish(ctx context.Context, msg Message) error {
	headers := make(amqp091.Table, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers[k] = v
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	return retry.DoContext(ctx, b.strategy, func() error {
		return b.pubCh.PublishWithContext(ctx, b.topic, "", false, false, amqp091.Publishing{
			Headers:       headers,
			ContentType:   msg.ContentType,
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msg.ID,
			CorrelationId: msg.CorrelationID,
			Body:          msg.Body,
		})
	})
}

// Consume pushes deliveries for the named subscription into out until ctx is
// cancelled. Nacked messages are requeued; the broker's delivery limit moves
// exhausted ones to the dead-letter queue.
func (b *RabbitBus) Consume(ctx context.Context, subscription string, out chan<- Delivery) error {
	if _, ok := b.subs[subscription]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(defaultPrefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := ch.Consume(subscription, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", subscription, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", subscription)
			}

			delivery := Delivery{
				Message:       toMessage(d),
				DeliveryCount: deliveryCount(d.Headers),
				ack:           func() error { return d.Ack(false) },
				nack:          func() error { return d.Nack(false, true) },
			}

			select {
			case out <- delivery:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
		}
	}
}

// PeekDeadLetters drains up to limit messages from the dead-letter queue and
// immediately requeues them. AMQP has no true peek, so the dead-letter queue's
// own delivery counts tick up, but the entries themselves are untouched.
func (b *RabbitBus) PeekDeadLetters(_ context.Context, subscription string, limit int) ([]DeadLetter, error) {
	if _, ok := b.subs[subscription]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	b.dlqMu.Lock()
	defer b.dlqMu.Unlock()

	ch, err := b.dlqChannel()
	if err != nil {
		return nil, err
	}

	var got []amqp091.Delivery

	for limit <= 0 || len(got) < limit {
		d, ok, err := ch.Get(dlqQueue(subscription), false)
		if err != nil {
			requeueDeliveries(got)
			return nil, fmt.Errorf("failed to read dead-letter queue for %s: %w", subscription, err)
		}
		if !ok {
			break
		}

		got = append(got, d)
	}

	entries := make([]DeadLetter, 0, len(got))
	for _, d := range got {
		entries = append(entries, toDeadLetter(d))
	}

	requeueDeliveries(got)
	return entries, nil
}

// ReceiveDeadLetters takes up to limit dead-lettered messages under lease.
func (b *RabbitBus) ReceiveDeadLetters(_ context.Context, subscription string, limit int) ([]DeadLetterDelivery, error) {
	if _, ok := b.subs[subscription]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	b.dlqMu.Lock()
	defer b.dlqMu.Unlock()

	ch, err := b.dlqChannel()
	if err != nil {
		return nil, err
	}

	var deliveries []DeadLetterDelivery
	for limit <= 0 || len(deliveries) < limit {
		d, ok, err := ch.Get(dlqQueue(subscription), false)
		if err != nil {
			for _, dl := range deliveries {
				_ = dl.Release()
			}
			return nil, fmt.Errorf("failed to receive from dead-letter queue for %s: %w", subscription, err)
		}
		if !ok {
			break
		}

		deliveries = append(deliveries, DeadLetterDelivery{
			DeadLetter: toDeadLetter(d),
			complete:   func() error { return d.Ack(false) },
			release:    func() error { return d.Nack(false, true) },
		})
	}

	return deliveries, nil
}

func (b *RabbitBus) dlqChannel() (*amqp091.Channel, error) {
	if b.dlqCh != nil && !b.dlqCh.IsClosed() {
		return b.dlqCh, nil
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter channel: %w", err)
	}

	b.dlqCh = ch
	return ch, nil
}

// requeueDeliveries puts drained deliveries back on their queue one tag at a
// time. A multiple nack covers every unacked tag on the channel below it,
// including deliveries held elsewhere on the shared dead-letter channel,
// such as a replay batch awaiting completion.
func requeueDeliveries(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		_ = d.Nack(false, true)
	}
}

func dlqQueue(subscription string) string {
	return subscription + ".dlq"
}

func filterTable(filter map[string]string) amqp091.Table {
	args := amqp091.Table{"x-match": "all"}
	for k, v := range filter {
		args[k] = v
	}

	return args
}

func toMessage(d amqp091.Delivery) Message {
	attrs := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		// Broker bookkeeping headers (x-death, x-first-death-reason, ...)
		// are not routing attributes and must not survive a replay.
		if strings.HasPrefix(k, "x-") {
			continue
		}
		if s, ok := v.(string); ok {
			attrs[k] = s
		}
	}

	return Message{
		ID:            d.MessageId,
		CorrelationID: d.CorrelationId,
		ContentType:   d.ContentType,
		Body:          d.Body,
		Attributes:    attrs,
	}
}

func toDeadLetter(d amqp091.Delivery) DeadLetter {
	reason := deathReason(d.Headers)
	count := deliveryCount(d.Headers)

	return DeadLetter{
		Message:          toMessage(d),
		DeliveryCount:    count,
		Reason:           reason,
		ErrorDescription: fmt.Sprintf("dead-lettered by broker after %d delivery attempts", count),
	}
}

// deliveryCount derives the attempt number from the broker's
// x-delivery-count header, which counts redeliveries.
func deliveryCount(headers amqp091.Table) int {
	switch v := headers["x-delivery-count"].(type) {
	case int64:
		return int(v) + 1
	case int32:
		return int(v) + 1
	case int:
		return v + 1
	default:
		return 1
	}
}

func deathReason(headers amqp091.Table) string {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok || len(deaths) == 0 {
		return ReasonMaxDeliveries
	}

	death, ok := deaths[0].(amqp091.Table)
	if !ok {
		return ReasonMaxDeliveries
	}

	if reason, ok := death["reason"].(string); ok && reason != "" {
		return reason
	}

	return ReasonMaxDeliveries
}
