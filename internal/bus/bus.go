// Package bus defines the dispatch bus abstraction: a topic fanning out to
// named subscriptions, each with an attribute filter, a bounded redelivery
// budget and its own dead-letter sub-queue.
//
// Delivery is at-least-once per subscription. Nothing here guarantees
// ordering or exactly-once semantics; consumers are expected to be
// idempotent.
package bus

import (
	"context"
	"errors"
)

// Routing attribute keys attached to every published message. Subscriptions
// filter on attributes, never on the message body.
const (
	AttrChannel = "Channel"
	AttrTenant  = "TenantId"
)

var (
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrAlreadySettled      = errors.New("delivery already settled")
)

// Message is a single message on the topic. ID is unique per publish; a
// replayed message gets a fresh ID while CorrelationID survives the whole
// lifecycle of a notification.
type Message struct {
	ID            string
	CorrelationID string
	ContentType   string
	Body          []byte
	Attributes    map[string]string
}

// Delivery is one attempt to hand a message to a consumer. The consumer must
// settle it exactly once: Ack removes the message from the subscription,
// Nack records a failed attempt and triggers redelivery or dead-lettering.
// Letting the lease expire counts as a Nack.
type Delivery struct {
	Message
	DeliveryCount int

	ack  func() error
	nack func() error
}

func (d Delivery) Ack() error  { return d.ack() }
func (d Delivery) Nack() error { return d.nack() }

// DeadLetter is a message that exhausted its redelivery budget on one
// subscription.
type DeadLetter struct {
	Message
	DeliveryCount    int
	Reason           string
	ErrorDescription string
}

// DeadLetterDelivery is a dead-lettered message received under lease for
// replay. Complete removes it permanently; Release puts it back on the
// dead-letter sub-queue.
type DeadLetterDelivery struct {
	DeadLetter

	complete func() error
	release  func() error
}

func (d DeadLetterDelivery) Complete() error { return d.complete() }
func (d DeadLetterDelivery) Release() error  { return d.release() }

// Subscription describes one named subscription on the topic.
type Subscription struct {
	Name string

	// Filter is an attribute-equality predicate; a message is delivered to
	// the subscription only if every listed attribute matches. An empty
	// filter matches everything.
	Filter map[string]string

	// MaxDeliveries is the delivery attempt budget. Once a message has been
	// delivered this many times without an Ack it moves to the subscription's
	// dead-letter sub-queue.
	MaxDeliveries int
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Consumer interface {
	// Consume pushes deliveries for the named subscription into out until
	// ctx is cancelled. It blocks for the lifetime of the consumer.
	Consume(ctx context.Context, subscription string, out chan<- Delivery) error
}

type DeadLetterer interface {
	// PeekDeadLetters returns up to limit dead-lettered messages without
	// consuming them.
	PeekDeadLetters(ctx context.Context, subscription string, limit int) ([]DeadLetter, error)

	// ReceiveDeadLetters takes up to limit dead-lettered messages under
	// lease; each must be completed or released by the caller.
	ReceiveDeadLetters(ctx context.Context, subscription string, limit int) ([]DeadLetterDelivery, error)
}

// Bus is the full dispatch bus surface.
type Bus interface {
	Publisher
	Consumer
	DeadLetterer
}
