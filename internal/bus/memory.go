package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// ReasonMaxDeliveries is the dead-letter reason recorded when a message
	// exhausts its delivery budget.
	ReasonMaxDeliveries = "MaxDeliveryCountExceeded"

	defaultLockTimeout   = 30 * time.Second
	defaultMaxDeliveries = 3
)

// MemoryBus is an in-process implementation of the dispatch bus. It keeps
// the full topic/subscription semantics — attribute filtering, per-message
// delivery counting, lease expiry and automatic dead-lettering — without a
// broker, which makes it the backend for tests and local runs.
type MemoryBus struct {
	mu          sync.Mutex
	subs        map[string]*memorySubscription
	lockTimeout time.Duration
}

type memorySubscription struct {
	cfg   Subscription
	ready []*memoryMessage
	dead  []*DeadLetter
	wake  chan struct{}
}

type memoryMessage struct {
	msg        Message
	deliveries int
}

// NewMemoryBus creates an in-memory bus with the given subscriptions.
// A zero lockTimeout falls back to 30s; a subscription without an explicit
// delivery budget gets 3 attempts.
func NewMemoryBus(lockTimeout time.Duration, subs ...Subscription) *MemoryBus {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}

	b := &MemoryBus{
		subs:        make(map[string]*memorySubscription, len(subs)),
		lockTimeout: lockTimeout,
	}

	for _, cfg := range subs {
		if cfg.MaxDeliveries <= 0 {
			cfg.MaxDeliveries = defaultMaxDeliveries
		}

		b.subs[cfg.Name] = &memorySubscription{
			cfg:  cfg,
			wake: make(chan struct{}, 1),
		}
	}

	return b
}

// Publish fans the message out to every subscription whose filter matches
// its routing attributes.
func (b *MemoryBus) Publish(_ context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !filterMatches(sub.cfg.Filter, msg.Attributes) {
			continue
		}

		sub.ready = append(sub.ready, &memoryMessage{msg: cloneMessage(msg)})
		signal(sub.wake)
	}

	return nil
}

// Consume pushes deliveries for the named subscription into out until ctx is
// cancelled. Each delivery carries a lease: if the consumer neither acks nor
// nacks within the lock timeout, the attempt counts as failed and the message
// is redelivered or dead-lettered.
func (b *MemoryBus) Consume(ctx context.Context, subscription string, out chan<- Delivery) error {
	b.mu.Lock()
	sub, ok := b.subs[subscription]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	for {
		b.mu.Lock()
		if len(sub.ready) == 0 {
			b.mu.Unlock()

			select {
			case <-ctx.Done():
				return nil
			case <-sub.wake:
				continue
			}
		}

		mm := sub.ready[0]
		sub.ready = sub.ready[1:]
		mm.deliveries++
		d := b.newDelivery(sub, mm)
		b.mu.Unlock()

		select {
		case out <- d:
		case <-ctx.Done():
			// Hand-off never happened; undo the attempt. Ack settles the
			// lease without requeueing, then the message goes back to the
			// head of the queue with its delivery count restored. If the
			// lease already expired the timer has requeued it for us.
			if err := d.Ack(); err == nil {
				b.mu.Lock()
				mm.deliveries--
				sub.ready = append([]*memoryMessage{mm}, sub.ready...)
				signal(sub.wake)
				b.mu.Unlock()
			}
			return nil
		}
	}
}

func (b *MemoryBus) newDelivery(sub *memorySubscription, mm *memoryMessage) Delivery {
	settled := false
	var lease *time.Timer

	settle := func(failed bool) error {
		b.mu.Lock()
		defer b.mu.Unlock()

		if settled {
			return ErrAlreadySettled
		}
		settled = true
		if lease != nil {
			lease.Stop()
		}

		if !failed {
			return nil
		}

		if mm.deliveries >= sub.cfg.MaxDeliveries {
			sub.dead = append(sub.dead, &DeadLetter{
				Message:          cloneMessage(mm.msg),
				DeliveryCount:    mm.deliveries,
				Reason:           ReasonMaxDeliveries,
				ErrorDescription: fmt.Sprintf("message was not settled after %d delivery attempts", mm.deliveries),
			})
			return nil
		}

		sub.ready = append(sub.ready, mm)
		signal(sub.wake)
		return nil
	}

	lease = time.AfterFunc(b.lockTimeout, func() {
		_ = settle(true)
	})

	return Delivery{
		Message:       cloneMessage(mm.msg),
		DeliveryCount: mm.deliveries,
		ack:           func() error { return settle(false) },
		nack:          func() error { return settle(true) },
	}
}

// PeekDeadLetters returns up to limit dead-lettered messages without touching
// subscription state.
func (b *MemoryBus) PeekDeadLetters(_ context.Context, subscription string, limit int) ([]DeadLetter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[subscription]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	n := len(sub.dead)
	if limit > 0 && limit < n {
		n = limit
	}

	entries := make([]DeadLetter, 0, n)
	for _, dl := range sub.dead[:n] {
		entry := *dl
		entry.Message = cloneMessage(dl.Message)
		entries = append(entries, entry)
	}

	return entries, nil
}

// ReceiveDeadLetters removes up to limit dead-lettered messages under lease.
// A released message goes back to the end of the dead-letter sub-queue.
func (b *MemoryBus) ReceiveDeadLetters(_ context.Context, subscription string, limit int) ([]DeadLetterDelivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[subscription]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, subscription)
	}

	n := len(sub.dead)
	if limit > 0 && limit < n {
		n = limit
	}

	taken := sub.dead[:n]
	sub.dead = sub.dead[n:]

	deliveries := make([]DeadLetterDelivery, 0, n)
	for _, dl := range taken {
		dl := dl
		settled := false

		settle := func(release bool) error {
			b.mu.Lock()
			defer b.mu.Unlock()

			if settled {
				return ErrAlreadySettled
			}
			settled = true

			if release {
				sub.dead = append(sub.dead, dl)
			}
			return nil
		}

		entry := *dl
		entry.Message = cloneMessage(dl.Message)
		deliveries = append(deliveries, DeadLetterDelivery{
			DeadLetter: entry,
			complete:   func() error { return settle(false) },
			release:    func() error { return settle(true) },
		})
	}

	return deliveries, nil
}

func filterMatches(filter, attrs map[string]string) bool {
	for k, want := range filter {
		if attrs[k] != want {
			return false
		}
	}

	return true
}

func cloneMessage(msg Message) Message {
	out := msg
	out.Body = append([]byte(nil), msg.Body...)
	out.Attributes = make(map[string]string, len(msg.Attributes))
	for k, v := range msg.Attributes {
		out.Attributes[k] = v
	}

	return out
}

func signal(wake chan struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}
