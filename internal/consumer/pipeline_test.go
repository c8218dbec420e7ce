package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/deadletter"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
	"github.com/vetrovmax/notify-dispatcher/internal/repository/notification"
	notifsvc "github.com/vetrovmax/notify-dispatcher/internal/service/notification"
)

// The tests below run the real service, bus and consumers together: create
// through the service, deliver through the in-memory bus, commit through a
// shared in-memory store. Only the senders and the storage backends are fakes.

var pipelineStrategy = retry.Strategy{Attempts: 1, Delay: time.Millisecond}

// memoryStore implements the service's repository with the same conditional
// update semantics as the Postgres store.
type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]model.Notification
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[uuid.UUID]model.Notification)}
}

func (s *memoryStore) CreateNotification(_ context.Context, n model.Notification) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[n.ID] = n
	return n.ID, nil
}

func (s *memoryStore) GetNotificationByID(_ context.Context, id uuid.UUID) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok {
		return model.Notification{}, notification.ErrNotificationNotFound
	}
	return n, nil
}

func (s *memoryStore) MarkSent(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok || n.Status == model.StatusSent {
		return notification.ErrAlreadySent
	}

	n.Status = model.StatusSent
	n.ProcessedAt = &processedAt
	s.records[id] = n
	return nil
}

func (s *memoryStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok || n.Status == model.StatusSent {
		return nil
	}

	n.Status = model.StatusFailed
	s.records[id] = n
	return nil
}

func (s *memoryStore) GetSummary(context.Context) (model.Summary, error) {
	return model.Summary{}, nil
}

func (s *memoryStore) GetChannelSummaries(context.Context) ([]model.ChannelSummary, error) {
	return nil, nil
}

func (s *memoryStore) GetRecentNotifications(context.Context, int) ([]model.Notification, error) {
	return nil, nil
}

func (s *memoryStore) GetTenantSummary(context.Context, string) (model.TenantSummary, error) {
	return model.TenantSummary{}, nil
}

func (s *memoryStore) get(id uuid.UUID) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[id]
}

// mapCache is the status cache; misses report redis.Nil like the real client.
type mapCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (c *mapCache) SetWithRetry(_ context.Context, _ retry.Strategy, key string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("unexpected cache value type")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = s
	return nil
}

func (c *mapCache) GetWithRetry(_ context.Context, _ retry.Strategy, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

type scriptedSender struct {
	mu      sync.Mutex
	sends   int
	failing bool
}

func (s *scriptedSender) Send(_, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sends++
	if s.failing {
		return errors.New("gateway unavailable")
	}
	return nil
}

func (s *scriptedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sends
}

func (s *scriptedSender) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failing = failing
}

type pipeline struct {
	bus     *bus.MemoryBus
	store   *memoryStore
	service *notifsvc.Service

	email, sms, push *scriptedSender
}

func newPipeline(maxDeliveries int) *pipeline {
	subs := []bus.Subscription{
		{Name: "email-sub", Filter: map[string]string{bus.AttrChannel: model.ChannelEmail}, MaxDeliveries: maxDeliveries},
		{Name: "sms-sub", Filter: map[string]string{bus.AttrChannel: model.ChannelSMS}, MaxDeliveries: maxDeliveries},
		{Name: "push-sub", Filter: map[string]string{bus.AttrChannel: model.ChannelPush}, MaxDeliveries: maxDeliveries},
	}

	store := newMemoryStore()
	b := bus.NewMemoryBus(0, subs...)

	return &pipeline{
		bus:     b,
		store:   store,
		service: notifsvc.NewService(store, b, newMapCache()),
		email:   &scriptedSender{},
		sms:     &scriptedSender{},
		push:    &scriptedSender{},
	}
}

func (p *pipeline) startConsumers(ctx context.Context) {
	wiring := []struct {
		channel, subscription string
		sender                *scriptedSender
	}{
		{model.ChannelEmail, "email-sub", p.email},
		{model.ChannelSMS, "sms-sub", p.sms},
		{model.ChannelPush, "push-sub", p.push},
	}

	for _, w := range wiring {
		c := New(p.bus, p.service, w.sender, w.channel, w.subscription, pipelineStrategy, 5)
		go func() { _ = c.Run(ctx) }()
	}
}

func TestPipeline_CreateToSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(3)

	id, err := p.service.CreateNotification(ctx, pipelineStrategy, model.Notification{
		Type:     "OrderPlaced",
		Channel:  model.ChannelSMS,
		UserID:   "+15550001111",
		Message:  "your order has been placed",
		TenantID: "tenant-a",
	})
	require.NoError(t, err)

	// Before any consumer runs the record is visible as PENDING.
	info, err := p.service.GetNotificationStatusByID(ctx, pipelineStrategy, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, info.Status)

	p.startConsumers(ctx)

	require.Eventually(t, func() bool {
		return p.store.get(id).Status == model.StatusSent
	}, 2*time.Second, 10*time.Millisecond)

	n := p.store.get(id)
	require.NotNil(t, n.ProcessedAt)

	info, err = p.service.GetNotificationStatusByID(ctx, pipelineStrategy, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, info.Status)

	// Subscription filters keep the message off the other channels.
	assert.Equal(t, 1, p.sms.count())
	assert.Zero(t, p.email.count())
	assert.Zero(t, p.push.count())
}

func TestPipeline_SendFailureDeadLettersThenReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(2)
	p.sms.setFailing(true)

	id, err := p.service.CreateNotification(ctx, pipelineStrategy, model.Notification{
		Type:     "OrderPlaced",
		Channel:  model.ChannelSMS,
		UserID:   "+15550001111",
		Message:  "your order has been placed",
		TenantID: "tenant-a",
	})
	require.NoError(t, err)

	p.startConsumers(ctx)

	require.Eventually(t, func() bool {
		dead, perr := p.bus.PeekDeadLetters(ctx, "sms-sub", 10)
		return perr == nil && len(dead) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, model.StatusFailed, p.store.get(id).Status)
	assert.Equal(t, 2, p.sms.count())

	// Gateway recovers; replaying the dead letter drives the same record to
	// SENT through the normal consumer path.
	p.sms.setFailing(false)

	replayed, err := deadletter.NewManager(p.bus).Replay(ctx, "sms-sub", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	require.Eventually(t, func() bool {
		return p.store.get(id).Status == model.StatusSent
	}, 2*time.Second, 10*time.Millisecond)

	dead, err := p.bus.PeekDeadLetters(ctx, "sms-sub", 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
	assert.Equal(t, 3, p.sms.count())
}
