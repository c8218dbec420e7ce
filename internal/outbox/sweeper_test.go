package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/message"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

type stubRepo struct {
	stale      []model.Notification
	err        error
	gotBefore  time.Time
	gotLimit   int
	listCalled bool
}

func (s *stubRepo) ListStalePending(_ context.Context, before time.Time, limit int) ([]model.Notification, error) {
	s.listCalled = true
	s.gotBefore = before
	s.gotLimit = limit
	return s.stale, s.err
}

type recordingPublisher struct {
	published []bus.Message
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, msg bus.Message) error {
	if p.err != nil {
		return p.err
	}

	p.published = append(p.published, msg)
	return nil
}

func TestSweeper_Sweep_RepublishesStalePending(t *testing.T) {
	stale := []model.Notification{
		{
			ID:            uuid.New(),
			Channel:       model.ChannelEmail,
			UserID:        "user@example.com",
			Message:       "hi",
			TenantID:      "tenant-a",
			Status:        model.StatusPending,
			CorrelationID: uuid.New(),
		},
		{
			ID:            uuid.New(),
			Channel:       model.ChannelSMS,
			UserID:        "79991234567",
			Message:       "hi",
			TenantID:      "tenant-b",
			Status:        model.StatusPending,
			CorrelationID: uuid.New(),
		},
	}

	repo := &stubRepo{stale: stale}
	pub := &recordingPublisher{}

	s := NewSweeper(repo, pub, time.Minute, 5*time.Minute, 50)
	s.sweep(context.Background())

	assert.True(t, repo.listCalled)
	assert.Equal(t, 50, repo.gotLimit)
	assert.WithinDuration(t, time.Now().UTC().Add(-5*time.Minute), repo.gotBefore, time.Second)

	require.Len(t, pub.published, 2)
	for i, n := range stale {
		msg := pub.published[i]
		assert.Equal(t, n.CorrelationID.String(), msg.CorrelationID)
		assert.Equal(t, n.Channel, msg.Attributes[bus.AttrChannel])

		decoded, err := message.Decode(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, n.ID, decoded.NotificationID)
	}
}

func TestSweeper_Sweep_NothingStale(t *testing.T) {
	repo := &stubRepo{}
	pub := &recordingPublisher{}

	s := NewSweeper(repo, pub, time.Minute, 5*time.Minute, 0)
	s.sweep(context.Background())

	assert.True(t, repo.listCalled)
	assert.Equal(t, 100, repo.gotLimit)
	assert.Empty(t, pub.published)
}

func TestSweeper_Sweep_ListError(t *testing.T) {
	repo := &stubRepo{err: errors.New("db down")}
	pub := &recordingPublisher{}

	s := NewSweeper(repo, pub, time.Minute, 5*time.Minute, 100)
	s.sweep(context.Background())

	assert.Empty(t, pub.published)
}

func TestSweeper_Sweep_PublishErrorDoesNotAbortBatch(t *testing.T) {
	repo := &stubRepo{stale: []model.Notification{
		{ID: uuid.New(), Channel: model.ChannelEmail, Status: model.StatusPending, CorrelationID: uuid.New()},
	}}
	pub := &recordingPublisher{err: errors.New("broker unavailable")}

	s := NewSweeper(repo, pub, time.Minute, 5*time.Minute, 100)

	// A failed republish is logged and retried on the next sweep; it must
	// not panic or stop the sweeper.
	s.sweep(context.Background())
	assert.Empty(t, pub.published)
}

func TestSweeper_StartStop(t *testing.T) {
	repo := &stubRepo{}
	pub := &recordingPublisher{}

	s := NewSweeper(repo, pub, time.Hour, 5*time.Minute, 100)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
