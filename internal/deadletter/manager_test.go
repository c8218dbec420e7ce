package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

const testSubscription = "email-sub"

// recordingBus captures republished messages and can be told to start
// failing publishes mid-batch.
type recordingBus struct {
	*bus.MemoryBus

	published []bus.Message
	failAfter int // fail every Publish once this many succeeded; 0 means never
}

func (r *recordingBus) Publish(ctx context.Context, msg bus.Message) error {
	if r.failAfter > 0 && len(r.published) >= r.failAfter {
		return errors.New("broker unavailable")
	}

	r.published = append(r.published, msg)
	return r.MemoryBus.Publish(ctx, msg)
}

func newDeadLetteredBus(t *testing.T, ids ...string) *recordingBus {
	t.Helper()

	b := bus.NewMemoryBus(time.Minute, bus.Subscription{
		Name:          testSubscription,
		Filter:        map[string]string{bus.AttrChannel: model.ChannelEmail},
		MaxDeliveries: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan bus.Delivery)
	go func() { _ = b.Consume(ctx, testSubscription, out) }()

	for _, id := range ids {
		require.NoError(t, b.Publish(context.Background(), bus.Message{
			ID:            id,
			CorrelationID: "corr-" + id,
			ContentType:   "application/json",
			Body:          []byte(`{"id":"` + id + `"}`),
			Attributes:    map[string]string{bus.AttrChannel: model.ChannelEmail, bus.AttrTenant: "tenant-a"},
		}))

		select {
		case d := <-out:
			require.NoError(t, d.Nack())
		case <-time.After(time.Second):
			t.Fatal("seed message was not delivered")
		}
	}

	return &recordingBus{MemoryBus: b}
}

func TestManager_Peek(t *testing.T) {
	b := newDeadLetteredBus(t, "m1", "m2")
	m := NewManager(b)

	entries := m.Peek(context.Background(), testSubscription, 10)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].ID)
	assert.Equal(t, bus.ReasonMaxDeliveries, entries[0].Reason)

	// Peek must not consume.
	again := m.Peek(context.Background(), testSubscription, 10)
	assert.Len(t, again, 2)
}

func TestManager_Peek_DegradesToEmpty(t *testing.T) {
	b := newDeadLetteredBus(t, "m1")
	m := NewManager(b)

	entries := m.Peek(context.Background(), "no-such-sub", 10)
	assert.Empty(t, entries)
}

func TestManager_Replay(t *testing.T) {
	b := newDeadLetteredBus(t, "m1", "m2")
	m := NewManager(b)

	replayed, err := m.Replay(context.Background(), testSubscription, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)

	// Originals are completed, so the dead-letter sub-queue is empty.
	assert.Empty(t, m.Peek(context.Background(), testSubscription, 10))

	// Each replacement keeps the content but carries a fresh message id.
	require.Len(t, b.published, 2)
	for i, original := range []string{"m1", "m2"} {
		got := b.published[i]
		assert.NotEqual(t, original, got.ID)
		assert.Equal(t, "corr-"+original, got.CorrelationID)
		assert.Equal(t, []byte(`{"id":"`+original+`"}`), got.Body)
		assert.Equal(t, model.ChannelEmail, got.Attributes[bus.AttrChannel])
		assert.Equal(t, "tenant-a", got.Attributes[bus.AttrTenant])
	}
}

func TestManager_Replay_ReceiveError(t *testing.T) {
	b := newDeadLetteredBus(t, "m1")
	m := NewManager(b)

	replayed, err := m.Replay(context.Background(), "no-such-sub", 10)
	assert.Error(t, err)
	assert.Zero(t, replayed)
}

func TestManager_Replay_PartialFailureReleasesRemainder(t *testing.T) {
	b := newDeadLetteredBus(t, "m1", "m2", "m3")
	b.failAfter = 1
	m := NewManager(b)

	replayed, err := m.Replay(context.Background(), testSubscription, 10)
	assert.Error(t, err)
	assert.Equal(t, 1, replayed)

	// m1 was replayed; m2 and m3 must be back on the dead-letter sub-queue.
	remaining := m.Peek(context.Background(), testSubscription, 10)
	require.Len(t, remaining, 2)
	assert.ElementsMatch(t,
		[]string{"m2", "m3"},
		[]string{remaining[0].ID, remaining[1].ID},
	)
}
