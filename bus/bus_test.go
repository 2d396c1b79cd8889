package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/core"
)

func readyBus(t *testing.T, optFns ...func(o *Options)) *MessageBus {
	t.Helper()
	b := New(optFns...)
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

type recorder struct {
	mu   sync.Mutex
	seen []core.Message
}

func (r *recorder) handle(_ context.Context, msg core.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	b := New()

	err := b.Publish(ctx, core.NewMessage(core.MessageTypeTaskRequest, "a", nil))
	assert.ErrorIs(t, err, core.ErrNotReady)
	_, err = b.Subscribe(core.MessageTypeTaskRequest, func(context.Context, core.Message) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotReady)

	require.NoError(t, b.Initialize(ctx))
	assert.True(t, b.Ready())
	assert.ErrorIs(t, b.Initialize(ctx), core.ErrAlreadyInitialized)

	require.NoError(t, b.Shutdown(ctx))
	require.NoError(t, b.Shutdown(ctx), "shutdown is idempotent")
	assert.ErrorIs(t, b.Initialize(ctx), core.ErrNotReady)
	assert.ErrorIs(t, b.Unsubscribe(core.MessageTypeTaskRequest, 1), core.ErrNotReady)
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := readyBus(t)
	assert.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeLearningUpdate, "a", "x")))
}

func TestPublish_UnknownType(t *testing.T) {
	b := readyBus(t)
	err := b.Publish(context.Background(), core.Message{Type: "bogus"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPublish_EachHandlerReceivesExactlyOneCopy(t *testing.T) {
	b := readyBus(t)
	r1, r2 := &recorder{}, &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskRequest, r1.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(core.MessageTypeTaskRequest, r2.handle)
	require.NoError(t, err)

	msg := core.NewMessage(core.MessageTypeTaskRequest, "sender", "work")
	require.NoError(t, b.Publish(context.Background(), msg))

	require.Equal(t, 1, r1.count())
	require.Equal(t, 1, r2.count())
	assert.Equal(t, msg.ID, r1.seen[0].ID)
	assert.Equal(t, msg.ID, r2.seen[0].ID)
}

func TestPublish_OnlyMatchingType(t *testing.T) {
	b := readyBus(t)
	r := &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskResponse, r.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeTaskRequest, "s", nil)))
	assert.Zero(t, r.count())
}

func TestUnsubscribe_OthersUnaffected(t *testing.T) {
	b := readyBus(t)
	r1, r2 := &recorder{}, &recorder{}
	id1, err := b.Subscribe(core.MessageTypeToolRequest, r1.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(core.MessageTypeToolRequest, r2.handle)
	require.NoError(t, err)

	require.NoError(t, b.Unsubscribe(core.MessageTypeToolRequest, id1))
	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeToolRequest, "s", nil)))

	assert.Zero(t, r1.count())
	assert.Equal(t, 1, r2.count())
	assert.Equal(t, 1, b.SubscriberCount(core.MessageTypeToolRequest))
}

func TestPublish_HandlerFailureIsolated(t *testing.T) {
	b := readyBus(t)
	var order []string
	_, err := b.Subscribe(core.MessageTypeSystemEvent, func(context.Context, core.Message) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	require.NoError(t, err)
	_, err = b.Subscribe(core.MessageTypeSystemEvent, func(context.Context, core.Message) error {
		order = append(order, "second")
		panic("kaboom")
	})
	require.NoError(t, err)
	_, err = b.Subscribe(core.MessageTypeSystemEvent, func(context.Context, core.Message) error {
		order = append(order, "third")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeSystemEvent, "s", nil)))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPublish_WaitsForHandlers(t *testing.T) {
	b := readyBus(t)
	done := false
	_, err := b.Subscribe(core.MessageTypeTaskRequest, func(context.Context, core.Message) error {
		time.Sleep(10 * time.Millisecond)
		done = true
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeTaskRequest, "s", nil)))
	assert.True(t, done)
}

func TestPublish_FillsMissingFields(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := readyBus(t, func(o *Options) { o.Now = func() time.Time { return fixed } })
	r := &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskRequest, r.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), core.Message{Type: core.MessageTypeTaskRequest}))
	require.Equal(t, 1, r.count())
	got := r.seen[0]
	assert.NotEmpty(t, got.ID)
	assert.NotEmpty(t, got.Metadata.CorrelationID)
	assert.Equal(t, fixed, got.Metadata.Timestamp)
}

func TestPublish_HandlerMaySubscribe(t *testing.T) {
	b := readyBus(t)
	r := &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskRequest, func(context.Context, core.Message) error {
		_, err := b.Subscribe(core.MessageTypeTaskRequest, r.handle)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeTaskRequest, "s", nil)))
	assert.Zero(t, r.count(), "subscribers added during dispatch see only later publishes")

	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeTaskRequest, "s", nil)))
	assert.Equal(t, 1, r.count())
}

func TestShutdown_DropsSubscriptions(t *testing.T) {
	b := readyBus(t)
	r := &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskRequest, r.handle)
	require.NoError(t, err)
	require.NoError(t, b.Shutdown(context.Background()))
	assert.Zero(t, b.SubscriberCount(core.MessageTypeTaskRequest))
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	b := readyBus(t, func(o *Options) { o.Store = NewInMemoryStore() })

	msg := core.NewMessage(core.MessageTypeTaskRequest, "s", "payload")
	require.NoError(t, b.Publish(ctx, msg))

	got, err := b.Lookup(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "payload", got.Payload)

	_, err = b.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLookup_NoStore(t *testing.T) {
	b := readyBus(t)
	_, err := b.Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

type failingStore struct{ InMemoryStore }

func (*failingStore) Save(context.Context, core.Message, time.Duration) error {
	return errors.New("disk full")
}

func TestPublish_StoreFailureDoesNotAffectDelivery(t *testing.T) {
	b := readyBus(t, func(o *Options) { o.Store = &failingStore{} })
	r := &recorder{}
	_, err := b.Subscribe(core.MessageTypeTaskRequest, r.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), core.NewMessage(core.MessageTypeTaskRequest, "s", nil)))
	assert.Equal(t, 1, r.count())
}

func TestPurgeLoop_RemovesExpiredMessages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	b := readyBus(t, func(o *Options) {
		o.Store = store
		o.PurgeInterval = 5 * time.Millisecond
	})
	defer b.Shutdown(ctx)

	for i := 0; i < 100; i++ {
		msg := core.NewMessage(core.MessageTypeSystemEvent, "s", i)
		msg.Metadata.TTL = time.Nanosecond
		require.NoError(t, b.Publish(ctx, msg))
	}

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPurgeLoop_KeepsLiveMessages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	b := readyBus(t, func(o *Options) {
		o.Store = store
		o.PurgeInterval = 5 * time.Millisecond
	})

	msg := core.NewMessage(core.MessageTypeTaskRequest, "s", "kept")
	require.NoError(t, b.Publish(ctx, msg))
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, store.Len())
	require.NoError(t, b.Shutdown(ctx))
	require.NoError(t, b.Shutdown(ctx))
}

func TestPurgeLoop_Disabled(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	b := readyBus(t, func(o *Options) {
		o.Store = store
		o.PurgeInterval = -1
	})
	defer b.Shutdown(ctx)

	msg := core.NewMessage(core.MessageTypeTaskRequest, "s", nil)
	msg.Metadata.TTL = time.Nanosecond
	require.NoError(t, b.Publish(ctx, msg))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, store.Len())
}
