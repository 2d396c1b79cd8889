package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/logging"
)

// DefaultTTL is how long a message is retained in the store when neither the
// message nor the bus options specify a TTL.
const DefaultTTL = time.Hour

// DefaultPurgeInterval is how often expired messages are removed from the
// store.
const DefaultPurgeInterval = time.Minute

// Handler processes a delivered message. Returned errors are logged by the bus
// and never reach the publisher.
type Handler func(ctx context.Context, msg core.Message) error

// SubscriptionID identifies one subscription for Unsubscribe.
type SubscriptionID uint64

type state int32

const (
	stateUninitialized state = iota
	stateReady
	stateShutdown
)

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Options configures a MessageBus.
type Options struct {
	// Store retains published messages for Lookup. Nil disables persistence.
	Store MessageStore
	// DefaultTTL applies to messages without their own TTL.
	DefaultTTL time.Duration
	// PurgeInterval is the period of the background purge of expired
	// messages. Zero uses DefaultPurgeInterval, a negative value disables it.
	PurgeInterval time.Duration
	// Logger receives handler failures and store errors.
	Logger logging.Logger
	// Now overrides the clock used to stamp missing timestamps.
	Now func() time.Time
}

// MessageBus is a typed, in-process publish/subscribe bus.
type MessageBus struct {
	opts Options

	mu     sync.RWMutex
	state  state
	subs   map[core.MessageType][]subscription
	nextID atomic.Uint64

	stopPurge chan struct{}
	purgeDone chan struct{}
}

// New creates an uninitialized MessageBus.
func New(optFns ...func(o *Options)) *MessageBus {
	opts := Options{
		DefaultTTL:    DefaultTTL,
		PurgeInterval: DefaultPurgeInterval,
		Logger:        logging.NoOpLogger{},
		Now:           time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PurgeInterval == 0 {
		opts.PurgeInterval = DefaultPurgeInterval
	}
	return &MessageBus{
		opts: opts,
		subs: make(map[core.MessageType][]subscription),
	}
}

// Initialize moves the bus to the ready state. With a store attached it also
// starts the periodic purge of expired messages.
func (b *MessageBus) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateReady:
		return fmt.Errorf("bus: %w", core.ErrAlreadyInitialized)
	case stateShutdown:
		return fmt.Errorf("bus: shut down: %w", core.ErrNotReady)
	}
	b.state = stateReady
	if b.opts.Store != nil && b.opts.PurgeInterval > 0 {
		b.stopPurge = make(chan struct{})
		b.purgeDone = make(chan struct{})
		go b.purgeLoop(b.stopPurge, b.purgeDone)
	}
	b.opts.Logger.Debug("Message bus initialized")
	return nil
}

func (b *MessageBus) purgeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.opts.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := b.opts.Store.PurgeExpired(context.Background())
			if err != nil {
				b.opts.Logger.Warn("Message store purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				b.opts.Logger.Debug("Expired messages purged", "count", n)
			}
		}
	}
}

// Ready reports whether the bus accepts publishes and subscriptions.
func (b *MessageBus) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == stateReady
}

// Subscribe registers h for messages of type t.
func (b *MessageBus) Subscribe(t core.MessageType, h Handler) (SubscriptionID, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("bus: unknown message type %q: %w", t, core.ErrValidation)
	}
	if h == nil {
		return 0, fmt.Errorf("bus: nil handler: %w", core.ErrValidation)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateReady {
		return 0, fmt.Errorf("bus: subscribe: %w", core.ErrNotReady)
	}
	id := SubscriptionID(b.nextID.Add(1))
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})
	return id, nil
}

// Unsubscribe removes the subscription id from type t. Unknown ids are
// ignored.
func (b *MessageBus) Unsubscribe(t core.MessageType, id SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateReady {
		return fmt.Errorf("bus: unsubscribe: %w", core.ErrNotReady)
	}
	current := b.subs[t]
	kept := make([]subscription, 0, len(current))
	for _, s := range current {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, t)
	} else {
		b.subs[t] = kept
	}
	return nil
}

// SubscriberCount returns the number of handlers subscribed to t.
func (b *MessageBus) SubscriberCount(t core.MessageType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

// Publish delivers msg to every handler subscribed to its type and returns
// once all of them have finished. Missing id, timestamp and correlation id
// are filled in before delivery.
func (b *MessageBus) Publish(ctx context.Context, msg core.Message) error {
	if !msg.Type.Valid() {
		return fmt.Errorf("bus: unknown message type %q: %w", msg.Type, core.ErrValidation)
	}

	b.mu.RLock()
	if b.state != stateReady {
		b.mu.RUnlock()
		return fmt.Errorf("bus: publish: %w", core.ErrNotReady)
	}
	snapshot := make([]subscription, len(b.subs[msg.Type]))
	copy(snapshot, b.subs[msg.Type])
	b.mu.RUnlock()

	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Metadata.Timestamp.IsZero() {
		msg.Metadata.Timestamp = b.opts.Now().UTC()
	}
	if msg.Metadata.CorrelationID == "" {
		msg.Metadata.CorrelationID = core.NewID()
	}

	b.persist(ctx, msg)

	for _, s := range snapshot {
		b.dispatch(ctx, s, msg)
	}
	return nil
}

func (b *MessageBus) dispatch(ctx context.Context, s subscription, msg core.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.opts.Logger.Error("Message handler panicked",
				"message_id", msg.ID, "type", string(msg.Type), "subscription", uint64(s.id), "panic", fmt.Sprint(r))
		}
	}()
	if err := s.handler(ctx, msg); err != nil {
		b.opts.Logger.Warn("Message handler failed",
			"message_id", msg.ID, "type", string(msg.Type), "subscription", uint64(s.id), "error", err.Error())
	}
}

func (b *MessageBus) persist(ctx context.Context, msg core.Message) {
	if b.opts.Store == nil {
		return
	}
	ttl := msg.Metadata.TTL
	if ttl <= 0 {
		ttl = b.opts.DefaultTTL
	}
	if err := b.opts.Store.Save(ctx, msg, ttl); err != nil {
		b.opts.Logger.Warn("Message store save failed", "message_id", msg.ID, "error", err.Error())
	}
}

// Lookup returns a retained message by id. It fails with core.ErrNotFound when
// the bus has no store or the message is absent or expired.
func (b *MessageBus) Lookup(ctx context.Context, id string) (core.Message, error) {
	if b.opts.Store == nil {
		return core.Message{}, fmt.Errorf("bus: no message store: %w", core.ErrNotFound)
	}
	return b.opts.Store.Get(ctx, id)
}

// Shutdown drops all subscriptions and moves the bus to the shut down state.
// Calling it again is a no-op. The purge loop is stopped before an attached
// store is closed.
func (b *MessageBus) Shutdown(_ context.Context) error {
	b.mu.Lock()
	if b.state == stateShutdown {
		b.mu.Unlock()
		return nil
	}
	b.state = stateShutdown
	b.subs = make(map[core.MessageType][]subscription)
	stop, done := b.stopPurge, b.purgeDone
	b.stopPurge, b.purgeDone = nil, nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	b.opts.Logger.Debug("Message bus shut down")
	if b.opts.Store != nil {
		if err := b.opts.Store.Close(); err != nil {
			return fmt.Errorf("bus: close store: %w", err)
		}
	}
	return nil
}
