package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/hangar/pkg/domain/model"
)

const (
	// DefaultBuffer is the per-subscriber queue length
	DefaultBuffer = 64
	// DefaultSendTimeout bounds how long a terminal event waits for a full subscriber queue
	DefaultSendTimeout = 2 * time.Second
)

// Broker fans download events out to subscribers. A subscriber that cannot keep up loses
// progress events; a subscriber that does not take a terminal event within the send timeout
// is evicted.
type Broker struct {
	buffer      int
	sendTimeout time.Duration

	mu   sync.RWMutex
	subs map[string]*subscription
}

type subscription struct {
	ch      chan *model.DownloadEvent
	closed  chan struct{}
	evicted chan struct{}
	once    sync.Once
	evict   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.closed) })
}

// Option configures Broker
type Option func(*Broker)

// WithBuffer sets the per-subscriber queue length
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithSendTimeout sets how long a terminal event may wait on one subscriber
func WithSendTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.sendTimeout = d
		}
	}
}

// NewBroker creates an empty Broker
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		buffer:      DefaultBuffer,
		sendTimeout: DefaultSendTimeout,
		subs:        make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber. The returned cancel function must be called to release it.
func (b *Broker) Subscribe() (<-chan *model.DownloadEvent, <-chan struct{}, func()) {
	id := uuid.NewString()
	sub := &subscription{
		ch:      make(chan *model.DownloadEvent, b.buffer),
		closed:  make(chan struct{}),
		evicted: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.remove(id)
		sub.close()
	}
	return sub.ch, sub.evicted, cancel
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscribers returns the number of open subscriptions
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers event to every subscriber
func (b *Broker) Emit(ctx context.Context, event *model.DownloadEvent) {
	if event == nil {
		return
	}
	logger := ctxlog.From(ctx)

	b.mu.RLock()
	ids := make([]string, 0, len(b.subs))
	subs := make([]*subscription, 0, len(b.subs))
	for id, sub := range b.subs {
		ids = append(ids, id)
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for i, sub := range subs {
		if event.Kind == model.EventProgress {
			select {
			case sub.ch <- event:
			default:
				logger.Debug("Progress event dropped for slow subscriber", "id", event.DownloadID)
			}
			continue
		}

		timer := time.NewTimer(b.sendTimeout)
		select {
		case sub.ch <- event:
		case <-sub.closed:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			logger.Warn("Subscriber did not take terminal event, evicting",
				"id", event.DownloadID,
				"kind", event.Kind,
			)
			b.remove(ids[i])
			sub.evict.Do(func() { close(sub.evicted) })
			sub.close()
		}
		timer.Stop()
	}
}
