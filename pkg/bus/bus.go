// Package bus provides a keyed fan-out from publishers to any number of
// subscribers. Delivery is lossy on backpressure: a publisher never blocks,
// and a subscriber that stops draining its buffer loses its own oldest
// messages without affecting other subscribers or other keys.
package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Publisher publishes messages under a fixed key.
type Publisher[M any] func(msg M)

// Subscriber opens a context-scoped subscription.
type Subscriber[M any] func(ctx context.Context) <-chan M

const defaultCapacity = 32

// Fanout is a lossy one-to-many bus keyed by K. Each subscriber owns a
// bounded buffer whose capacity is configured per key.
type Fanout[K comparable, M any] struct {
	log        *zap.Logger
	capacities map[K]int
	defaultCap int

	subs    *xsync.MapOf[K, []chan M]
	dropped *atomic.Uint64
}

type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	capacities map[K]int
	defaultCap int
}

// WithCapacity sets the per-subscriber buffer capacity for one key.
func WithCapacity[K comparable](key K, n int) Option[K] {
	return func(o *options[K]) {
		o.capacities[key] = n
	}
}

// WithDefaultCapacity sets the buffer capacity for keys without an explicit
// one.
func WithDefaultCapacity[K comparable](n int) Option[K] {
	return func(o *options[K]) {
		o.defaultCap = n
	}
}

func NewFanout[K comparable, M any](log *zap.Logger, opts ...Option[K]) *Fanout[K, M] {
	o := options[K]{
		capacities: make(map[K]int),
		defaultCap: defaultCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Fanout[K, M]{
		log:        log,
		capacities: o.capacities,
		defaultCap: o.defaultCap,
		subs:       xsync.NewMapOf[K, []chan M](),
		dropped:    atomic.NewUint64(0),
	}
}

func (f *Fanout[K, M]) capacity(key K) int {
	if n, ok := f.capacities[key]; ok {
		return n
	}
	return f.defaultCap
}

// Publish delivers msg to every current subscriber of key. A subscriber
// whose buffer is full has its oldest buffered message replaced by msg;
// Publish itself never blocks.
func (f *Fanout[K, M]) Publish(key K, msg M) {
	chans, ok := f.subs.Load(key)
	if !ok {
		return
	}
	for _, ch := range chans {
		select {
		case ch <- msg:
			continue
		default:
		}
		// Buffer full: evict the oldest entry and retry once. The retry may
		// still lose the race against the draining subscriber, in which
		// case the buffer has room for the next publish anyway.
		select {
		case <-ch:
			f.dropped.Inc()
		default:
		}
		select {
		case ch <- msg:
		default:
			f.dropped.Inc()
		}
	}
}

// Subscribe opens a subscription for key that lives until ctx is cancelled.
// The returned channel is never closed (a concurrent Publish may still hold
// a reference to it); consumers select on ctx alongside the channel.
func (f *Fanout[K, M]) Subscribe(ctx context.Context, key K) <-chan M {
	ch := make(chan M, f.capacity(key))
	f.subs.Compute(key, func(chans []chan M, _ bool) ([]chan M, bool) {
		next := make([]chan M, 0, len(chans)+1)
		next = append(next, chans...)
		return append(next, ch), false
	})
	go func() {
		<-ctx.Done()
		f.subs.Compute(key, func(chans []chan M, _ bool) ([]chan M, bool) {
			next := make([]chan M, 0, len(chans))
			for _, c := range chans {
				if c != ch {
					next = append(next, c)
				}
			}
			return next, len(next) == 0
		})
	}()
	return ch
}

// CreatePublisher binds Publish to a fixed key.
func (f *Fanout[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(msg M) {
		f.Publish(key, msg)
	}
}

// CreateSubscriber binds Subscribe to a fixed key.
func (f *Fanout[K, M]) CreateSubscriber(key K) Subscriber[M] {
	return func(ctx context.Context) <-chan M {
		return f.Subscribe(ctx, key)
	}
}

// Dropped reports how many messages have been discarded due to slow
// subscribers since the bus was created.
func (f *Fanout[K, M]) Dropped() uint64 {
	return f.dropped.Load()
}
