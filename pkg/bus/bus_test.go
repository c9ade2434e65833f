package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout[string, int](zap.NewNop(), WithCapacity("a", 8))
	sub := f.Subscribe(ctx, "a")

	f.Publish("a", 1)
	f.Publish("a", 2)
	f.Publish("b", 99) // no subscriber, discarded

	assert.Equal(t, 1, <-sub)
	assert.Equal(t, 2, <-sub)
}

func TestDropOldestOnFullBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout[string, int](zap.NewNop(), WithCapacity("a", 2))
	sub := f.Subscribe(ctx, "a")

	for i := 1; i <= 5; i++ {
		f.Publish("a", i)
	}

	// Oldest messages were evicted; the buffer holds the most recent two.
	assert.Equal(t, 4, <-sub)
	assert.Equal(t, 5, <-sub)
	assert.Equal(t, uint64(3), f.Dropped())
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout[string, int](zap.NewNop(), WithCapacity("fast", 16), WithCapacity("slow", 1))

	// The slow subscriber never drains its single-slot buffer.
	f.Subscribe(ctx, "slow")
	fast := f.Subscribe(ctx, "fast")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f.Publish("slow", i)
			f.Publish("fast", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a stalled subscriber")
	}

	// Every fast message within buffer capacity is intact and in order.
	for i := 100 - cap(fast); i < 100; i++ {
		assert.Equal(t, i, <-fast)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := NewFanout[string, int](zap.NewNop())
	f.Subscribe(ctx, "a")
	cancel()

	require.Eventually(t, func() bool {
		f.Publish("a", 1)
		return f.Dropped() == 0
	}, time.Second, 10*time.Millisecond)
}
