// Package dispatchsvc classifies captured packets by priority class,
// encodes them once and republishes the wire bytes on per-class fan-out
// topics consumed by the connection lanes.
package dispatchsvc

import (
	"context"

	"github.com/kvmlink/kvmlink/pkg/bus"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"go.uber.org/zap"
)

// Topic identifies one fan-out channel.
type Topic uint8

const (
	TopicMouse Topic = iota
	TopicKeyboard
	TopicMisc
	// TopicAll carries every frame in dispatch order for the legacy
	// single-stream listener.
	TopicAll
)

func TopicForClass(c protocol.Class) Topic {
	switch c {
	case protocol.ClassMouse:
		return TopicMouse
	case protocol.ClassKeyboard:
		return TopicKeyboard
	default:
		return TopicMisc
	}
}

const (
	ingressCapacity  = 128
	mouseCapacity    = 120
	keyboardCapacity = 30
	miscCapacity     = 30
)

// Service drains the bounded ingress channel and fans encoded frames out.
// Publication downstream is non-blocking: a slow lane loses its own oldest
// frames and never throttles capture or sibling lanes.
type Service struct {
	log     *zap.Logger
	fanout  *bus.Fanout[Topic, []byte]
	ingress chan protocol.Packet
	ready   chan struct{}
}

func New(log *zap.Logger) *Service {
	return &Service{
		log: log,
		fanout: bus.NewFanout[Topic, []byte](log,
			bus.WithCapacity(TopicMouse, mouseCapacity),
			bus.WithCapacity(TopicKeyboard, keyboardCapacity),
			bus.WithCapacity(TopicMisc, miscCapacity),
			bus.WithCapacity(TopicAll, mouseCapacity),
		),
		ingress: make(chan protocol.Packet, ingressCapacity),
		ready:   make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Enqueue hands a packet to the dispatcher. It blocks only while the
// ingress buffer is full, pacing the producer against the dispatch loop.
func (s *Service) Enqueue(ctx context.Context, pkt protocol.Packet) {
	select {
	case <-ctx.Done():
	case s.ingress <- pkt:
	}
}

// Subscribe opens a context-scoped subscription to one topic.
func (s *Service) Subscribe(ctx context.Context, topic Topic) <-chan []byte {
	return s.fanout.Subscribe(ctx, topic)
}

// Dropped reports frames discarded because of slow subscribers.
func (s *Service) Dropped() uint64 {
	return s.fanout.Dropped()
}

func (s *Service) Start(ctx context.Context) error {
	close(s.ready)
	s.log.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt := <-s.ingress:
			s.dispatch(pkt)
		}
	}
}

func (s *Service) dispatch(pkt protocol.Packet) {
	if !pkt.Event.HighFreq() {
		s.log.Debug("Dispatching event",
			zap.Uint64("id", pkt.ID),
			zap.String("class", pkt.Event.Class().String()))
	}
	frame := protocol.Encode(pkt)
	s.fanout.Publish(TopicForClass(pkt.Event.Class()), frame)
	s.fanout.Publish(TopicAll, frame)
}
