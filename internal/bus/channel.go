// Package bus provides event bus implementations for SikaGuard.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sikaguard/sikaguard/internal/domain"
)

const defaultBufferSize = 1000

// ChannelBus is the in-process event bus backing the Community tier.
// Every subscriber gets its own buffered channel and delivery
// goroutine; a subscriber that falls behind drops messages rather than
// stalling publishers.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	closed     bool

	// subscribers indexed by tenant:topic, then by subscription ID so
	// Unsubscribe can remove exactly one entry.
	subscribers map[string]map[string]*subscriber
}

type subscriber struct {
	id     string
	topic  string
	key    string
	inbox  chan *domain.Message
	cancel context.CancelFunc
	bus    *ChannelBus
}

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &ChannelBus{
		bufferSize:  bufferSize,
		subscribers: make(map[string]map[string]*subscriber),
	}
}

// Publish delivers a message to every subscriber of the tenant's
// topic. Delivery is best-effort: a full inbox drops the message for
// that subscriber only.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	targets := make([]*subscriber, 0, len(b.subscribers[topicKey(tenantID, topic)]))
	for _, s := range b.subscribers[topicKey(tenantID, topic)] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, s := range targets {
		select {
		case s.inbox <- msg:
		default:
			// subscriber backlogged, drop
		}
	}
	return nil
}

// Subscribe registers a handler for a tenant's topic and starts its
// delivery goroutine.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscriber{
		id:     uuid.New().String(),
		topic:  topic,
		key:    topicKey(tenantID, topic),
		inbox:  make(chan *domain.Message, b.bufferSize),
		cancel: cancel,
		bus:    b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("bus is closed")
	}
	if b.subscribers[s.key] == nil {
		b.subscribers[s.key] = make(map[string]*subscriber)
	}
	b.subscribers[s.key][s.id] = s
	b.mu.Unlock()

	go s.deliver(subCtx, handler)

	return s, nil
}

func (s *subscriber) deliver(ctx context.Context, handler domain.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			_ = handler(ctx, msg)
		}
	}
}

// Request publishes a message and waits for a single reply on a
// one-off reply topic. Times out after 30 seconds.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops all subscribers. Further Publish and Subscribe calls
// fail; closing twice is a no-op.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, s := range subs {
			s.cancel()
		}
	}
	b.subscribers = make(map[string]map[string]*subscriber)
	return nil
}

func topicKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Unsubscribe stops delivery and detaches the subscriber from the bus.
func (s *subscriber) Unsubscribe() error {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs, ok := s.bus.subscribers[s.key]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.subscribers, s.key)
		}
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *subscriber) Topic() string {
	return s.topic
}
