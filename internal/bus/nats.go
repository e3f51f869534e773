package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sikaguard/sikaguard/internal/domain"
)

// NATSBus is the Pro tier event bus. Messages cross the wire as a
// JSON-encoded domain.Message on subjects of the form
// sikaguard.<tenant>.<topic>.
type NATSBus struct {
	mu     sync.Mutex
	conn   *nats.Conn
	subs   map[string]*natsSubscription
	config domain.EventBusConfig
}

type natsSubscription struct {
	id    string
	topic string
	inner *nats.Subscription
	bus   *NATSBus
}

// NewNATSBus connects to NATS, retrying up to the configured reconnect
// limit before giving up.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}

	conn, err := dialNATS(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
	)

	return &NATSBus{
		conn:   conn,
		subs:   make(map[string]*natsSubscription),
		config: cfg,
	}, nil
}

func dialNATS(cfg domain.EventBusConfig) (*nats.Conn, error) {
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		// Buffer outbound publishes while the server is away.
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			slog.Error("NATS error", "error", err, "subject", sub.Subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err := nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, lastErr)
}

func envelope(tenantID, topic string, payload []byte) ([]byte, error) {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// Publish sends a message to the tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	data, err := envelope(tenantID, topic, payload)
	if err != nil {
		return err
	}
	return b.conn.Publish(natsSubject(tenantID, topic), data)
}

// Subscribe registers a handler for the tenant's subject. Undecodable
// messages and handler failures are logged, not fatal.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	inner, err := b.conn.Subscribe(natsSubject(tenantID, topic), func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("failed to unmarshal NATS message", "subject", m.Subject, "error", err)
			return
		}
		if err := handler(ctx, &msg); err != nil {
			slog.Error("handler error", "subject", m.Subject, "message_id", msg.ID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &natsSubscription{
		id:    uuid.New().String(),
		topic: topic,
		inner: inner,
		bus:   b,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub, nil
}

// Request sends a message and waits for a reply, honoring the context
// deadline when one is set and 30 seconds otherwise.
func (b *NATSBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	data, err := envelope(tenantID, topic, payload)
	if err != nil {
		return nil, err
	}

	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	reply, err := b.conn.Request(natsSubject(tenantID, topic), data, timeout)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var replyMsg domain.Message
	if err := json.Unmarshal(reply.Data, &replyMsg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	return replyMsg.Payload, nil
}

// Ping checks NATS connectivity.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close unsubscribes everything and drops the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		_ = sub.inner.Unsubscribe()
	}
	b.subs = make(map[string]*natsSubscription)

	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

func natsSubject(tenantID, topic string) string {
	return "sikaguard." + tenantID + "." + topic
}

// Unsubscribe removes the subscription from NATS and from the bus.
func (s *natsSubscription) Unsubscribe() error {
	err := s.inner.Unsubscribe()

	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	return err
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
