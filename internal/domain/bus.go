package domain

import "context"

// EventBus carries messages between the API, the async workers, and
// anything else listening for pipeline events. The Community tier runs
// it over Go channels; Pro runs it over NATS. Every call takes a
// tenantID so one carrier's traffic never reaches another's handlers.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. The returned
	// Subscription detaches the handler when unsubscribed.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a single reply.
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every bus implementation delivers.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active topic registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus implementation.
type EventBusConfig struct {
	// Type is "channel" (Community) or "nats" (Pro).
	Type string

	// ChannelBufferSize is the per-subscriber inbox depth for the
	// channel bus.
	ChannelBufferSize int

	// NATS connection settings, Pro tier only.
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics published by the analysis pipeline.
const (
	TopicSMSReceived       = "sms.received"
	TopicAnalysisCompleted = "analysis.completed"
	TopicAlertRaised       = "alert.raised"
	TopicAuditEntry        = "audit.entry"
)
