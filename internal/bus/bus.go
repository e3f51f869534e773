package bus

import (
	"fmt"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// New builds the event bus the deployment tier calls for: in-process
// channels for Community, NATS for Pro.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
