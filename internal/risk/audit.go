package risk

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Recorder writes per-layer audit entries and publishes them on the
// event bus. Audit writes are best-effort: a failure is logged and the
// analysis proceeds, it never blocks or fails scoring.
type Recorder struct {
	repo domain.Repository
	bus  domain.EventBus
}

// NewRecorder creates a recorder. Either collaborator may be nil.
func NewRecorder(repo domain.Repository, bus domain.EventBus) *Recorder {
	return &Recorder{repo: repo, bus: bus}
}

// Record persists the entries and publishes each on the audit topic.
// Safe to call on a nil receiver.
func (r *Recorder) Record(ctx context.Context, tenantID string, entries []*domain.AuditEntry) {
	if r == nil || len(entries) == 0 {
		return
	}

	if r.repo != nil {
		if err := r.repo.SaveAuditEntries(ctx, tenantID, entries); err != nil {
			slog.Error("failed to persist audit entries",
				"tenant_id", tenantID,
				"tx_id", entries[0].TxID,
				"count", len(entries),
				"error", err,
			)
		}
	}

	if r.bus != nil {
		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				slog.Error("failed to marshal audit entry",
					"tenant_id", tenantID,
					"entry_id", entry.ID,
					"error", err,
				)
				continue
			}
			if err := r.bus.Publish(ctx, tenantID, domain.TopicAuditEntry, payload); err != nil {
				slog.Error("failed to publish audit entry",
					"tenant_id", tenantID,
					"entry_id", entry.ID,
					"error", err,
				)
			}
		}
	}
}
