// Package worker provides async SMS processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/risk"
)

// Worker consumes raw SMS messages from the EventBus and runs them
// through the analysis pipeline.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	analyzer *risk.Analyzer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, analyzer *risk.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicSMSReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicSMSReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processMessage(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicSMSReceived,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processMessage(ctx, msg.TenantID, msg)
}

// SMSMessage is the message payload for async SMS processing.
type SMSMessage struct {
	TenantID   string     `json:"tenantId"`
	TraceID    string     `json:"traceId"`
	UserID     string     `json:"userId"`
	Message    string     `json:"message"`
	Sender     string     `json:"sender,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}

// processMessage runs one raw SMS through the full pipeline.
func (w *Worker) processMessage(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var smsMsg SMSMessage
	if err := json.Unmarshal(msg.Payload, &smsMsg); err != nil {
		slog.Error("failed to parse sms message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if smsMsg.TenantID != "" {
		tenantID = smsMsg.TenantID
	}

	traceID := smsMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing sms",
		"tenant_id", tenantID,
		"user_id", smsMsg.UserID,
		"trace_id", traceID,
	)

	req := &domain.AnalyzeRequest{
		UserID:     smsMsg.UserID,
		Message:    smsMsg.Message,
		Sender:     smsMsg.Sender,
		ReceivedAt: smsMsg.ReceivedAt,
	}

	result := w.analyzer.AnalyzeMessage(ctx, tenantID, req, traceID)

	if result.Rejected {
		slog.Info("sms rejected, no transactions extracted",
			"tenant_id", tenantID,
			"user_id", smsMsg.UserID,
			"trace_id", traceID,
		)
		return nil
	}

	for i, tx := range result.Transactions {
		analysis := result.Analyses[i]

		if w.repo != nil {
			if err := w.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
				slog.Error("failed to save transaction",
					"tx_id", tx.ID,
					"error", err,
				)
			}
			if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
				slog.Error("failed to save analysis",
					"analysis_id", analysis.ID,
					"error", err,
				)
			}
		}

		resultPayload, _ := json.Marshal(analysis)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
			slog.Error("failed to publish analysis",
				"tx_id", tx.ID,
				"error", err,
			)
		}

		if analysis.ShouldAlert {
			alert := &domain.Alert{
				ID:         uuid.New().String(),
				TenantID:   tenantID,
				TxID:       tx.ID,
				AnalysisID: analysis.ID,
				UserID:     tx.UserID,
				Level:      analysis.Level,
				Score:      analysis.TotalScore,
				Factors:    analysis.Factors,
				CreatedAt:  time.Now().UTC(),
			}

			if w.repo != nil {
				if err := w.repo.SaveAlert(ctx, tenantID, alert); err != nil {
					slog.Error("failed to save alert",
						"alert_id", alert.ID,
						"error", err,
					)
				}
			}

			alertPayload, _ := json.Marshal(alert)
			if err := w.bus.Publish(ctx, tenantID, domain.TopicAlertRaised, alertPayload); err != nil {
				slog.Error("failed to publish alert",
					"tx_id", tx.ID,
					"error", err,
				)
			}
		}

		slog.Info("sms transaction processed",
			"tx_id", tx.ID,
			"tenant_id", tenantID,
			"level", analysis.Level,
			"score", analysis.TotalScore,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
