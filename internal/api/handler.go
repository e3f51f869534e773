package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/risk"
	"github.com/sikaguard/sikaguard/internal/rules"
)

// analyzeRateLimit is the per-user cap on analyze calls per minute.
const analyzeRateLimit = 120

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	analyzer *risk.Analyzer
	engine   *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, analyzer *risk.Analyzer, engine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		analyzer: analyzer,
		engine:   engine,
		version:  version,
	}
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	Transactions []*domain.Transaction  `json:"transactions"`
	Analyses     []*domain.RiskAnalysis `json:"analyses"`
	Rejected     bool                   `json:"rejected"`
	Metadata     struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze requests: splits the raw SMS, extracts
// each transaction, scores them, and persists the results.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}

	// Per-user metering
	if h.cache != nil {
		count, err := h.cache.IncrementCounter(ctx, tenantID, "analyze:"+req.UserID, time.Minute)
		if err != nil {
			slog.Warn("analyze counter unavailable", "error", err)
		} else if count > analyzeRateLimit {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "analyze rate limit exceeded",
			})
			return
		}
	}

	result := h.analyzer.AnalyzeMessage(ctx, tenantID, &req, traceID)

	if result.Rejected {
		resp := AnalyzeResponse{Rejected: true}
		resp.Metadata.TraceID = traceID
		resp.Metadata.TotalMs = time.Since(start).Milliseconds()
		resp.Metadata.Version = h.version
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	// Persist and raise alerts. Persistence failures are logged, the
	// caller still gets the scored result.
	for i, tx := range result.Transactions {
		analysis := result.Analyses[i]

		if h.repo != nil {
			if err := h.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
				slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
			}
			if err := h.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
				slog.Error("failed to save analysis", "analysis_id", analysis.ID, "error", err)
			}
		}

		if analysis.ShouldAlert {
			h.raiseAlert(r, tenantID, tx, analysis)
		}

		if h.bus != nil {
			payload, _ := json.Marshal(analysis)
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
				slog.Warn("failed to publish analysis event", "analysis_id", analysis.ID, "error", err)
			}
		}
	}

	resp := AnalyzeResponse{
		Transactions: result.Transactions,
		Analyses:     result.Analyses,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) raiseAlert(r *http.Request, tenantID string, tx *domain.Transaction, analysis *domain.RiskAnalysis) {
	ctx := r.Context()

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

	if h.repo != nil {
		if err := h.repo.SaveAlert(ctx, tenantID, alert); err != nil {
			slog.Error("failed to save alert", "alert_id", alert.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(alert)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAlertRaised, payload); err != nil {
			slog.Warn("failed to publish alert event", "alert_id", alert.ID, "error", err)
		}
	}

	slog.Info("alert raised",
		"tenant_id", tenantID,
		"tx_id", tx.ID,
		"level", analysis.Level,
		"score", analysis.TotalScore,
	)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAnalysis retrieves an analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetAuditTrail retrieves the per-layer audit trail for a transaction.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entries, err := h.repo.ListAuditEntries(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to list audit entries", "tx_id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load audit trail",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"txId":    txID,
		"entries": entries,
		"count":   len(entries),
	})
}

// ListAlerts retrieves a user's alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := r.URL.Query().Get("userId")

	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId query parameter is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlertsByUser(ctx, tenantID, userID, 50)
	if err != nil {
		slog.Error("failed to list alerts", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// CreateBlacklistRequest is the request body for POST /blacklist.
type CreateBlacklistRequest struct {
	Identity string `json:"identity"`
	Reason   string `json:"reason,omitempty"`
}

// CreateBlacklistEntry adds a counterpart identity to the blacklist.
func (h *Handler) CreateBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateBlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Identity == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "identity is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entry := &domain.BlacklistEntry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Identity:  req.Identity,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveBlacklistEntry(ctx, tenantID, entry); err != nil {
		slog.Error("failed to save blacklist entry", "identity", req.Identity, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save blacklist entry",
		})
		return
	}

	slog.Info("blacklist entry created", "tenant_id", tenantID, "identity", req.Identity)
	writeJSON(w, http.StatusCreated, entry)
}

// ListBlacklist retrieves the tenant's blacklist.
func (h *Handler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entries, err := h.repo.ListBlacklistEntries(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list blacklist", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load blacklist",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// DeleteBlacklistEntry removes a blacklist entry.
func (h *Handler) DeleteBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "blacklist entry id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteBlacklistEntry(ctx, tenantID, id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "blacklist entry not found",
		})
		return
	}

	slog.Info("blacklist entry deleted", "tenant_id", tenantID, "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "blacklist entry deleted",
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Penalty     int    `json:"penalty"`
	Factor      string `json:"factor"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Penalty < 0 || req.Penalty > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "penalty must be between 0 and 100",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Penalty:     req.Penalty,
		Factor:      req.Factor,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
