package risk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/sms"
)

// EngineVersion is stamped into analysis metadata.
const EngineVersion = "sikaguard-1.0"

// ProfileGetter returns a user's behavior profile.
type ProfileGetter func(ctx context.Context, tenantID, userID string) (*domain.BehaviorProfile, error)

// VelocityCounter returns the user's transaction counts in trailing
// windows ending at the given time, excluding the transaction under
// evaluation.
type VelocityCounter func(ctx context.Context, tenantID, userID string, at time.Time, excludeTxID string) (WindowCounts, error)

// BlacklistChecker reports whether a counterpart identity is blocked.
type BlacklistChecker func(ctx context.Context, tenantID, identity string) (bool, error)

// RuleEvaluator evaluates supplemental rules against a transaction.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, tx *domain.ParsedTransaction) []domain.RuleHit
}

// Analyzer runs the full extraction and scoring pipeline. It holds no
// state across calls; every analysis is a pure function of the message
// plus the two collaborator reads.
type Analyzer struct {
	profiles  ProfileGetter
	velocity  VelocityCounter
	blacklist BlacklistChecker
	rules     RuleEvaluator
	audit     *Recorder
}

// NewAnalyzer creates an analyzer. Collaborator funcs and the rule
// evaluator may be nil; the corresponding layers then contribute zero.
func NewAnalyzer(profiles ProfileGetter, velocity VelocityCounter, blacklist BlacklistChecker, rules RuleEvaluator, audit *Recorder) *Analyzer {
	return &Analyzer{
		profiles:  profiles,
		velocity:  velocity,
		blacklist: blacklist,
		rules:     rules,
		audit:     audit,
	}
}

// MessageResult is the outcome of analyzing one raw SMS message.
type MessageResult struct {
	Transactions []*domain.Transaction  `json:"transactions"`
	Analyses     []*domain.RiskAnalysis `json:"analyses"`

	// Rejected is true when no segment yielded a transaction.
	Rejected bool `json:"rejected"`
}

// AnalyzeMessage splits a raw message, extracts each segment, and
// scores every resulting transaction. Transactions within a message
// are independent and are evaluated in parallel.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, tenantID string, req *domain.AnalyzeRequest, traceID string) *MessageResult {
	parseStart := time.Now()

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}

	segments := sms.Split(req.Message)

	var txs []*domain.Transaction
	for _, seg := range segments {
		parsed, ok := sms.Extract(seg)
		if !ok {
			slog.Debug("segment dropped",
				"tenant_id", tenantID,
				"offset", seg.Offset,
			)
			continue
		}
		txs = append(txs, &domain.Transaction{
			ID:                uuid.New().String(),
			TenantID:          tenantID,
			UserID:            req.UserID,
			ParsedTransaction: *parsed,
			ReceivedAt:        receivedAt,
			CreatedAt:         time.Now().UTC(),
		})
	}

	parseMs := time.Since(parseStart).Milliseconds()

	if len(txs) == 0 {
		return &MessageResult{Rejected: true}
	}

	analyses := make([]*domain.RiskAnalysis, len(txs))
	var wg sync.WaitGroup
	for i, tx := range txs {
		wg.Add(1)
		go func(idx int, tx *domain.Transaction) {
			defer wg.Done()
			analyses[idx] = a.AnalyzeTransaction(ctx, tenantID, tx, traceID)
			analyses[idx].Metadata.ParseMs = parseMs
		}(i, tx)
	}
	wg.Wait()

	return &MessageResult{Transactions: txs, Analyses: analyses}
}

// AnalyzeTransaction runs the seven-layer pipeline for one transaction.
// The two collaborator reads (behavior profile, velocity counts) and
// the blacklist lookup are issued concurrently with the pure layers;
// a failed read degrades its layer to zero rather than failing the
// analysis.
func (a *Analyzer) AnalyzeTransaction(ctx context.Context, tenantID string, tx *domain.Transaction, traceID string) *domain.RiskAnalysis {
	start := time.Now()

	var in LayerInputs
	var extractionDetail domain.ExtractionDetail
	in.Extraction, extractionDetail = summarizeExtraction(&tx.ParsedTransaction)

	var validationDetail domain.ValidationDetail
	in.Validation, validationDetail = Validate(&tx.ParsedTransaction)

	// Collaborator reads, issued concurrently with the pure layers.
	var (
		wg          sync.WaitGroup
		profile     *domain.BehaviorProfile
		profileErr  error
		counts      WindowCounts
		countsErr   error
		blacklisted bool
	)

	if a.profiles != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, profileErr = a.profiles(ctx, tenantID, tx.UserID)
		}()
	}
	if a.velocity != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts, countsErr = a.velocity(ctx, tenantID, tx.UserID, tx.EffectiveTime(), tx.ID)
		}()
	}
	if a.blacklist != nil {
		if identity := tx.CounterpartIdentity(); identity != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hit, err := a.blacklist(ctx, tenantID, identity)
				if err != nil {
					slog.Warn("blacklist lookup failed, treating counterpart as clean",
						"tenant_id", tenantID,
						"tx_id", tx.ID,
						"error", err,
					)
					return
				}
				blacklisted = hit
			}()
		}
	}

	var patternDetail domain.PatternDetail
	in.Pattern, patternDetail = AnalyzePatterns(tx.RawText)

	var amountDetail domain.AmountDetail
	in.Amount, amountDetail = ScoreAmount(&tx.ParsedTransaction)

	var temporalDetail domain.TemporalDetail
	in.Temporal, temporalDetail = ScoreTemporal(&tx.ParsedTransaction)

	wg.Wait()

	if profileErr != nil {
		// Degraded read, not "no history yet": called out separately
		// so operators can tell collaborator outages from new users.
		slog.Warn("behavior profile unavailable, scoring without it",
			"tenant_id", tenantID,
			"tx_id", tx.ID,
			"error", profileErr,
		)
		profile = nil
	}
	var behaviorDetail domain.BehaviorDetail
	in.Behavior, behaviorDetail = AnalyzeBehavior(&tx.ParsedTransaction, profile, profileErr != nil)

	if countsErr != nil {
		slog.Warn("transaction history unavailable, velocity degraded to zero",
			"tenant_id", tenantID,
			"tx_id", tx.ID,
			"error", countsErr,
		)
		counts = WindowCounts{}
	}
	var velocityDetail domain.VelocityDetail
	in.Velocity, velocityDetail = ScoreVelocity(counts, countsErr != nil)

	in.Blacklisted = blacklisted
	if a.rules != nil {
		in.RuleHits = a.rules.Evaluate(ctx, &tx.ParsedTransaction)
	}

	total, level, factors := Aggregate(&tx.ParsedTransaction, in)

	scoreMs := time.Since(start).Milliseconds()

	analysis := &domain.RiskAnalysis{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		TxID:               tx.ID,
		UserID:             tx.UserID,
		TotalScore:         total,
		Level:              level,
		ShouldAlert:        level == domain.RiskHigh || level == domain.RiskCritical,
		Factors:            factors,
		RecommendedActions: domain.RecommendedActions(level),
		LayerResults:       in.Layers(),
		Timestamp:          time.Now().UTC(),
		Metadata: domain.AnalysisMetadata{
			TraceID:       traceID,
			ScoreMs:       scoreMs,
			TotalMs:       scoreMs,
			LayersRun:     len(in.Layers()),
			EngineVersion: EngineVersion,
		},
	}

	a.audit.Record(ctx, tenantID, buildAuditEntries(tx, &in, auditDetails{
		extraction: extractionDetail,
		validation: validationDetail,
		pattern:    patternDetail,
		behavior:   behaviorDetail,
		velocity:   velocityDetail,
		amount:     amountDetail,
		temporal:   temporalDetail,
	}))

	return analysis
}

// summarizeExtraction builds the Layer 1 result from parse state.
func summarizeExtraction(tx *domain.ParsedTransaction) (domain.LayerResult, domain.ExtractionDetail) {
	detail := domain.ExtractionDetail{
		Provider:    tx.Provider,
		Type:        tx.Type,
		ParseErrors: tx.ParseErrors,
	}

	if tx.Amount != nil {
		detail.FieldsFound = append(detail.FieldsFound, "amount")
	}
	if tx.CounterpartIdentity() != "" {
		detail.FieldsFound = append(detail.FieldsFound, "counterpart")
	}
	if tx.Balance != nil {
		detail.FieldsFound = append(detail.FieldsFound, "balance")
	}
	if tx.Reference != "" {
		detail.FieldsFound = append(detail.FieldsFound, "reference")
	}
	if tx.Date != "" || tx.Time != "" {
		detail.FieldsFound = append(detail.FieldsFound, "timestamp")
	}

	result := domain.LayerResult{
		Layer:  domain.LayerExtraction,
		Name:   domain.LayerName(domain.LayerExtraction),
		Status: domain.LayerStatusPass,
	}
	if len(tx.ParseErrors) > 0 {
		result.Status = domain.LayerStatusFail
		result.Factors = []string{"message could not be fully parsed"}
	}

	return result, detail
}

type auditDetails struct {
	extraction domain.ExtractionDetail
	validation domain.ValidationDetail
	pattern    domain.PatternDetail
	behavior   domain.BehaviorDetail
	velocity   domain.VelocityDetail
	amount     domain.AmountDetail
	temporal   domain.TemporalDetail
}

func buildAuditEntries(tx *domain.Transaction, in *LayerInputs, details auditDetails) []*domain.AuditEntry {
	now := time.Now().UTC()

	layers := in.Layers()
	detailFor := []domain.AuditDetail{
		details.extraction,
		details.validation,
		details.pattern,
		details.behavior,
		details.velocity,
		details.amount,
		details.temporal,
	}

	entries := make([]*domain.AuditEntry, len(layers))
	for i, lr := range layers {
		entries[i] = &domain.AuditEntry{
			ID:        uuid.New().String(),
			TenantID:  tx.TenantID,
			TxID:      tx.ID,
			Layer:     lr.Layer,
			LayerName: lr.Name,
			Status:    lr.Status,
			Score:     lr.Score,
			Timestamp: now,
			Detail:    detailFor[i],
		}
	}
	return entries
}
