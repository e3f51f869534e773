package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "sikaguard-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleTransaction(id, userID string, amount float64, receivedAt time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:     id,
		UserID: userID,
		ParsedTransaction: domain.ParsedTransaction{
			Provider:        domain.ProviderMTN,
			Type:            domain.TypeSent,
			Amount:          fptr(amount),
			CounterpartName: "Kwame Shop",
			Reference:       "9876543210123",
			RawText:         "Payment made for GHS 50.00 to Kwame Shop",
		},
		ReceivedAt: receivedAt,
		CreatedAt:  receivedAt,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := sampleTransaction("tx-001", "user-001", 50.00, now)
		tx.Fee = fptr(0.5)
		tx.ParseErrors = []string{"transaction timestamp incomplete"}

		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.Amount == nil || *retrieved.Amount != 50.00 {
			t.Errorf("expected amount 50.00, got %v", retrieved.Amount)
		}
		if retrieved.Fee == nil || *retrieved.Fee != 0.5 {
			t.Errorf("expected fee 0.5, got %v", retrieved.Fee)
		}
		if retrieved.Tax != nil {
			t.Errorf("expected nil tax, got %v", retrieved.Tax)
		}
		if len(retrieved.ParseErrors) != 1 {
			t.Errorf("expected parse errors round-tripped, got %v", retrieved.ParseErrors)
		}
	})

	t.Run("GetTransactionNotFound", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, tenantID, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "tenant-002", "tx-001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, "", sampleTransaction("tx-x", "u", 1, now)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetTransaction(ctx, "", "tx-001"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetTransactionsByUser(ctx, "", "u", now); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("GetTransactionsByUserWindow", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, tenantID, sampleTransaction("tx-win-1", "user-win", 10, now.Add(-30*time.Minute))); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
		if err := repo.SaveTransaction(ctx, tenantID, sampleTransaction("tx-win-2", "user-win", 20, now.Add(-2*time.Hour))); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
		if err := repo.SaveTransaction(ctx, tenantID, sampleTransaction("tx-win-3", "user-win", 30, now.Add(-48*time.Hour))); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		txs, err := repo.GetTransactionsByUser(ctx, tenantID, "user-win", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("GetTransactionsByUser failed: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("expected 2 transactions inside the window, got %d", len(txs))
		}
		if txs[0].ID != "tx-win-1" {
			t.Errorf("expected newest first, got %s", txs[0].ID)
		}
	})

	t.Run("EffectiveTimeAnchorsWindow", func(t *testing.T) {
		// Ingested long ago but the message says five minutes ago: the
		// extracted time decides window membership.
		at := now.Add(-5 * time.Minute)
		tx := sampleTransaction("tx-eff", "user-eff", 10, now.Add(-72*time.Hour))
		tx.Date = at.Format("2006-01-02")
		tx.Time = at.Format("15:04:05")

		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		txs, err := repo.GetTransactionsByUser(ctx, tenantID, "user-eff", now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("GetTransactionsByUser failed: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("expected the extracted timestamp to place it in the window, got %d", len(txs))
		}
	})

	t.Run("BehaviorProfile", func(t *testing.T) {
		for i, amount := range []float64{100, 300, 200} {
			tx := sampleTransaction(fmt.Sprintf("tx-bp-%d", i+1), "user-bp", amount, now)
			if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		profile, err := repo.GetBehaviorProfile(ctx, tenantID, "user-bp")
		if err != nil {
			t.Fatalf("GetBehaviorProfile failed: %v", err)
		}
		if profile.TransactionCount != 3 {
			t.Errorf("expected 3 transactions, got %d", profile.TransactionCount)
		}
		if profile.AverageAmount == nil || *profile.AverageAmount != 200 {
			t.Errorf("expected average 200, got %v", profile.AverageAmount)
		}
	})

	t.Run("BehaviorProfileThinHistory", func(t *testing.T) {
		// Below MinProfileTransactions the average is withheld so a
		// user's second transaction cannot trip the anomaly check.
		if err := repo.SaveTransaction(ctx, tenantID, sampleTransaction("tx-thin-1", "user-thin", 50, now)); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		profile, err := repo.GetBehaviorProfile(ctx, tenantID, "user-thin")
		if err != nil {
			t.Fatalf("GetBehaviorProfile failed: %v", err)
		}
		if profile.TransactionCount != 1 {
			t.Errorf("expected 1 transaction, got %d", profile.TransactionCount)
		}
		if profile.AverageAmount != nil {
			t.Errorf("expected nil average below %d transactions, got %v",
				domain.MinProfileTransactions, profile.AverageAmount)
		}
	})

	t.Run("BehaviorProfileNewUser", func(t *testing.T) {
		profile, err := repo.GetBehaviorProfile(ctx, tenantID, "user-new")
		if err != nil {
			t.Fatalf("GetBehaviorProfile failed: %v", err)
		}
		if profile.TransactionCount != 0 {
			t.Errorf("expected 0 transactions, got %d", profile.TransactionCount)
		}
		if profile.AverageAmount != nil {
			t.Errorf("expected nil average for a new user, got %v", profile.AverageAmount)
		}
	})

	t.Run("SaveAndGetAnalysis", func(t *testing.T) {
		analysis := &domain.RiskAnalysis{
			ID:                 "an-001",
			TxID:               "tx-001",
			UserID:             "user-001",
			TotalScore:         85,
			Level:              domain.RiskCritical,
			ShouldAlert:        true,
			Factors:            []string{"scam keywords detected (3)"},
			RecommendedActions: domain.RecommendedActions(domain.RiskCritical),
			LayerResults: []domain.LayerResult{
				{Layer: 3, Name: "pattern analysis", Status: domain.LayerStatusScored, Score: 30},
			},
			Timestamp: now,
			Metadata:  domain.AnalysisMetadata{TraceID: "trace-1", EngineVersion: "sikaguard-1.0"},
		}

		if err := repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}

		retrieved, err := repo.GetAnalysis(ctx, tenantID, "an-001")
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if retrieved.TotalScore != 85 || retrieved.Level != domain.RiskCritical {
			t.Errorf("expected score 85 CRITICAL, got %d %s", retrieved.TotalScore, retrieved.Level)
		}
		if !retrieved.ShouldAlert {
			t.Error("expected shouldAlert preserved")
		}
		if len(retrieved.LayerResults) != 1 || retrieved.LayerResults[0].Score != 30 {
			t.Errorf("expected layer results round-tripped, got %+v", retrieved.LayerResults)
		}
		if retrieved.Metadata.TraceID != "trace-1" {
			t.Errorf("expected metadata round-tripped, got %+v", retrieved.Metadata)
		}
	})

	t.Run("SaveAndListAlerts", func(t *testing.T) {
		for i, id := range []string{"al-1", "al-2"} {
			alert := &domain.Alert{
				ID:         id,
				TxID:       "tx-001",
				AnalysisID: "an-001",
				UserID:     "user-alerts",
				Level:      domain.RiskHigh,
				Score:      70,
				Factors:    []string{"late night transaction"},
				CreatedAt:  now.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.SaveAlert(ctx, tenantID, alert); err != nil {
				t.Fatalf("SaveAlert failed: %v", err)
			}
		}

		alerts, err := repo.ListAlertsByUser(ctx, tenantID, "user-alerts", 10)
		if err != nil {
			t.Fatalf("ListAlertsByUser failed: %v", err)
		}
		if len(alerts) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(alerts))
		}
		if alerts[0].ID != "al-2" {
			t.Errorf("expected newest first, got %s", alerts[0].ID)
		}
		if len(alerts[0].Factors) != 1 {
			t.Errorf("expected factors round-tripped, got %v", alerts[0].Factors)
		}
	})

	t.Run("AuditTrailRoundTrip", func(t *testing.T) {
		entries := []*domain.AuditEntry{
			{
				ID: "au-1", TxID: "tx-audit", Layer: 3, LayerName: "pattern analysis",
				Status: domain.LayerStatusScored, Score: 30, Timestamp: now,
				Detail: domain.PatternDetail{KeywordHits: 3, Matches: []string{"urgent", "verify", "click"}},
			},
			{
				ID: "au-2", TxID: "tx-audit", Layer: 5, LayerName: "velocity analysis",
				Status: domain.LayerStatusDegraded, Timestamp: now,
				Detail: domain.VelocityDetail{Degraded: true},
			},
		}

		if err := repo.SaveAuditEntries(ctx, tenantID, entries); err != nil {
			t.Fatalf("SaveAuditEntries failed: %v", err)
		}

		retrieved, err := repo.ListAuditEntries(ctx, tenantID, "tx-audit")
		if err != nil {
			t.Fatalf("ListAuditEntries failed: %v", err)
		}
		if len(retrieved) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(retrieved))
		}

		pattern, ok := retrieved[0].Detail.(domain.PatternDetail)
		if !ok {
			t.Fatalf("expected PatternDetail for layer 3, got %T", retrieved[0].Detail)
		}
		if pattern.KeywordHits != 3 || len(pattern.Matches) != 3 {
			t.Errorf("expected detail round-tripped, got %+v", pattern)
		}

		velocity, ok := retrieved[1].Detail.(domain.VelocityDetail)
		if !ok {
			t.Fatalf("expected VelocityDetail for layer 5, got %T", retrieved[1].Detail)
		}
		if !velocity.Degraded {
			t.Errorf("expected degraded flag preserved, got %+v", velocity)
		}
	})

	t.Run("Blacklist", func(t *testing.T) {
		entry := &domain.BlacklistEntry{
			ID:        "bl-1",
			Identity:  "Scam Merchant",
			Reason:    "reported by three users",
			CreatedAt: now,
		}
		if err := repo.SaveBlacklistEntry(ctx, tenantID, entry); err != nil {
			t.Fatalf("SaveBlacklistEntry failed: %v", err)
		}

		// Case-insensitive match.
		hit, err := repo.IsBlacklisted(ctx, tenantID, "SCAM MERCHANT")
		if err != nil {
			t.Fatalf("IsBlacklisted failed: %v", err)
		}
		if !hit {
			t.Error("expected case-insensitive blacklist hit")
		}

		hit, err = repo.IsBlacklisted(ctx, tenantID, "Honest Merchant")
		if err != nil {
			t.Fatalf("IsBlacklisted failed: %v", err)
		}
		if hit {
			t.Error("expected no hit for an unlisted identity")
		}

		// Other tenants never see the entry.
		hit, err = repo.IsBlacklisted(ctx, "tenant-002", "Scam Merchant")
		if err != nil {
			t.Fatalf("IsBlacklisted failed: %v", err)
		}
		if hit {
			t.Error("expected tenant isolation on the blacklist")
		}

		entries, err := repo.ListBlacklistEntries(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListBlacklistEntries failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}

		// Re-saving the same identity updates the reason in place.
		entry.Reason = "confirmed fraud"
		if err := repo.SaveBlacklistEntry(ctx, tenantID, entry); err != nil {
			t.Fatalf("SaveBlacklistEntry upsert failed: %v", err)
		}
		entries, err = repo.ListBlacklistEntries(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListBlacklistEntries failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Reason != "confirmed fraud" {
			t.Errorf("expected upsert, got %+v", entries)
		}

		if err := repo.DeleteBlacklistEntry(ctx, tenantID, "bl-1"); err != nil {
			t.Fatalf("DeleteBlacklistEntry failed: %v", err)
		}
		if err := repo.DeleteBlacklistEntry(ctx, tenantID, "bl-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("RuleConfigs", func(t *testing.T) {
		rules := []*domain.RuleConfig{
			{ID: "r-b", Name: "beta", Version: "1", Expression: `amount > 100.0`, Penalty: 10, Enabled: true},
			{ID: "r-a", Name: "alpha", Version: "1", Expression: `hour < 0`, Penalty: 5, Enabled: true},
			{ID: "r-off", Name: "off", Version: "1", Expression: `true`, Penalty: 1, Enabled: false},
		}
		for _, rule := range rules {
			if err := repo.SaveRuleConfig(ctx, tenantID, rule); err != nil {
				t.Fatalf("SaveRuleConfig failed: %v", err)
			}
		}

		configs, err := repo.ListRuleConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(configs) != 2 {
			t.Fatalf("expected 2 enabled rules, got %d", len(configs))
		}
		if configs[0].Name != "alpha" {
			t.Errorf("expected name ordering, got %s first", configs[0].Name)
		}

		// Same id and version: updates in place.
		rules[0].Penalty = 42
		if err := repo.SaveRuleConfig(ctx, tenantID, rules[0]); err != nil {
			t.Fatalf("SaveRuleConfig upsert failed: %v", err)
		}
		configs, err = repo.ListRuleConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(configs) != 2 {
			t.Fatalf("expected upsert not insert, got %d rules", len(configs))
		}
		for _, cfg := range configs {
			if cfg.ID == "r-b" && cfg.Penalty != 42 {
				t.Errorf("expected penalty updated, got %d", cfg.Penalty)
			}
		}
	})
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
