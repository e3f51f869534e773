//go:build integration
// +build integration

// Package integration provides end-to-end tests for the SikaGuard SMS
// fraud detection engine.
//
// These tests verify the COMPLETE analysis pipeline:
//
//	Raw SMS → Split → Extract → Seven Scoring Layers → Risk Level → Alerts
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. SMS: A raw mobile money notification (MTN MoMo, Telecel Cash, etc).
//    One SMS may carry several concatenated transaction notifications.
//
// 2. LAYER: One scoring stage. Seven run per transaction:
//   - Extraction, Validation, Pattern, Behavior, Velocity, Amount, Temporal
//
// 3. SCORE: Deterministic 0-100 sum of layer contributions, capped.
//
// 4. LEVEL: Score-to-level mapping:
//   - 0-34   → LOW
//   - 35-59  → MEDIUM
//   - 60-79  → HIGH
//   - 80-100 → CRITICAL
//
// 5. ALERT: HIGH and CRITICAL analyses raise alerts with recommended actions.
//
// The server must be running (default http://localhost:8080). No seed
// data is required; scoring layers are self-contained.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("SIKAGUARD_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching SikaGuard's API contract)
// ============================================================================

// AnalyzeRequest is the raw SMS sent to POST /analyze
type AnalyzeRequest struct {
	UserID     string     `json:"userId"`
	Message    string     `json:"message"`
	Sender     string     `json:"sender,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}

// AnalyzeResponse is what POST /analyze returns
type AnalyzeResponse struct {
	Transactions []Transaction    `json:"transactions"`
	Analyses     []Analysis       `json:"analyses"`
	Rejected     bool             `json:"rejected"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type Transaction struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Provider string   `json:"provider"`
	Type     string   `json:"type"`
	Amount   *float64 `json:"amount"`
}

type Analysis struct {
	ID                 string   `json:"id"`
	TxID               string   `json:"txId"`
	TotalScore         int      `json:"totalScore"`
	Level              string   `json:"level"` // LOW, MEDIUM, HIGH, CRITICAL
	ShouldAlert        bool     `json:"shouldAlert"`
	Factors            []string `json:"factors"`
	RecommendedActions []string `json:"recommendedActions"`
}

type ResponseMetadata struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func analyze(t *testing.T, config TestConfig, req AnalyzeRequest) AnalyzeResponse {
	t.Helper()

	resp, body := analyzeRaw(t, config, req, config.TenantID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}

	return result
}

func analyzeRaw(t *testing.T, config TestConfig, req AnalyzeRequest, tenantID string) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		httpReq.Header.Set("X-Tenant-ID", tenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	return resp, respBody
}

// ============================================================================
// SCENARIO 1: Clean Daytime Payment (No Alert)
// ============================================================================

func TestCleanPayment_NoAlert(t *testing.T) {
	/*
	   SCENARIO: A regular GHS 50 shop payment at mid-morning, fully
	   parseable MTN notification with a transaction reference.

	   EXPECTED BEHAVIOR:
	   - Extraction: provider, amount, counterpart, reference all found
	   - Validation: PASS
	   - Pattern: no scam vocabulary → 0
	   - The clean-transaction path keeps the total at or below 20

	   FINAL DECISION: LOW, no alert
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-clean",
		Message: "Payment made for GHS 50.00 to Kwame Shop on 2024-02-14 at 10:15:22 via MTN Mobile Money. Transaction ID: 9876543210123.",
	}

	result := analyze(t, config, req)

	// ASSERTIONS
	if result.Rejected {
		t.Fatal("Expected message to be accepted")
	}
	if len(result.Analyses) != 1 {
		t.Fatalf("Expected 1 analysis, got %d", len(result.Analyses))
	}

	analysis := result.Analyses[0]
	if analysis.Level != "LOW" {
		t.Errorf("Expected level LOW, got %s (score %d, factors %v)",
			analysis.Level, analysis.TotalScore, analysis.Factors)
	}
	if analysis.ShouldAlert {
		t.Error("Expected no alert for a clean daytime payment")
	}
	if analysis.TotalScore > 20 {
		t.Errorf("Expected score <= 20 for a clean transaction, got %d", analysis.TotalScore)
	}

	t.Logf("✓ Clean payment passed: level=%s, score=%d", analysis.Level, analysis.TotalScore)
}

// ============================================================================
// SCENARIO 2: Scam Blast (CRITICAL Alert)
// ============================================================================

func TestScamBlast_CriticalAlert(t *testing.T) {
	/*
	   SCENARIO: Classic Ghanaian mobile money scam - urgency vocabulary,
	   prize bait, and a fee demand, with an amount so the message is
	   promoted to a transaction.

	   EXPECTED BEHAVIOR:
	   - Pattern layer saturates on keywords and phrases
	   - Unknown provider adds its penalty
	   - Score caps at 100

	   FINAL DECISION: CRITICAL with recommended actions
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-scam",
		Message: "URGENT: verify your account, click link to claim prize, GHS 50 tax payment required",
	}

	result := analyze(t, config, req)

	if result.Rejected {
		t.Fatal("Expected message to be accepted (amount present)")
	}

	analysis := result.Analyses[0]
	if analysis.Level != "CRITICAL" {
		t.Errorf("Expected level CRITICAL, got %s (score %d)", analysis.Level, analysis.TotalScore)
	}
	if !analysis.ShouldAlert {
		t.Error("Expected alert for a scam blast")
	}
	if len(analysis.Factors) == 0 {
		t.Error("Expected risk factors explaining the score")
	}
	if len(analysis.RecommendedActions) == 0 {
		t.Error("Expected recommended actions for a CRITICAL analysis")
	}

	t.Logf("✓ Scam blast alerted: level=%s, score=%d, factors=%v",
		analysis.Level, analysis.TotalScore, analysis.Factors)
}

// ============================================================================
// SCENARIO 3: Multi-Transaction SMS
// ============================================================================

func TestConcatenatedSMS_SplitsIntoTransactions(t *testing.T) {
	/*
	   SCENARIO: Carriers concatenate notifications; one SMS body can hold
	   two back-to-back transaction records.

	   EXPECTED BEHAVIOR:
	   - Splitter cuts at the second "Your payment" opener
	   - Each piece is extracted and scored independently
	   - Analyses line up one-to-one with transactions
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID: "it-user-multi",
		Message: "Your payment of GHS 20.00 to Ama Stores has been processed. Transaction ID: 1111111111. " +
			"Your payment of GHS 35.00 to Kofi Chop Bar has been processed. Transaction ID: 2222222222.",
	}

	result := analyze(t, config, req)

	if result.Rejected {
		t.Fatal("Expected message to be accepted")
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(result.Transactions))
	}
	if len(result.Analyses) != 2 {
		t.Fatalf("Expected 2 analyses, got %d", len(result.Analyses))
	}

	for i, analysis := range result.Analyses {
		if analysis.TxID != result.Transactions[i].ID {
			t.Errorf("Analysis %d references tx %s, expected %s",
				i, analysis.TxID, result.Transactions[i].ID)
		}
	}

	t.Logf("✓ Concatenated SMS split into %d transactions", len(result.Transactions))
}

// ============================================================================
// SCENARIO 4: Balance Notification (Informational)
// ============================================================================

func TestBalanceNotification_Informational(t *testing.T) {
	/*
	   SCENARIO: A pure balance notification. It is transactional text
	   (mentions GHS) but moves no money.

	   EXPECTED BEHAVIOR:
	   - Classified as a balance inquiry
	   - Informational types score 0 and never alert

	   FINAL DECISION: LOW, score 0
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-balance",
		Message: "Your MTN MoMo current balance: GHS 152.75 as of 2024-02-14.",
	}

	result := analyze(t, config, req)

	if result.Rejected {
		t.Fatal("Expected balance notification to be accepted")
	}

	analysis := result.Analyses[0]
	if analysis.TotalScore != 0 {
		t.Errorf("Expected score 0 for informational message, got %d", analysis.TotalScore)
	}
	if analysis.Level != "LOW" {
		t.Errorf("Expected level LOW, got %s", analysis.Level)
	}
	if analysis.ShouldAlert {
		t.Error("Expected no alert for a balance notification")
	}

	t.Logf("✓ Balance notification stayed informational: score=%d", analysis.TotalScore)
}

// ============================================================================
// SCENARIO 5: Non-Transactional SMS (Rejected)
// ============================================================================

func TestProseSMS_Rejected(t *testing.T) {
	/*
	   SCENARIO: Ordinary person-to-person SMS with no money movement.

	   EXPECTED: HTTP 422 with rejected=true. The engine refuses to
	   fabricate a transaction out of prose.
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-prose",
		Message: "Hey, are we still meeting for lunch tomorrow?",
	}

	resp, body := analyzeRaw(t, config, req, config.TenantID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422 for non-transactional SMS, got %d: %s", resp.StatusCode, string(body))
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !result.Rejected {
		t.Error("Expected rejected=true in response body")
	}
	if len(result.Analyses) != 0 {
		t.Errorf("Expected no analyses for a rejected message, got %d", len(result.Analyses))
	}

	t.Logf("✓ Prose SMS rejected: HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestMissingUserID_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing required userId field

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		Message: "Payment made for GHS 50.00 to Kwame Shop.",
	}

	resp, _ := analyzeRaw(t, config, req, config.TenantID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing userId, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing userId → HTTP %d", resp.StatusCode)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header

	   BEHAVIOR: Returns HTTP 400 Bad Request (not 401). Tenant ID is
	   validated as a required field, not as auth.
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-notenant",
		Message: "Payment made for GHS 50.00 to Kwame Shop.",
	}

	resp, _ := analyzeRaw(t, config, req, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 7: Audit Trail Retrieval
// ============================================================================

func TestAuditTrail_SevenLayers(t *testing.T) {
	/*
	   SCENARIO: After an analysis, GET /transactions/{id}/audit must
	   return one entry per scoring layer, in layer order.

	   WHY THIS MATTERS:
	   Carriers need to show regulators exactly why a transaction was
	   flagged. The audit trail is the per-layer paper trail.
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-audit",
		Message: "Payment made for GHS 50.00 to Kwame Shop via MTN Mobile Money. Transaction ID: 9876543210123.",
	}

	result := analyze(t, config, req)
	if result.Rejected || len(result.Transactions) == 0 {
		t.Fatal("Expected an accepted analysis to audit")
	}

	txID := result.Transactions[0].ID

	httpReq, _ := http.NewRequest("GET", config.BaseURL+"/transactions/"+txID+"/audit", nil)
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var trail struct {
		TxID    string `json:"txId"`
		Count   int    `json:"count"`
		Entries []struct {
			Layer     int    `json:"layer"`
			LayerName string `json:"layerName"`
			Score     int    `json:"score"`
			Status    string `json:"status"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(body, &trail); err != nil {
		t.Fatalf("Failed to unmarshal audit trail: %v", err)
	}

	if trail.Count != 7 {
		t.Fatalf("Expected 7 audit entries (one per layer), got %d", trail.Count)
	}
	for i, entry := range trail.Entries {
		if entry.Layer != i+1 {
			t.Errorf("Entry %d: expected layer %d, got %d", i, i+1, entry.Layer)
		}
	}

	t.Logf("✓ Audit trail complete: %d layers recorded for tx %s", trail.Count, txID[:8])
}

// ============================================================================
// SCENARIO 8: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := AnalyzeRequest{
		UserID:  "it-user-metadata",
		Message: "Payment made for GHS 50.00 to Kwame Shop via MTN Mobile Money. Transaction ID: 9876543210123.",
	}

	result := analyze(t, config, req)

	if len(result.Analyses) == 0 {
		t.Fatal("Expected at least one analysis")
	}

	analysis := result.Analyses[0]
	if analysis.ID == "" {
		t.Error("Missing analysis id")
	}
	if analysis.TxID == "" {
		t.Error("Missing txId")
	}

	switch analysis.Level {
	case "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		t.Errorf("Invalid level: %s", analysis.Level)
	}

	if analysis.TotalScore < 0 || analysis.TotalScore > 100 {
		t.Errorf("Score out of range: %d (expected 0-100)", analysis.TotalScore)
	}

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}
	if result.Metadata.Version == "" {
		t.Error("Missing metadata.version")
	}
	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	t.Logf("✓ Metadata complete: analysisId=%s, traceId=%s, totalMs=%d",
		analysis.ID[:8], result.Metadata.TraceID[:8], result.Metadata.TotalMs)
}
