package domain

import (
	"time"
)

// RiskLevel buckets a composite score into an actionable severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Level boundaries on the composite score.
const (
	MediumThreshold   = 35
	HighThreshold     = 60
	CriticalThreshold = 80
)

// LevelForScore maps a composite score to its risk level.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= CriticalThreshold:
		return RiskCritical
	case score >= HighThreshold:
		return RiskHigh
	case score >= MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RecommendedActions returns the guidance shown to the end user for a level.
func RecommendedActions(level RiskLevel) []string {
	switch level {
	case RiskCritical:
		return []string{
			"do not proceed / likely scam",
			"report to provider immediately",
			"check account for unauthorized access",
		}
	case RiskHigh:
		return []string{
			"verify transaction details with counterpart",
			"contact provider if suspicious",
			"never follow links in suspicious messages",
		}
	case RiskMedium:
		return []string{
			"review transaction details carefully",
			"confirm counterpart identity",
		}
	default:
		return nil
	}
}

// Layer numbers of the analysis pipeline.
const (
	LayerExtraction = 1
	LayerValidation = 2
	LayerPattern    = 3
	LayerBehavior   = 4
	LayerVelocity   = 5
	LayerAmount     = 6
	LayerTemporal   = 7
)

// LayerName returns the human-readable name for a layer number.
func LayerName(layer int) string {
	switch layer {
	case LayerExtraction:
		return "field extraction"
	case LayerValidation:
		return "structural validation"
	case LayerPattern:
		return "pattern analysis"
	case LayerBehavior:
		return "behavior analysis"
	case LayerVelocity:
		return "velocity analysis"
	case LayerAmount:
		return "amount scoring"
	case LayerTemporal:
		return "temporal scoring"
	default:
		return "unknown"
	}
}

// Layer result statuses.
const (
	LayerStatusPass     = "PASS"
	LayerStatusFail     = "FAIL"
	LayerStatusScored   = "SCORED"
	LayerStatusSkipped  = "SKIPPED"
	LayerStatusDegraded = "DEGRADED"
)

// LayerResult is the outcome of one pipeline layer for one transaction.
type LayerResult struct {
	Layer     int      `json:"layer"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Score     int      `json:"score"`
	Factors   []string `json:"factors,omitempty"`
	ProcessMs int64    `json:"processMs"`
}

// RiskAnalysis is the complete scoring result for one transaction.
// Built fresh per transaction and immutable once returned.
type RiskAnalysis struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	TxID     string `json:"txId"`
	UserID   string `json:"userId"`

	TotalScore  int       `json:"totalScore"`
	Level       RiskLevel `json:"riskLevel"`
	ShouldAlert bool      `json:"shouldAlert"`

	Factors            []string `json:"riskFactors,omitempty"`
	RecommendedActions []string `json:"recommendedActions,omitempty"`

	LayerResults []LayerResult `json:"layerResults"`

	Timestamp time.Time        `json:"timestamp"`
	Metadata  AnalysisMetadata `json:"metadata"`
}

// AnalysisMetadata records processing information for observability.
type AnalysisMetadata struct {
	TraceID       string `json:"traceId"`
	ParseMs       int64  `json:"parseMs"`
	ScoreMs       int64  `json:"scoreMs"`
	TotalMs       int64  `json:"totalMs"`
	LayersRun     int    `json:"layersRun"`
	EngineVersion string `json:"engineVersion"`
}

// Alert is the persisted record raised for HIGH/CRITICAL analyses.
type Alert struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	TxID       string    `json:"txId"`
	AnalysisID string    `json:"analysisId"`
	UserID     string    `json:"userId"`
	Level      RiskLevel `json:"level"`
	Score      int       `json:"score"`
	Factors    []string  `json:"factors,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
