package risk

import (
	"github.com/sikaguard/sikaguard/internal/domain"
)

// Composite scoring constants.
const (
	unknownProviderPenalty = 80
	blacklistPenalty       = 60
	cleanTransactionCap    = 20
)

// LayerInputs carries every per-layer result into aggregation.
type LayerInputs struct {
	Extraction domain.LayerResult
	Validation domain.LayerResult
	Pattern    domain.LayerResult
	Behavior   domain.LayerResult
	Velocity   domain.LayerResult
	Amount     domain.LayerResult
	Temporal   domain.LayerResult

	// Blacklisted is true when the counterpart identity matched a
	// blacklist entry.
	Blacklisted bool

	// RuleHits are fired supplemental rules.
	RuleHits []domain.RuleHit
}

// Layers returns the per-layer results in layer order.
func (in *LayerInputs) Layers() []domain.LayerResult {
	return []domain.LayerResult{
		in.Extraction,
		in.Validation,
		in.Pattern,
		in.Behavior,
		in.Velocity,
		in.Amount,
		in.Temporal,
	}
}

// Aggregate combines layer scores into the composite result: the
// informational-type short circuit, the unknown-provider penalty, the
// capped sum, the two low-risk overrides, and finally the blacklist
// penalty and supplemental rules. The blacklist penalty is applied
// after the overrides on purpose: a blacklisted counterpart must not
// be capped back to LOW by the clean-transaction rule.
func Aggregate(tx *domain.ParsedTransaction, in LayerInputs) (total int, level domain.RiskLevel, factors []string) {
	if tx.Type.Informational() {
		return 0, domain.RiskLow, nil
	}

	providerPenalty := 0
	if tx.Provider == domain.ProviderUnknown {
		providerPenalty = unknownProviderPenalty
		factors = append(factors, "message sender is not a recognized provider")
	}

	total = min(100, providerPenalty+
		in.Pattern.Score+
		in.Behavior.Score+
		in.Velocity.Score+
		in.Amount.Score+
		in.Temporal.Score)

	providerKnown := tx.Provider != domain.ProviderUnknown
	switch {
	case tx.Type.UtilitySpend() && providerKnown:
		total = min(cleanTransactionCap, total)
	case providerKnown &&
		in.Validation.Status == domain.LayerStatusPass &&
		in.Pattern.Score == 0 &&
		in.Behavior.Score == 0:
		total = min(cleanTransactionCap, total)
	}

	// Contributing factors in layer order; the amount layer carries
	// no prose factors in the canonical scheme.
	for _, lr := range []domain.LayerResult{in.Extraction, in.Pattern, in.Behavior, in.Velocity, in.Temporal} {
		if lr.Score > 0 || lr.Layer == domain.LayerExtraction {
			factors = append(factors, lr.Factors...)
		}
	}

	if in.Blacklisted {
		total += blacklistPenalty
		factors = append(factors, "counterpart is on the global blacklist")
	}

	for _, hit := range in.RuleHits {
		total += hit.Penalty
		if hit.Factor != "" {
			factors = append(factors, hit.Factor)
		}
	}

	total = min(100, total)

	return total, domain.LevelForScore(total), factors
}
