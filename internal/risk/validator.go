// Package risk implements the layered risk analysis pipeline.
package risk

import (
	"fmt"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Validate runs the structural validation layer. A transaction passes
// when every field its type requires was extracted; violations are
// appended to the transaction's parse errors.
func Validate(tx *domain.ParsedTransaction) (domain.LayerResult, domain.ValidationDetail) {
	var violations []string

	if tx.Type == "" {
		violations = append(violations, "transaction type could not be determined")
	}
	if tx.Amount == nil || *tx.Amount <= 0 {
		violations = append(violations, "amount missing or not positive")
	}
	if tx.Date == "" || tx.Time == "" {
		violations = append(violations, "transaction timestamp incomplete")
	}
	if tx.Provider == domain.ProviderUnknown {
		violations = append(violations, "provider not recognized")
	}

	switch tx.Type {
	case domain.TypeReceived:
		if tx.CounterpartIdentity() == "" {
			violations = append(violations, "received transaction has no sender identity")
		}
	case domain.TypeSent:
		if tx.CounterpartIdentity() == "" {
			violations = append(violations, "sent transaction has no recipient identity")
		}
	case domain.TypeWithdrawal:
		if tx.CounterpartName == "" {
			violations = append(violations, "withdrawal has no merchant name")
		}
	}

	status := domain.LayerStatusPass
	if len(violations) > 0 {
		status = domain.LayerStatusFail
		tx.ParseErrors = append(tx.ParseErrors, violations...)
	}

	result := domain.LayerResult{
		Layer:  domain.LayerValidation,
		Name:   domain.LayerName(domain.LayerValidation),
		Status: status,
	}
	if status == domain.LayerStatusFail {
		result.Factors = []string{fmt.Sprintf("structural validation failed (%d issues)", len(violations))}
	}

	return result, domain.ValidationDetail{Violations: violations}
}
