package risk

import (
	"fmt"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Behavior layer scoring constants.
const (
	amountAnomalyScore    = 25
	amountAnomalyMultiple = 3.0
	earlyMorningScore     = 40
	lateNightScore        = 20
)

// AnalyzeBehavior compares a transaction against the user's historical
// profile. A nil profile (new user or degraded read) skips the amount
// check; the time-of-day check runs whenever the hour is known.
func AnalyzeBehavior(tx *domain.ParsedTransaction, profile *domain.BehaviorProfile, degraded bool) (domain.LayerResult, domain.BehaviorDetail) {
	score := 0
	var factors []string

	detail := domain.BehaviorDetail{Degraded: degraded}

	if profile != nil && profile.AverageAmount != nil && tx.Amount != nil {
		avg := *profile.AverageAmount
		detail.AverageAmount = profile.AverageAmount
		if avg > 0 && *tx.Amount > amountAnomalyMultiple*avg {
			multiple := *tx.Amount / avg
			detail.Multiple = multiple
			score += amountAnomalyScore
			factors = append(factors, fmt.Sprintf("amount is %.1fx the user's average", multiple))
		}
	}

	if hour, ok := tx.Hour(); ok {
		detail.Hour = hour
		detail.HourKnown = true
		switch {
		case hour >= 2 && hour <= 5:
			score += earlyMorningScore
			factors = append(factors, "very early morning transaction")
		case hour >= 22 || hour <= 1:
			score += lateNightScore
			factors = append(factors, "late night transaction")
		}
	}

	score = min(100, score)

	status := domain.LayerStatusPass
	switch {
	case degraded:
		status = domain.LayerStatusDegraded
	case score > 0:
		status = domain.LayerStatusScored
	}

	result := domain.LayerResult{
		Layer:   domain.LayerBehavior,
		Name:    domain.LayerName(domain.LayerBehavior),
		Status:  status,
		Score:   score,
		Factors: factors,
	}

	return result, detail
}
