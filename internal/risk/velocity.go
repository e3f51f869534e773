package risk

import (
	"fmt"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Velocity thresholds on trailing windows ending at the transaction time.
const (
	hourlyBurstCount  = 3
	hourlyBurstScore  = 20
	threeHourCount    = 5
	threeHourScore    = 30
	dailyBurstCount   = 10
	dailyBurstScore   = 40
)

// WindowCounts holds the user's transaction counts in trailing windows.
type WindowCounts struct {
	LastHour int
	Last3h   int
	Last24h  int
}

// ScoreVelocity runs the burst-detection layer over pre-computed window
// counts. Degraded means the history read failed and every count is
// zero by fallback, not observation.
func ScoreVelocity(counts WindowCounts, degraded bool) (domain.LayerResult, domain.VelocityDetail) {
	score := 0
	var factors []string

	if counts.LastHour >= hourlyBurstCount {
		score += hourlyBurstScore
		factors = append(factors, fmt.Sprintf("%d transactions in the last hour", counts.LastHour))
	}
	if counts.Last3h >= threeHourCount {
		score += threeHourScore
		factors = append(factors, fmt.Sprintf("%d transactions in the last 3 hours", counts.Last3h))
	}
	if counts.Last24h >= dailyBurstCount {
		score += dailyBurstScore
		factors = append(factors, fmt.Sprintf("%d transactions in the last 24 hours", counts.Last24h))
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
		Layer:   domain.LayerVelocity,
		Name:    domain.LayerName(domain.LayerVelocity),
		Status:  status,
		Score:   score,
		Factors: factors,
	}

	detail := domain.VelocityDetail{
		CountLastHour: counts.LastHour,
		CountLast3h:   counts.Last3h,
		CountLast24h:  counts.Last24h,
		Degraded:      degraded,
	}

	return result, detail
}
