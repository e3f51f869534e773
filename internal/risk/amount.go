package risk

import (
	"github.com/sikaguard/sikaguard/internal/domain"
)

// Amount band thresholds and scores.
const (
	amountBandHigh   = 5000.0
	amountBandMid    = 1000.0
	amountBandLow    = 100.0
	amountScoreHigh  = 50
	amountScoreMid   = 30
	amountScoreLow   = 10
	roundNumberBonus = 15
)

// Round amounts favored by scripted scams.
var roundAmounts = map[float64]bool{
	100:   true,
	500:   true,
	1000:  true,
	5000:  true,
	10000: true,
}

// ScoreAmount runs the absolute-amount layer. An absent amount
// contributes zero. This layer emits no prose factors; its weight is
// reflected in the composite only.
func ScoreAmount(tx *domain.ParsedTransaction) (domain.LayerResult, domain.AmountDetail) {
	result := domain.LayerResult{
		Layer:  domain.LayerAmount,
		Name:   domain.LayerName(domain.LayerAmount),
		Status: domain.LayerStatusPass,
	}

	if tx.Amount == nil {
		result.Status = domain.LayerStatusSkipped
		return result, domain.AmountDetail{}
	}

	amount := *tx.Amount

	band := 0
	switch {
	case amount >= amountBandHigh:
		band = amountScoreHigh
	case amount >= amountBandMid:
		band = amountScoreMid
	case amount >= amountBandLow:
		band = amountScoreLow
	}

	bonus := 0
	if roundAmounts[amount] {
		bonus = roundNumberBonus
	}

	result.Score = min(100, band+bonus)
	if result.Score > 0 {
		result.Status = domain.LayerStatusScored
	}

	return result, domain.AmountDetail{
		Amount:    amount,
		BandScore: band,
		RoundHit:  bonus > 0,
	}
}
