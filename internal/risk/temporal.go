package risk

import (
	"fmt"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Hour-of-day risk bands and the weekend bonus.
const (
	deadOfNightScore  = 50 // 02:00-05:59
	smallHoursScore   = 40 // 00:00-01:59
	lateEveningScore  = 30 // 22:00-23:59
	earlyEveningScore = 15 // 20:00-21:59
	weekendScore      = 10
)

// ScoreTemporal runs the hour/day risk layer. Hour scoring needs only
// the message time; day scoring additionally needs the date.
func ScoreTemporal(tx *domain.ParsedTransaction) (domain.LayerResult, domain.TemporalDetail) {
	result := domain.LayerResult{
		Layer:  domain.LayerTemporal,
		Name:   domain.LayerName(domain.LayerTemporal),
		Status: domain.LayerStatusPass,
	}

	detail := domain.TemporalDetail{}
	var factors []string

	hourScore := 0
	if hour, ok := tx.Hour(); ok {
		detail.Hour = hour
		detail.HourKnown = true
		switch {
		case hour >= 2 && hour <= 5:
			hourScore = deadOfNightScore
		case hour <= 1:
			hourScore = smallHoursScore
		case hour >= 22:
			hourScore = lateEveningScore
		case hour >= 20:
			hourScore = earlyEveningScore
		}
		if hourScore > 0 {
			factors = append(factors, fmt.Sprintf("transaction at high-risk hour (%02d:00)", hour))
		}
	} else {
		result.Status = domain.LayerStatusSkipped
	}

	dayScore := 0
	if when, ok := tx.When(); ok {
		wd := when.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			dayScore = weekendScore
			detail.Weekend = true
			factors = append(factors, "weekend transaction")
		}
	}

	detail.HourScore = hourScore
	detail.DayScore = dayScore

	result.Score = min(100, hourScore+dayScore)
	result.Factors = factors
	if result.Score > 0 {
		result.Status = domain.LayerStatusScored
	}

	return result, detail
}
