package risk

import (
	"testing"

	"github.com/sikaguard/sikaguard/internal/domain"
)

func TestAnalyzeBehavior(t *testing.T) {
	tests := []struct {
		name       string
		tx         domain.ParsedTransaction
		profile    *domain.BehaviorProfile
		degraded   bool
		wantScore  int
		wantStatus string
	}{
		{
			name:       "No profile no time scores zero",
			tx:         domain.ParsedTransaction{Amount: fptr(500)},
			wantScore:  0,
			wantStatus: domain.LayerStatusPass,
		},
		{
			name:       "Amount over triple average",
			tx:         domain.ParsedTransaction{Amount: fptr(400)},
			profile:    &domain.BehaviorProfile{AverageAmount: fptr(100)},
			wantScore:  25,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Amount exactly triple average is not anomalous",
			tx:         domain.ParsedTransaction{Amount: fptr(300)},
			profile:    &domain.BehaviorProfile{AverageAmount: fptr(100)},
			wantScore:  0,
			wantStatus: domain.LayerStatusPass,
		},
		{
			name:       "New user with nil average skips amount check",
			tx:         domain.ParsedTransaction{Amount: fptr(9999)},
			profile:    &domain.BehaviorProfile{},
			wantScore:  0,
			wantStatus: domain.LayerStatusPass,
		},
		{
			name:       "Very early morning",
			tx:         domain.ParsedTransaction{Amount: fptr(50), Time: "03:10:00"},
			wantScore:  40,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Late night after ten",
			tx:         domain.ParsedTransaction{Amount: fptr(50), Time: "23:00:00"},
			wantScore:  20,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Just past midnight counts as late night",
			tx:         domain.ParsedTransaction{Amount: fptr(50), Time: "01:30:00"},
			wantScore:  20,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Business hours score nothing",
			tx:         domain.ParsedTransaction{Amount: fptr(50), Time: "14:00:00"},
			wantScore:  0,
			wantStatus: domain.LayerStatusPass,
		},
		{
			name:       "Anomaly plus early morning stack",
			tx:         domain.ParsedTransaction{Amount: fptr(400), Time: "02:30:00"},
			profile:    &domain.BehaviorProfile{AverageAmount: fptr(100)},
			wantScore:  65,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Degraded read reports degraded status",
			tx:         domain.ParsedTransaction{Amount: fptr(400), Time: "02:30:00"},
			degraded:   true,
			wantScore:  40,
			wantStatus: domain.LayerStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, detail := AnalyzeBehavior(&tt.tx, tt.profile, tt.degraded)

			if result.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d (factors: %v)", tt.wantScore, result.Score, result.Factors)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, result.Status)
			}
			if detail.Degraded != tt.degraded {
				t.Errorf("Expected degraded=%v in detail", tt.degraded)
			}
		})
	}
}
