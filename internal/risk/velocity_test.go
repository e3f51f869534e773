package risk

import (
	"testing"

	"github.com/sikaguard/sikaguard/internal/domain"
)

func TestScoreVelocity(t *testing.T) {
	tests := []struct {
		name       string
		counts     WindowCounts
		degraded   bool
		wantScore  int
		wantStatus string
	}{
		{
			name:       "Quiet history",
			counts:     WindowCounts{LastHour: 1, Last3h: 2, Last24h: 4},
			wantScore:  0,
			wantStatus: domain.LayerStatusPass,
		},
		{
			name:       "Hourly burst at threshold",
			counts:     WindowCounts{LastHour: 3, Last3h: 3, Last24h: 3},
			wantScore:  20,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Hourly and three hour bursts",
			counts:     WindowCounts{LastHour: 4, Last3h: 6, Last24h: 7},
			wantScore:  50,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "All three windows trip",
			counts:     WindowCounts{LastHour: 5, Last3h: 8, Last24h: 12},
			wantScore:  90,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Daily burst alone",
			counts:     WindowCounts{LastHour: 0, Last3h: 2, Last24h: 10},
			wantScore:  40,
			wantStatus: domain.LayerStatusScored,
		},
		{
			name:       "Degraded history",
			counts:     WindowCounts{},
			degraded:   true,
			wantScore:  0,
			wantStatus: domain.LayerStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, detail := ScoreVelocity(tt.counts, tt.degraded)

			if result.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, result.Score)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, result.Status)
			}
			if detail.CountLastHour != tt.counts.LastHour || detail.CountLast24h != tt.counts.Last24h {
				t.Errorf("Expected counts carried into detail, got %+v", detail)
			}
		})
	}
}
