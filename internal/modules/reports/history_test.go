package reports

import (
	"testing"

	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"rising", []float64{1, 2, 3}, 0},
		{"single fall", []float64{100, 80, 90}, 20},
		{"deeper later", []float64{100, 90, 120, 60, 130}, 50},
		{"zero start", []float64{0, 0, 10, 5}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maxDrawdown(tt.values))
		})
	}
}

func TestBuildHistoryShortSeries(t *testing.T) {
	h := buildHistory([]snapshots.DailyTotal{{Date: "2024-01-01", TotalValue: 100}}, 7)
	assert.Len(t, h.Points, 1)
	assert.Nil(t, h.Points[0].SMA)
	assert.Equal(t, 0.0, h.Volatility)
	assert.Equal(t, 0.0, h.PeriodReturn)

	empty := buildHistory(nil, 7)
	assert.Empty(t, empty.Points)
}

func TestBuildHistoryVolatility(t *testing.T) {
	totals := []snapshots.DailyTotal{
		{Date: "2024-01-01", TotalValue: 100},
		{Date: "2024-01-02", TotalValue: 110},
		{Date: "2024-01-03", TotalValue: 99},
	}
	h := buildHistory(totals, 2)
	// Returns are +10% and -10%; the sample standard deviation is 0.1414.
	assert.Equal(t, 14.1421, h.Volatility)
	assert.Equal(t, 224.5, h.AnnualVolatility)
	assert.Equal(t, -1.0, h.PeriodReturn)
}
