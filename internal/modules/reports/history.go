package reports

import (
	"math"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	tradingDaysPerYear = 252
	defaultHistoryDays = 365
)

// History builds the performance history between q.From and q.To. To defaults
// to today and From to one year before To.
func (s *Service) History(userID string, q Query) (*History, error) {
	if q.To == "" {
		q.To = s.now().UTC().Format(domain.DateLayout)
	}
	if q.From == "" {
		to, err := domain.ParseDate("to", q.To)
		if err != nil {
			return nil, err
		}
		q.From = to.AddDate(0, 0, -defaultHistoryDays).Format(domain.DateLayout)
	}
	if err := validateRange(q.From, q.To); err != nil {
		return nil, err
	}
	switch {
	case q.SMAPeriod == 0:
		q.SMAPeriod = defaultSMAPeriod
	case q.SMAPeriod < 2 || q.SMAPeriod > maxSMAPeriod:
		return nil, domain.NewValidationError("sma", "must be between 2 and %d", maxSMAPeriod)
	}

	return cached(s, userID, "history", q, func() (*History, error) {
		if _, err := s.checkPortfolio(userID, q); err != nil {
			return nil, err
		}
		totals, err := s.snapshots.DailyTotals(userID, q.PortfolioID, q.From, q.To)
		if err != nil {
			return nil, err
		}
		h := buildHistory(totals, q.SMAPeriod)
		h.From, h.To = q.From, q.To
		return h, nil
	})
}

func buildHistory(totals []snapshots.DailyTotal, smaPeriod int) *History {
	h := &History{SMAPeriod: smaPeriod, Points: make([]HistoryPoint, 0, len(totals))}
	if len(totals) == 0 {
		return h
	}

	values := make([]float64, len(totals))
	returns := make([]float64, 0, len(totals))
	for i, t := range totals {
		values[i] = t.TotalValue
		p := HistoryPoint{Date: t.Date, TotalValue: t.TotalValue, TotalCost: t.TotalCost}
		if i > 0 && values[i-1] > 0 {
			r := values[i]/values[i-1] - 1
			returns = append(returns, r)
			pct := round(r*100, 4)
			p.DailyReturn = &pct
		}
		h.Points = append(h.Points, p)
	}

	if len(values) >= smaPeriod {
		sma := talib.Sma(values, smaPeriod)
		for i := smaPeriod - 1; i < len(sma); i++ {
			v := round(sma[i], 2)
			h.Points[i].SMA = &v
		}
	}

	if len(returns) >= 2 {
		sd := stat.StdDev(returns, nil)
		h.Volatility = round(sd*100, 4)
		h.AnnualVolatility = round(sd*math.Sqrt(tradingDaysPerYear)*100, 2)
	}
	h.MaxDrawdown = maxDrawdown(values)
	if first := values[0]; first > 0 {
		h.PeriodReturn = round((values[len(values)-1]/first-1)*100, 2)
	}
	return h
}

// maxDrawdown returns the largest peak-to-trough fall as a percentage of the peak.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return round(worst*100, 2)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
