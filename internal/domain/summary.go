package domain

import "github.com/shopspring/decimal"

// Totals aggregates valuations across many investments.
type Totals struct {
	TotalCost      float64 `json:"total_cost"`
	CurrentValue   float64 `json:"current_value"`
	GainLoss       float64 `json:"gain_loss"`
	GainLossPct    float64 `json:"gain_loss_pct"`
	RealizedGain   float64 `json:"realized_gain"`
	Dividends      float64 `json:"dividends"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
}

// PortfolioSummary is a portfolio with its aggregated holdings.
type PortfolioSummary struct {
	Portfolio
	InvestmentCount int `json:"investment_count"`
	Totals
}

// Accumulator sums investment figures with decimal precision.
type Accumulator struct {
	count    int
	cost     decimal.Decimal
	value    decimal.Decimal
	realized decimal.Decimal
	divs     decimal.Decimal
}

// Add includes inv in the running totals.
func (a *Accumulator) Add(inv Investment) {
	qty := Dec(inv.Quantity)
	a.count++
	a.cost = a.cost.Add(qty.Mul(Dec(inv.AverageCost)))
	a.value = a.value.Add(qty.Mul(Dec(inv.CurrentPrice)))
	a.realized = a.realized.Add(Dec(inv.RealizedGain))
	a.divs = a.divs.Add(Dec(inv.Dividends))
}

// Count returns the number of investments added.
func (a *Accumulator) Count() int {
	return a.count
}

// Value returns the current value added so far.
func (a *Accumulator) Value() decimal.Decimal {
	return a.value
}

// Totals returns the rounded aggregate. Total return percent is measured
// against the cost of currently held units.
func (a *Accumulator) Totals() Totals {
	gain := a.value.Sub(a.cost)
	total := gain.Add(a.realized).Add(a.divs)
	return Totals{
		TotalCost:      Money(a.cost),
		CurrentValue:   Money(a.value),
		GainLoss:       Money(gain),
		GainLossPct:    Percent(gain, a.cost),
		RealizedGain:   Money(a.realized),
		Dividends:      Money(a.divs),
		TotalReturn:    Money(total),
		TotalReturnPct: Percent(total, a.cost),
	}
}

// Summarize aggregates the investments of p.
func Summarize(p Portfolio, investments []Investment) PortfolioSummary {
	var acc Accumulator
	for _, inv := range investments {
		acc.Add(inv)
	}
	return PortfolioSummary{Portfolio: p, InvestmentCount: acc.Count(), Totals: acc.Totals()}
}
