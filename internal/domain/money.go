package domain

import "github.com/shopspring/decimal"

// Dec converts a float to a decimal for exact money arithmetic.
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Money rounds a decimal amount to cents and returns it as float64.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// RoundMoney rounds a float amount to cents.
func RoundMoney(v float64) float64 {
	return Money(Dec(v))
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is zero.
func Percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// Valuation holds the derived money figures of an investment.
type Valuation struct {
	TotalCost    float64 `json:"total_cost"`
	CurrentValue float64 `json:"current_value"`
	GainLoss     float64 `json:"gain_loss"`
	GainLossPct  float64 `json:"gain_loss_pct"`
	TotalReturn  float64 `json:"total_return"`
}

// Value computes the valuation of an investment at its current price.
// TotalReturn adds realized gains and dividends to the unrealized gain.
func Value(inv Investment) Valuation {
	qty := Dec(inv.Quantity)
	cost := qty.Mul(Dec(inv.AverageCost))
	value := qty.Mul(Dec(inv.CurrentPrice))
	gain := value.Sub(cost)
	total := gain.Add(Dec(inv.RealizedGain)).Add(Dec(inv.Dividends))

	return Valuation{
		TotalCost:    Money(cost),
		CurrentValue: Money(value),
		GainLoss:     Money(gain),
		GainLossPct:  Percent(gain, cost),
		TotalReturn:  Money(total),
	}
}

// InvestmentView is an investment together with its valuation, as returned by the API.
type InvestmentView struct {
	Investment
	Valuation
}

// NewInvestmentView values inv.
func NewInvestmentView(inv Investment) InvestmentView {
	return InvestmentView{Investment: inv, Valuation: Value(inv)}
}
