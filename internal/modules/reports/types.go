// Package reports builds per-user performance, distribution, rollup and history
// reports and renders them for export.
package reports

import "github.com/aristath/folio/internal/domain"

// Performer is one investment ranked by gain percentage.
type Performer struct {
	InvestmentID string  `json:"investment_id"`
	PortfolioID  string  `json:"portfolio_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	CurrentValue float64 `json:"current_value"`
	GainLoss     float64 `json:"gain_loss"`
	GainLossPct  float64 `json:"gain_loss_pct"`
}

// Summary is the performance summary report.
type Summary struct {
	domain.Totals
	PortfolioCount  int         `json:"portfolio_count"`
	InvestmentCount int         `json:"investment_count"`
	TopPerformers   []Performer `json:"top_performers"`
	WorstPerformers []Performer `json:"worst_performers"`
	Best            *Performer  `json:"best,omitempty"`
	Worst           *Performer  `json:"worst,omitempty"`
}

// Bucket is one slice of a distribution.
type Bucket struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// Distribution splits current value by type, portfolio and sector.
type Distribution struct {
	TotalValue  float64  `json:"total_value"`
	ByType      []Bucket `json:"by_type"`
	ByPortfolio []Bucket `json:"by_portfolio"`
	BySector    []Bucket `json:"by_sector"`
}

// Period holds the cash flows of a month or a year.
// NetFlow is buys minus sells minus dividends plus fees: money put into the
// portfolios net of money taken out.
type Period struct {
	Year             int     `json:"year"`
	Month            int     `json:"month,omitempty"`
	Buys             float64 `json:"buys"`
	Sells            float64 `json:"sells"`
	Dividends        float64 `json:"dividends"`
	Fees             float64 `json:"fees"`
	NetFlow          float64 `json:"net_flow"`
	TransactionCount int     `json:"transaction_count"`
	EndValue         float64 `json:"end_value"`
}

// Monthly is the rollup of one calendar year by month.
type Monthly struct {
	Year   int      `json:"year"`
	Months []Period `json:"months"`
	Total  Period   `json:"total"`
}

// Yearly is the rollup of every year that has transactions.
type Yearly struct {
	Years []Period `json:"years"`
}

// Delta compares one figure between two years. Percent is nil when the
// previous value is zero.
type Delta struct {
	Current  float64  `json:"current"`
	Previous float64  `json:"previous"`
	Change   float64  `json:"change"`
	Percent  *float64 `json:"percent"`
}

// YearOverYear compares a year with the one before.
type YearOverYear struct {
	Year     int              `json:"year"`
	Current  Period           `json:"current"`
	Previous Period           `json:"previous"`
	Deltas   map[string]Delta `json:"deltas"`
}

// HistoryPoint is one day of the summed snapshot series.
type HistoryPoint struct {
	Date        string   `json:"date"`
	TotalValue  float64  `json:"total_value"`
	TotalCost   float64  `json:"total_cost"`
	DailyReturn *float64 `json:"daily_return"`
	SMA         *float64 `json:"sma"`
}

// History is the performance history report.
type History struct {
	From             string         `json:"from"`
	To               string         `json:"to"`
	SMAPeriod        int            `json:"sma_period"`
	Points           []HistoryPoint `json:"points"`
	Volatility       float64        `json:"volatility"`
	AnnualVolatility float64        `json:"annual_volatility"`
	MaxDrawdown      float64        `json:"max_drawdown"`
	PeriodReturn     float64        `json:"period_return"`
}
