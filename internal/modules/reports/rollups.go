package reports

import (
	"fmt"
	"strconv"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/shopspring/decimal"
)

const (
	minYear = 1900
	maxYear = 2200
)

// flows accumulates the cash flows of one period with decimal precision.
type flows struct {
	buys, sells, dividends, fees decimal.Decimal
	count                        int
	endValue                     float64
}

func (f *flows) add(e ledger.Entry) {
	amount := domain.Dec(e.Transaction.Amount())
	switch e.Type {
	case domain.TransactionBuy:
		f.buys = f.buys.Add(amount)
	case domain.TransactionSell:
		f.sells = f.sells.Add(amount)
	case domain.TransactionDividend:
		f.dividends = f.dividends.Add(amount)
	case domain.TransactionFee:
		f.fees = f.fees.Add(amount)
	}
	f.count++
}

func (f *flows) period(year, month int) Period {
	net := f.buys.Sub(f.sells).Sub(f.dividends).Add(f.fees)
	return Period{
		Year:             year,
		Month:            month,
		Buys:             domain.Money(f.buys),
		Sells:            domain.Money(f.sells),
		Dividends:        domain.Money(f.dividends),
		Fees:             domain.Money(f.fees),
		NetFlow:          domain.Money(net),
		TransactionCount: f.count,
		EndValue:         f.endValue,
	}
}

func (s *Service) resolveYear(year int) (int, error) {
	if year == 0 {
		return s.now().UTC().Year(), nil
	}
	if year < minYear || year > maxYear {
		return 0, domain.NewValidationError("year", "must be between %d and %d", minYear, maxYear)
	}
	return year, nil
}

// entries returns the user's transactions between from and to (inclusive).
func (s *Service) entries(userID, portfolioID, from, to string) ([]ledger.Entry, error) {
	entries, _, err := s.transactions.List(ledger.Filter{
		UserID:      userID,
		PortfolioID: portfolioID,
		From:        from,
		To:          to,
	})
	return entries, err
}

// lastValues maps a period key to the value of the last snapshot inside it.
// Totals arrive in date order so later dates overwrite earlier ones.
func lastValues(totals []snapshots.DailyTotal, keyOf func(date string) string) map[string]float64 {
	values := make(map[string]float64)
	for _, t := range totals {
		values[keyOf(t.Date)] = t.TotalValue
	}
	return values
}

func monthKey(date string) string { return date[:7] }
func yearKey(date string) string  { return date[:4] }

// Monthly rolls up one calendar year by month. End values come from the last
// snapshot of each month and are 0 when none was recorded.
func (s *Service) Monthly(userID string, q Query) (*Monthly, error) {
	year, err := s.resolveYear(q.Year)
	if err != nil {
		return nil, err
	}
	q.Year = year

	return cached(s, userID, "monthly", q, func() (*Monthly, error) {
		if _, err := s.checkPortfolio(userID, q); err != nil {
			return nil, err
		}
		from, to := fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)

		entries, err := s.entries(userID, q.PortfolioID, from, to)
		if err != nil {
			return nil, err
		}
		totals, err := s.snapshots.DailyTotals(userID, q.PortfolioID, from, to)
		if err != nil {
			return nil, err
		}

		var months [12]flows
		var total flows
		for _, e := range entries {
			m, _ := strconv.Atoi(e.TransactionDate[5:7])
			months[m-1].add(e)
			total.add(e)
		}

		ends := lastValues(totals, monthKey)
		report := &Monthly{Year: q.Year, Months: make([]Period, 0, 12)}
		for i := range months {
			months[i].endValue = ends[fmt.Sprintf("%04d-%02d", q.Year, i+1)]
			report.Months = append(report.Months, months[i].period(q.Year, i+1))
		}
		total.endValue = lastValues(totals, yearKey)[strconv.Itoa(q.Year)]
		report.Total = total.period(q.Year, 0)
		return report, nil
	})
}

// Yearly rolls up every year that has transactions, oldest first.
func (s *Service) Yearly(userID string, q Query) (*Yearly, error) {
	return cached(s, userID, "yearly", q, func() (*Yearly, error) {
		if _, err := s.checkPortfolio(userID, q); err != nil {
			return nil, err
		}
		entries, err := s.entries(userID, q.PortfolioID, "", "")
		if err != nil {
			return nil, err
		}
		totals, err := s.snapshots.DailyTotals(userID, q.PortfolioID, "", "")
		if err != nil {
			return nil, err
		}
		return &Yearly{Years: yearPeriods(entries, totals)}, nil
	})
}

func yearPeriods(entries []ledger.Entry, totals []snapshots.DailyTotal) []Period {
	byYear := make(map[int]*flows)
	minY, maxY := 0, 0
	for _, e := range entries {
		y, _ := strconv.Atoi(yearKey(e.TransactionDate))
		f, ok := byYear[y]
		if !ok {
			f = &flows{}
			byYear[y] = f
		}
		f.add(e)
		if minY == 0 || y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}

	ends := lastValues(totals, yearKey)
	periods := make([]Period, 0, len(byYear))
	for y := minY; y <= maxY && minY != 0; y++ {
		f, ok := byYear[y]
		if !ok {
			continue
		}
		f.endValue = ends[strconv.Itoa(y)]
		periods = append(periods, f.period(y, 0))
	}
	return periods
}

// YearOverYear compares q.Year (default: this year) with the previous year.
func (s *Service) YearOverYear(userID string, q Query) (*YearOverYear, error) {
	year, err := s.resolveYear(q.Year)
	if err != nil {
		return nil, err
	}
	q.Year = year

	return cached(s, userID, "yoy", q, func() (*YearOverYear, error) {
		if _, err := s.checkPortfolio(userID, q); err != nil {
			return nil, err
		}
		from, to := fmt.Sprintf("%04d-01-01", year-1), fmt.Sprintf("%04d-12-31", year)
		entries, err := s.entries(userID, q.PortfolioID, from, to)
		if err != nil {
			return nil, err
		}
		totals, err := s.snapshots.DailyTotals(userID, q.PortfolioID, from, to)
		if err != nil {
			return nil, err
		}

		current := Period{Year: year}
		previous := Period{Year: year - 1}
		ends := lastValues(totals, yearKey)
		current.EndValue = ends[strconv.Itoa(year)]
		previous.EndValue = ends[strconv.Itoa(year-1)]
		for _, p := range yearPeriods(entries, totals) {
			switch p.Year {
			case year:
				current = p
			case year - 1:
				previous = p
			}
		}

		return &YearOverYear{
			Year:     year,
			Current:  current,
			Previous: previous,
			Deltas: map[string]Delta{
				"buys":              compare(current.Buys, previous.Buys),
				"sells":             compare(current.Sells, previous.Sells),
				"dividends":         compare(current.Dividends, previous.Dividends),
				"fees":              compare(current.Fees, previous.Fees),
				"net_flow":          compare(current.NetFlow, previous.NetFlow),
				"transaction_count": compare(float64(current.TransactionCount), float64(previous.TransactionCount)),
				"end_value":         compare(current.EndValue, previous.EndValue),
			},
		}, nil
	})
}

// compare computes the change from previous to current. The percentage is
// relative to the magnitude of previous and nil when previous is zero.
func compare(current, previous float64) Delta {
	cur, prev := domain.Dec(current), domain.Dec(previous)
	change := cur.Sub(prev)
	d := Delta{
		Current:  current,
		Previous: previous,
		Change:   domain.Money(change),
	}
	if !prev.IsZero() {
		pct := domain.Percent(change, prev.Abs())
		d.Percent = &pct
	}
	return d
}
