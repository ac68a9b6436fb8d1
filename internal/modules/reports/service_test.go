package reports

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/investments"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolios"
	"github.com/aristath/folio/internal/modules/snapshots"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	conn    *sql.DB
	svc     *Service
	cache   *cache.Repository
	alice   string
	bob     string
	growth  string
	income  string
	bobPort string
}

// newReportFixture seeds two portfolios for alice and one for bob.
//
//	growth: AAPL 10 @ 100 -> 150 (tech), BTC 1 @ 20000 -> 15000 (crypto, no sector)
//	income: VWRL 20 @ 50 -> 55 (etf)
//	bob:    MSFT 5 @ 10 -> 20
func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "folio")
	cacheDB, _ := testingpkg.NewTestDB(t, "cache")
	conn := db.Conn()
	log := zerolog.Nop()

	f := &reportFixture{conn: conn}
	f.alice = testingpkg.SeedUser(t, conn, "alice", "user")
	f.bob = testingpkg.SeedUser(t, conn, "bob", "user")
	f.growth = testingpkg.SeedPortfolio(t, conn, f.alice, "Growth")
	f.income = testingpkg.SeedPortfolio(t, conn, f.alice, "Income")
	f.bobPort = testingpkg.SeedPortfolio(t, conn, f.bob, "Bob")

	aapl := testingpkg.SeedInvestment(t, conn, f.growth, testingpkg.InvestmentFixture{
		Symbol: "AAPL", Sector: "Technology", Quantity: 10, AverageCost: 100, CurrentPrice: 150,
	})
	testingpkg.SeedInvestment(t, conn, f.growth, testingpkg.InvestmentFixture{
		Symbol: "BTC", Type: "crypto", Quantity: 1, AverageCost: 20000, CurrentPrice: 15000,
	})
	vwrl := testingpkg.SeedInvestment(t, conn, f.income, testingpkg.InvestmentFixture{
		Symbol: "VWRL", Type: "etf", Sector: "Global", Quantity: 20, AverageCost: 50, CurrentPrice: 55,
	})
	msft := testingpkg.SeedInvestment(t, conn, f.bobPort, testingpkg.InvestmentFixture{
		Symbol: "MSFT", Quantity: 5, AverageCost: 10, CurrentPrice: 20,
	})

	testingpkg.SeedTransaction(t, conn, aapl, "buy", 10, 100, 5, "2023-03-10")
	testingpkg.SeedTransaction(t, conn, aapl, "buy", 5, 120, 0, "2024-01-15")
	testingpkg.SeedTransaction(t, conn, aapl, "sell", 5, 140, 2, "2024-02-20")
	testingpkg.SeedTransaction(t, conn, vwrl, "dividend", 20, 1.5, 0, "2024-02-28")
	testingpkg.SeedTransaction(t, conn, vwrl, "fee", 1, 10, 0, "2024-12-31")
	testingpkg.SeedTransaction(t, conn, msft, "buy", 5, 10, 0, "2024-01-15")

	testingpkg.SeedSnapshot(t, conn, f.growth, "2023-12-31", 1000, 1000)
	testingpkg.SeedSnapshot(t, conn, f.growth, "2024-01-31", 1100, 1000)
	testingpkg.SeedSnapshot(t, conn, f.income, "2024-01-31", 900, 1000)
	testingpkg.SeedSnapshot(t, conn, f.growth, "2024-02-15", 1200, 1000)
	testingpkg.SeedSnapshot(t, conn, f.growth, "2024-02-29", 1300, 1000)

	f.cache = cache.NewRepository(cacheDB.Conn(), log)
	f.svc = NewService(
		portfolios.NewRepository(conn, log),
		investments.NewRepository(conn, log),
		ledger.NewRepository(conn, log),
		snapshots.NewRepository(conn, log),
		f.cache,
		time.Minute,
		log,
	)
	f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestSummary(t *testing.T) {
	f := newReportFixture(t)

	s, err := f.svc.Summary(f.alice, Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, s.PortfolioCount)
	assert.Equal(t, 3, s.InvestmentCount)
	assert.Equal(t, 22000.0, s.TotalCost)
	assert.Equal(t, 17600.0, s.CurrentValue)
	assert.Equal(t, -4400.0, s.GainLoss)
	assert.Equal(t, -20.0, s.GainLossPct)

	require.Len(t, s.TopPerformers, 3)
	assert.Equal(t, "AAPL", s.TopPerformers[0].Symbol)
	assert.Equal(t, 50.0, s.TopPerformers[0].GainLossPct)
	assert.Equal(t, "VWRL", s.TopPerformers[1].Symbol)
	assert.Equal(t, "BTC", s.WorstPerformers[0].Symbol)
	require.NotNil(t, s.Best)
	assert.Equal(t, "AAPL", s.Best.Symbol)
	assert.Equal(t, "BTC", s.Worst.Symbol)

	limited, err := f.svc.Summary(f.alice, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited.TopPerformers, 1)
	assert.Len(t, limited.WorstPerformers, 1)

	single, err := f.svc.Summary(f.alice, Query{PortfolioID: f.income})
	require.NoError(t, err)
	assert.Equal(t, 1, single.PortfolioCount)
	assert.Equal(t, 1100.0, single.CurrentValue)
}

func TestReportsAreScopedToOwner(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.Summary(f.bob, Query{PortfolioID: f.growth})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Monthly(f.bob, Query{PortfolioID: f.growth, Year: 2024})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s, err := f.svc.Summary(f.bob, Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.InvestmentCount)
	assert.Equal(t, 100.0, s.CurrentValue)
}

func TestDistribution(t *testing.T) {
	f := newReportFixture(t)

	d, err := f.svc.Distribution(f.alice, Query{})
	require.NoError(t, err)
	assert.Equal(t, 17600.0, d.TotalValue)

	require.Len(t, d.ByType, 3)
	assert.Equal(t, "crypto", d.ByType[0].Key)
	assert.Equal(t, 15000.0, d.ByType[0].Value)

	require.Len(t, d.ByPortfolio, 2)
	assert.Equal(t, "Growth", d.ByPortfolio[0].Label)
	assert.Equal(t, 2, d.ByPortfolio[0].Count)

	labels := make([]string, 0, len(d.BySector))
	for _, b := range d.BySector {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"Unclassified", "Technology", "Global"}, labels)

	for _, buckets := range [][]Bucket{d.ByType, d.ByPortfolio, d.BySector} {
		var sum float64
		for _, b := range buckets {
			sum += b.Percentage
		}
		assert.InDelta(t, 100, sum, 0.05)
	}
}

func TestDistributionEmpty(t *testing.T) {
	f := newReportFixture(t)
	carol := testingpkg.SeedUser(t, f.conn, "carol", "user")
	testingpkg.SeedPortfolio(t, f.conn, carol, "Empty")

	d, err := f.svc.Distribution(carol, Query{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.TotalValue)
	assert.Empty(t, d.ByType)
	assert.Empty(t, d.ByPortfolio)
	assert.Empty(t, d.BySector)
}

func TestMonthly(t *testing.T) {
	f := newReportFixture(t)

	m, err := f.svc.Monthly(f.alice, Query{Year: 2024})
	require.NoError(t, err)
	require.Len(t, m.Months, 12)

	jan := m.Months[0]
	assert.Equal(t, 600.0, jan.Buys)
	assert.Equal(t, 1, jan.TransactionCount)
	assert.Equal(t, 2000.0, jan.EndValue)

	feb := m.Months[1]
	assert.Equal(t, 698.0, feb.Sells)
	assert.Equal(t, 30.0, feb.Dividends)
	assert.Equal(t, -728.0, feb.NetFlow)
	assert.Equal(t, 1300.0, feb.EndValue)

	assert.Equal(t, 0.0, m.Months[5].EndValue)
	assert.Equal(t, 10.0, m.Months[11].Fees)

	assert.Equal(t, 4, m.Total.TransactionCount)
	assert.Equal(t, 600.0-698.0-30.0+10.0, m.Total.NetFlow)
	assert.Equal(t, 1300.0, m.Total.EndValue)

	_, err = f.svc.Monthly(f.alice, Query{Year: 1800})
	assert.ErrorIs(t, err, domain.ErrValidation)

	current, err := f.svc.Monthly(f.alice, Query{})
	require.NoError(t, err)
	assert.Equal(t, 2024, current.Year)
}

func TestYearlyAndYearOverYear(t *testing.T) {
	f := newReportFixture(t)

	y, err := f.svc.Yearly(f.alice, Query{})
	require.NoError(t, err)
	require.Len(t, y.Years, 2)
	assert.Equal(t, 2023, y.Years[0].Year)
	assert.Equal(t, 1005.0, y.Years[0].Buys)
	assert.Equal(t, 1000.0, y.Years[0].EndValue)
	assert.Equal(t, 2024, y.Years[1].Year)

	yoy, err := f.svc.YearOverYear(f.alice, Query{Year: 2024})
	require.NoError(t, err)
	buys := yoy.Deltas["buys"]
	assert.Equal(t, 600.0, buys.Current)
	assert.Equal(t, 1005.0, buys.Previous)
	assert.Equal(t, -405.0, buys.Change)
	require.NotNil(t, buys.Percent)
	assert.Equal(t, -40.3, *buys.Percent)

	// 2023 had no dividends, so there is no meaningful percentage.
	assert.Nil(t, yoy.Deltas["dividends"].Percent)
	assert.Equal(t, 30.0, yoy.Deltas["dividends"].Change)

	// A year with no data at all compares against zeros.
	early, err := f.svc.YearOverYear(f.alice, Query{Year: 2020})
	require.NoError(t, err)
	assert.Nil(t, early.Deltas["end_value"].Percent)
}

func TestHistory(t *testing.T) {
	f := newReportFixture(t)

	h, err := f.svc.History(f.alice, Query{From: "2023-01-01", To: "2024-12-31", SMAPeriod: 2})
	require.NoError(t, err)
	require.Len(t, h.Points, 4)

	assert.Equal(t, "2023-12-31", h.Points[0].Date)
	assert.Nil(t, h.Points[0].DailyReturn)
	assert.Nil(t, h.Points[0].SMA)
	assert.Equal(t, 2000.0, h.Points[1].TotalValue)
	require.NotNil(t, h.Points[1].DailyReturn)
	assert.Equal(t, 100.0, *h.Points[1].DailyReturn)
	require.NotNil(t, h.Points[1].SMA)
	assert.Equal(t, 1500.0, *h.Points[1].SMA)

	assert.Equal(t, 40.0, h.MaxDrawdown)
	assert.Equal(t, 30.0, h.PeriodReturn)
	assert.Greater(t, h.Volatility, 0.0)

	defaults, err := f.svc.History(f.alice, Query{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", defaults.To)
	assert.Equal(t, "2023-06-02", defaults.From)
	assert.Equal(t, defaultSMAPeriod, defaults.SMAPeriod)

	_, err = f.svc.History(f.alice, Query{From: "2024-02-01", To: "2024-01-01"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.History(f.alice, Query{SMAPeriod: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReportCache(t *testing.T) {
	f := newReportFixture(t)

	first, err := f.svc.Summary(f.alice, Query{})
	require.NoError(t, err)

	n, err := f.cache.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, err := f.svc.Summary(f.alice, Query{})
	require.NoError(t, err)
	assert.Equal(t, first.CurrentValue, second.CurrentValue)
	assert.Equal(t, first.TopPerformers, second.TopPerformers)

	removed, err := f.cache.InvalidateOwner(f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestReportCache_SkipsResultBuiltAcrossInvalidation(t *testing.T) {
	f := newReportFixture(t)

	builds := 0
	build := func() (float64, error) {
		builds++
		if builds == 1 {
			// A holding changes while the first report is being computed.
			_, err := f.cache.InvalidateOwner(f.alice)
			require.NoError(t, err)
			return 1, nil
		}
		return 2, nil
	}

	v, err := cached(f.svc, f.alice, "net_value", Query{}, build)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	n, err := f.cache.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "stale result must not be cached")

	v, err = cached(f.svc, f.alice, "net_value", Query{}, build)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, 2, builds)

	v, err = cached(f.svc, f.alice, "net_value", Query{}, build)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, 2, builds, "second result is cached")
}
