package investments

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolios"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	conn        *sql.DB
	service     *Service
	alice       string
	bob         string
	portfolioID string
	published   []*events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "folio")
	conn := db.Conn()

	f := &fixture{conn: conn}
	f.alice = testingpkg.SeedUser(t, conn, "alice", "user")
	f.bob = testingpkg.SeedUser(t, conn, "bob", "user")
	f.portfolioID = testingpkg.SeedPortfolio(t, conn, f.alice, "Main")

	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(func(e *events.Event) { f.published = append(f.published, e) })
	f.service = NewService(
		conn,
		NewRepository(conn, zerolog.Nop()),
		ledger.NewRepository(conn, zerolog.Nop()),
		portfolios.NewRepository(conn, zerolog.Nop()),
		events.NewManager(bus, zerolog.Nop()),
		zerolog.Nop(),
	)
	f.service.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestService_CreateWithOpeningBuy(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.Create(f.alice, f.portfolioID, CreateInput{
		Symbol: " aapl ", Type: domain.InvestmentStock, Quantity: 10, PurchasePrice: 150, PurchaseDate: "2024-01-15",
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", view.Symbol)
	assert.Equal(t, "AAPL", view.Name, "name defaults to symbol")
	assert.Equal(t, "EUR", view.Currency, "currency defaults to the portfolio's")
	assert.Equal(t, 10.0, view.Quantity)
	assert.Equal(t, 150.0, view.AverageCost)
	assert.Equal(t, 150.0, view.CurrentPrice)
	assert.Equal(t, 1500.0, view.TotalCost)
	assert.Equal(t, 1500.0, view.CurrentValue)

	var n int
	require.NoError(t, f.conn.QueryRow("SELECT COUNT(*) FROM transactions WHERE investment_id = ? AND type = 'buy'", view.ID).Scan(&n))
	assert.Equal(t, 1, n)

	require.Len(t, f.published, 1)
	assert.Equal(t, events.InvestmentCreated, f.published[0].Type)
	assert.Equal(t, f.alice, f.published[0].UserID)
}

func TestService_CreateWithoutQuantity(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "BTC", Type: domain.InvestmentCrypto})
	require.NoError(t, err)
	assert.Zero(t, view.Quantity)
	assert.Equal(t, "2024-05-01", view.PurchaseDate)

	var n int
	require.NoError(t, f.conn.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&n))
	assert.Zero(t, n)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"missing symbol", CreateInput{}, "symbol"},
		{"bad type", CreateInput{Symbol: "X", Type: "tulips"}, "type"},
		{"bad date", CreateInput{Symbol: "X", PurchaseDate: "01/02/2024"}, "purchase_date"},
		{"negative quantity", CreateInput{Symbol: "X", Quantity: -1}, "quantity"},
		{"negative price", CreateInput{Symbol: "X", PurchasePrice: -1}, "purchase_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Create(f.alice, f.portfolioID, tt.input)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_OwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "VWCE", Quantity: 1, PurchasePrice: 100})
	require.NoError(t, err)

	_, err = f.service.Create(f.bob, f.portfolioID, CreateInput{Symbol: "X"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.List(f.bob, f.portfolioID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.Get(f.bob, view.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.UpdatePrice(f.bob, view.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.service.Delete(f.bob, view.ID), domain.ErrNotFound)
}

func TestService_UpdateKeepsPosition(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "VWCE", Quantity: 2, PurchasePrice: 100})
	require.NoError(t, err)

	sector := "Global"
	etf := domain.InvestmentETF
	updated, err := f.service.Update(f.alice, view.ID, UpdateInput{Sector: &sector, Type: &etf})
	require.NoError(t, err)
	assert.Equal(t, "Global", updated.Sector)
	assert.Equal(t, domain.InvestmentETF, updated.Type)
	assert.Equal(t, 2.0, updated.Quantity)
	assert.Equal(t, 100.0, updated.AverageCost)
}

func TestService_UpdatePrice(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "VWCE", Quantity: 10, PurchasePrice: 100})
	require.NoError(t, err)

	_, err = f.service.UpdatePrice(f.alice, view.ID, -5)
	assert.ErrorIs(t, err, domain.ErrValidation)

	priced, err := f.service.UpdatePrice(f.alice, view.ID, 110)
	require.NoError(t, err)
	assert.Equal(t, 1100.0, priced.CurrentValue)
	assert.Equal(t, 100.0, priced.GainLoss)
	assert.Equal(t, 10.0, priced.GainLossPct)
	require.NotNil(t, priced.PriceUpdatedAt)
}

func TestService_UpdatePrices(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "AAPL", Quantity: 1, PurchasePrice: 100})
	require.NoError(t, err)
	_, err = f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "MSFT", Quantity: 1, PurchasePrice: 200})
	require.NoError(t, err)

	result, err := f.service.UpdatePrices(f.alice, f.portfolioID, map[string]float64{
		"aapl": 120, "MSFT": 210, "TSLA": 300,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, []string{"TSLA"}, result.Unknown)

	list, err := f.service.List(f.alice, f.portfolioID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 120.0, list[0].CurrentPrice)
	assert.Equal(t, 210.0, list[1].CurrentPrice)

	last := f.published[len(f.published)-1]
	assert.Equal(t, events.PriceUpdated, last.Type)

	_, err = f.service.UpdatePrices(f.alice, f.portfolioID, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRepository_Totals(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(f.alice, f.portfolioID, CreateInput{Symbol: "AAPL", Quantity: 2, PurchasePrice: 100})
	require.NoError(t, err)

	count, value, err := f.service.Repository().Totals()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 200.0, value)
}
