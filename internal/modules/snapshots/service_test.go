package snapshots

import (
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPortfolios struct {
	mock.Mock
}

func (m *mockPortfolios) ListActive() ([]domain.Portfolio, error) {
	args := m.Called()
	return args.Get(0).([]domain.Portfolio), args.Error(1)
}

func (m *mockPortfolios) GetForUser(userID, id string) (*domain.Portfolio, error) {
	args := m.Called(userID, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.Portfolio), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInvestments struct {
	mock.Mock
}

func (m *mockInvestments) ListByPortfolio(portfolioID string) ([]domain.Investment, error) {
	args := m.Called(portfolioID)
	return args.Get(0).([]domain.Investment), args.Error(1)
}

func TestRecordAll(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "folio")
	conn := db.Conn()
	alice := testingpkg.SeedUser(t, conn, "alice", "user")
	bob := testingpkg.SeedUser(t, conn, "bob", "user")
	p1 := testingpkg.SeedPortfolio(t, conn, alice, "A1")
	p2 := testingpkg.SeedPortfolio(t, conn, alice, "A2")
	p3 := testingpkg.SeedPortfolio(t, conn, bob, "B1")

	portfolios := &mockPortfolios{}
	portfolios.On("ListActive").Return([]domain.Portfolio{
		{ID: p1, UserID: alice}, {ID: p2, UserID: alice}, {ID: p3, UserID: bob},
	}, nil)
	invs := &mockInvestments{}
	invs.On("ListByPortfolio", p1).Return([]domain.Investment{{Quantity: 10, AverageCost: 10, CurrentPrice: 11}}, nil)
	invs.On("ListByPortfolio", p2).Return([]domain.Investment{{Quantity: 1, AverageCost: 50, CurrentPrice: 40}}, nil)
	invs.On("ListByPortfolio", p3).Return([]domain.Investment{}, nil)

	bus := events.NewBus(zerolog.Nop())
	var recorded []*events.Event
	bus.Subscribe(func(e *events.Event) { recorded = append(recorded, e) }, events.SnapshotRecorded)

	repo := NewRepository(conn, zerolog.Nop())
	svc := NewService(repo, portfolios, invs, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 23, 55, 0, 0, time.UTC) }

	result, err := svc.RecordAll()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", result.Date)
	assert.Equal(t, 3, result.Portfolios)
	assert.Equal(t, 150.0, result.TotalValue)

	require.Len(t, recorded, 2)
	assert.Equal(t, alice, recorded[0].UserID)
	assert.Equal(t, 150.0, recorded[0].Data.(*events.SnapshotRecordedData).TotalValue)

	// Running twice on the same day replaces rather than duplicates.
	_, err = svc.RecordAll()
	require.NoError(t, err)
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	totals, err := repo.DailyTotals(alice, "", "", "")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 150.0, totals[0].TotalValue)
	assert.Equal(t, 150.0, totals[0].TotalCost)
}

func TestDailyTotalsAndRanges(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "folio")
	conn := db.Conn()
	alice := testingpkg.SeedUser(t, conn, "alice", "user")
	p1 := testingpkg.SeedPortfolio(t, conn, alice, "A1")
	p2 := testingpkg.SeedPortfolio(t, conn, alice, "A2")
	testingpkg.SeedSnapshot(t, conn, p1, "2024-01-01", 100, 90)
	testingpkg.SeedSnapshot(t, conn, p2, "2024-01-01", 50, 40)
	testingpkg.SeedSnapshot(t, conn, p1, "2024-01-02", 110, 90)

	repo := NewRepository(conn, zerolog.Nop())

	totals, err := repo.DailyTotals(alice, "", "", "")
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, DailyTotal{Date: "2024-01-01", TotalValue: 150, TotalCost: 130}, totals[0])

	only, err := repo.DailyTotals(alice, p2, "", "")
	require.NoError(t, err)
	require.Len(t, only, 1)

	ranged, err := repo.ListByPortfolio(p1, "2024-01-02", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 110.0, ranged[0].TotalValue)
}

func TestListForPortfolioChecksOwnershipAndRange(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "folio")
	portfolios := &mockPortfolios{}
	portfolios.On("GetForUser", "bob", "p1").Return(nil, domain.NotFoundf("portfolio"))
	portfolios.On("GetForUser", "alice", "p1").Return(&domain.Portfolio{ID: "p1"}, nil)

	svc := NewService(NewRepository(db.Conn(), zerolog.Nop()), portfolios, &mockInvestments{}, nil, zerolog.Nop())

	_, err := svc.ListForPortfolio("bob", "p1", "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ListForPortfolio("alice", "p1", "2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := svc.ListForPortfolio("alice", "p1", "", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
