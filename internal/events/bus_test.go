package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FiltersByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []EventType
	bus.Subscribe(func(e *Event) { got = append(got, e.Type) }, PortfolioCreated)

	bus.Publish(&Event{Type: PortfolioCreated})
	bus.Publish(&Event{Type: InvestmentCreated})

	assert.Equal(t, []EventType{PortfolioCreated}, got)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	bus.Subscribe(func(e *Event) { count++ })

	bus.Publish(&Event{Type: PortfolioCreated})
	bus.Publish(&Event{Type: UserCreated})

	assert.Equal(t, 2, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	id := bus.Subscribe(func(e *Event) { count++ })
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(id)
	bus.Publish(&Event{Type: PortfolioCreated})

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBus_PanickingHandlerIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe(func(e *Event) { panic("bad handler") })
	bus.Subscribe(func(e *Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(&Event{Type: PortfolioCreated})
	})
	assert.True(t, delivered)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(e *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(&Event{Type: PriceUpdated})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}

func TestManager_Emit(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(func(e *Event) { received = e })

	manager.Emit("portfolios", "user-1", &PortfolioData{
		Type:        PortfolioCreated,
		PortfolioID: "p1",
		Name:        "Retirement",
	})

	require.NotNil(t, received)
	assert.Equal(t, PortfolioCreated, received.Type)
	assert.Equal(t, "user-1", received.UserID)
	assert.Equal(t, "portfolios", received.Module)
	assert.False(t, received.Timestamp.IsZero())
	assert.Equal(t, `Created portfolio "Retirement"`, received.Data.Summary())
}

func TestManager_NilIsNoop(t *testing.T) {
	var manager *Manager
	assert.NotPanics(t, func() {
		manager.Emit("x", "", &SnapshotRecordedData{})
	})
}

func TestEvent_JSON(t *testing.T) {
	event := Event{
		Type:   TransactionRecorded,
		UserID: "u1",
		Data: &TransactionData{
			Type:     TransactionRecorded,
			Symbol:   "AAPL",
			Kind:     "buy",
			Quantity: 2,
			Amount:   300,
		},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"TRANSACTION_RECORDED"`)
	assert.Contains(t, string(raw), `"symbol":"AAPL"`)
	assert.Equal(t, "Bought 2 AAPL for 300.00", event.Data.Summary())
}

func TestSummaries(t *testing.T) {
	assert.Equal(t, "Updated AAPL price to 190.50",
		(&PriceUpdatedData{Prices: map[string]float64{"AAPL": 190.5}}).Summary())
	assert.Equal(t, "Updated 2 prices",
		(&PriceUpdatedData{Prices: map[string]float64{"A": 1, "B": 2}}).Summary())
	assert.Equal(t, "Signed in", (&UserData{Type: UserLoggedIn}).Summary())
	assert.Equal(t, "Recorded 2:1 split of MSFT",
		(&TransactionData{Type: TransactionRecorded, Kind: "split", Quantity: 2, Symbol: "MSFT"}).Summary())
}
