// Package events provides the in-process event bus used to fan domain changes out
// to activity logging, report cache invalidation, and live websocket clients.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PortfolioCreated EventType = "PORTFOLIO_CREATED"
	PortfolioUpdated EventType = "PORTFOLIO_UPDATED"
	PortfolioDeleted EventType = "PORTFOLIO_DELETED"

	InvestmentCreated EventType = "INVESTMENT_CREATED"
	InvestmentUpdated EventType = "INVESTMENT_UPDATED"
	InvestmentDeleted EventType = "INVESTMENT_DELETED"
	PriceUpdated      EventType = "PRICE_UPDATED"

	TransactionRecorded EventType = "TRANSACTION_RECORDED"
	TransactionUpdated  EventType = "TRANSACTION_UPDATED"
	TransactionDeleted  EventType = "TRANSACTION_DELETED"

	UserCreated  EventType = "USER_CREATED"
	UserUpdated  EventType = "USER_UPDATED"
	UserDeleted  EventType = "USER_DELETED"
	UserLoggedIn EventType = "USER_LOGGED_IN"

	SnapshotRecorded EventType = "SNAPSHOT_RECORDED"
	BackupCompleted  EventType = "BACKUP_COMPLETED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// PortfolioDataChanged lists the event types that change a user's holdings and
// therefore invalidate that user's reports.
var PortfolioDataChanged = []EventType{
	PortfolioCreated, PortfolioUpdated, PortfolioDeleted,
	InvestmentCreated, InvestmentUpdated, InvestmentDeleted, PriceUpdated,
	TransactionRecorded, TransactionUpdated, TransactionDeleted,
	SnapshotRecorded,
}

// Event is a published occurrence. UserID is empty for system-wide events.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	UserID    string    `json:"user_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}
