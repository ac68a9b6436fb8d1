package events

import "fmt"

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
	// Summary is a one-line, human readable description for activity feeds
	Summary() string
}

// PortfolioData contains data for portfolio lifecycle events
type PortfolioData struct {
	Type        EventType `json:"-"`
	PortfolioID string    `json:"portfolio_id"`
	Name        string    `json:"name"`
}

// EventType returns the event type for PortfolioData
func (d *PortfolioData) EventType() EventType {
	return d.Type
}

// Summary describes the portfolio change
func (d *PortfolioData) Summary() string {
	switch d.Type {
	case PortfolioCreated:
		return fmt.Sprintf("Created portfolio %q", d.Name)
	case PortfolioDeleted:
		return fmt.Sprintf("Deleted portfolio %q", d.Name)
	default:
		return fmt.Sprintf("Updated portfolio %q", d.Name)
	}
}

// InvestmentData contains data for investment lifecycle events
type InvestmentData struct {
	Type         EventType `json:"-"`
	InvestmentID string    `json:"investment_id"`
	PortfolioID  string    `json:"portfolio_id"`
	Symbol       string    `json:"symbol"`
}

// EventType returns the event type for InvestmentData
func (d *InvestmentData) EventType() EventType {
	return d.Type
}

// Summary describes the investment change
func (d *InvestmentData) Summary() string {
	switch d.Type {
	case InvestmentCreated:
		return fmt.Sprintf("Added %s", d.Symbol)
	case InvestmentDeleted:
		return fmt.Sprintf("Removed %s", d.Symbol)
	default:
		return fmt.Sprintf("Updated %s", d.Symbol)
	}
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	PortfolioID string             `json:"portfolio_id"`
	Prices      map[string]float64 `json:"prices"` // symbol -> price
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// Summary describes the price update
func (d *PriceUpdatedData) Summary() string {
	if len(d.Prices) == 1 {
		for symbol, price := range d.Prices {
			return fmt.Sprintf("Updated %s price to %.2f", symbol, price)
		}
	}
	return fmt.Sprintf("Updated %d prices", len(d.Prices))
}

// TransactionData contains data for transaction events
type TransactionData struct {
	Type            EventType `json:"-"`
	TransactionID   string    `json:"transaction_id"`
	InvestmentID    string    `json:"investment_id"`
	PortfolioID     string    `json:"portfolio_id"`
	Symbol          string    `json:"symbol"`
	Kind            string    `json:"kind"` // buy, sell, dividend, fee, split
	Quantity        float64   `json:"quantity"`
	Amount          float64   `json:"amount"`
	TransactionDate string    `json:"transaction_date"`
}

// EventType returns the event type for TransactionData
func (d *TransactionData) EventType() EventType {
	return d.Type
}

// Summary describes the transaction change
func (d *TransactionData) Summary() string {
	switch d.Type {
	case TransactionDeleted:
		return fmt.Sprintf("Deleted %s transaction for %s", d.Kind, d.Symbol)
	case TransactionUpdated:
		return fmt.Sprintf("Edited %s transaction for %s", d.Kind, d.Symbol)
	}
	switch d.Kind {
	case "buy":
		return fmt.Sprintf("Bought %g %s for %.2f", d.Quantity, d.Symbol, d.Amount)
	case "sell":
		return fmt.Sprintf("Sold %g %s for %.2f", d.Quantity, d.Symbol, d.Amount)
	case "dividend":
		return fmt.Sprintf("Received %.2f dividend from %s", d.Amount, d.Symbol)
	case "split":
		return fmt.Sprintf("Recorded %g:1 split of %s", d.Quantity, d.Symbol)
	default:
		return fmt.Sprintf("Recorded %s of %.2f on %s", d.Kind, d.Amount, d.Symbol)
	}
}

// UserData contains data for user account events
type UserData struct {
	Type     EventType `json:"-"`
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	ActorID  string    `json:"actor_id,omitempty"` // admin performing the change
	IsActive bool      `json:"is_active"`
}

// EventType returns the event type for UserData
func (d *UserData) EventType() EventType {
	return d.Type
}

// Summary describes the account change
func (d *UserData) Summary() string {
	switch d.Type {
	case UserCreated:
		return fmt.Sprintf("Account %s created", d.Email)
	case UserDeleted:
		return fmt.Sprintf("Account %s deleted", d.Email)
	case UserLoggedIn:
		return "Signed in"
	default:
		return fmt.Sprintf("Account %s updated", d.Email)
	}
}

// SnapshotRecordedData contains data for SnapshotRecorded events
type SnapshotRecordedData struct {
	Date       string  `json:"date"`
	Portfolios int     `json:"portfolios"`
	TotalValue float64 `json:"total_value"`
}

// EventType returns the event type for SnapshotRecordedData
func (d *SnapshotRecordedData) EventType() EventType {
	return SnapshotRecorded
}

// Summary describes the snapshot run
func (d *SnapshotRecordedData) Summary() string {
	return fmt.Sprintf("Recorded %d portfolio snapshots for %s", d.Portfolios, d.Date)
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Uploaded  bool   `json:"uploaded"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// Summary describes the backup
func (d *BackupCompletedData) Summary() string {
	return fmt.Sprintf("Backup %s completed", d.Filename)
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// Summary describes the error
func (d *ErrorEventData) Summary() string {
	if d.Context == "" {
		return d.Error
	}
	return d.Context + ": " + d.Error
}
