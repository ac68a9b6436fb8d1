// Package domain contains the core types of the portfolio tracker.
// It has no infrastructure dependencies.
package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for purchase, transaction and snapshot dates.
const DateLayout = "2006-01-02"

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account holder. PasswordHash never leaves the server.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Portfolio groups investments owned by one user.
type Portfolio struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Currency    string    `json:"currency"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InvestmentType classifies an investment for distribution reports.
type InvestmentType string

const (
	InvestmentStock      InvestmentType = "stock"
	InvestmentETF        InvestmentType = "etf"
	InvestmentBond       InvestmentType = "bond"
	InvestmentMutualFund InvestmentType = "mutual_fund"
	InvestmentCrypto     InvestmentType = "crypto"
	InvestmentRealEstate InvestmentType = "real_estate"
	InvestmentCommodity  InvestmentType = "commodity"
	InvestmentCash       InvestmentType = "cash"
	InvestmentOther      InvestmentType = "other"
)

// InvestmentTypes lists every supported investment type.
var InvestmentTypes = []InvestmentType{
	InvestmentStock, InvestmentETF, InvestmentBond, InvestmentMutualFund, InvestmentCrypto,
	InvestmentRealEstate, InvestmentCommodity, InvestmentCash, InvestmentOther,
}

// IsValid reports whether t is a known investment type.
func (t InvestmentType) IsValid() bool {
	for _, known := range InvestmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Investment is a holding in a portfolio. Quantity, AverageCost, RealizedGain and
// Dividends are derived from the investment's transactions.
type Investment struct {
	ID             string         `json:"id"`
	PortfolioID    string         `json:"portfolio_id"`
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name"`
	Type           InvestmentType `json:"type"`
	Sector         string         `json:"sector"`
	Currency       string         `json:"currency"`
	Quantity       float64        `json:"quantity"`
	AverageCost    float64        `json:"average_cost"`
	CurrentPrice   float64        `json:"current_price"`
	RealizedGain   float64        `json:"realized_gain"`
	Dividends      float64        `json:"dividends"`
	PurchaseDate   string         `json:"purchase_date"`
	Notes          string         `json:"notes"`
	PriceUpdatedAt *time.Time     `json:"price_updated_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TransactionType is the kind of ledger entry.
type TransactionType string

const (
	TransactionBuy      TransactionType = "buy"
	TransactionSell     TransactionType = "sell"
	TransactionDividend TransactionType = "dividend"
	TransactionFee      TransactionType = "fee"
	TransactionSplit    TransactionType = "split"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDividend, TransactionFee, TransactionSplit:
		return true
	}
	return false
}

// Transaction is a ledger entry against an investment.
// For splits, Quantity carries the split ratio and Price is ignored.
type Transaction struct {
	ID              string          `json:"id"`
	InvestmentID    string          `json:"investment_id"`
	Type            TransactionType `json:"type"`
	Quantity        float64         `json:"quantity"`
	Price           float64         `json:"price"`
	Fees            float64         `json:"fees"`
	TransactionDate string          `json:"transaction_date"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	// Seq is the storage insertion order; it breaks ties between transactions
	// recorded on the same date within the same second.
	Seq int64 `json:"-"`
}

// Snapshot is the recorded value of a portfolio on a date.
type Snapshot struct {
	PortfolioID string    `json:"portfolio_id"`
	Date        string    `json:"date"`
	TotalValue  float64   `json:"total_value"`
	TotalCost   float64   `json:"total_cost"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Activity is a user-visible audit entry.
type Activity struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Summary   string                 `json:"summary"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeCurrency upper-cases a currency code, defaulting to EUR.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return "EUR"
	}
	return c
}
