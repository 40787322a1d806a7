package models

import (
	"strings"
	"time"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// ParseTransactionType normalizes s to one of the known types, ignoring case
// and surrounding whitespace.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case TransactionIncome:
		return TransactionIncome, true
	case TransactionExpense:
		return TransactionExpense, true
	}
	return "", false
}

// Label returns the display form of the type.
func (t TransactionType) Label() string {
	switch t {
	case TransactionIncome:
		return "Income"
	case TransactionExpense:
		return "Expense"
	}
	return string(t)
}

// Transaction represents a financial movement owned by a user.
// Amount is a non-negative magnitude; the sign comes from Type.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
}

// IsIncome reports whether the transaction adds to the net position.
func (t Transaction) IsIncome() bool {
	return t.Type == TransactionIncome
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token        string    `json:"token"`
	UserID       int64     `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}
