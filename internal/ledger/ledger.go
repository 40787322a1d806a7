// Package ledger records a user's income and expense transactions and derives
// the net position from them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// DateLayout is the format of the optional date form field.
const DateLayout = "2006-01-02T15:04"

var (
	// ErrNotFound is returned when the transaction does not exist.
	ErrNotFound = errors.New("ledger: transaction not found")
	// ErrNotOwner is returned when the transaction belongs to another user.
	ErrNotOwner = errors.New("ledger: transaction not owned by user")
)

// ValidationError reports a bad or missing form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AddInput is a validated request to record a transaction.
type AddInput struct {
	Description string
	Amount      float64
	Type        models.TransactionType
	Date        time.Time
}

// ParseAddInput validates raw form values. An empty or unparseable date
// yields a zero Date, which the store replaces with the current time.
func ParseAddInput(description, amount, typ, date string) (AddInput, error) {
	var in AddInput

	in.Description = strings.TrimSpace(description)
	if in.Description == "" {
		return in, &ValidationError{Field: "description", Message: "description is required"}
	}

	amount = strings.TrimSpace(amount)
	if amount == "" {
		return in, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return in, &ValidationError{Field: "amount", Message: "amount must be a number"}
	}
	if v < 0 {
		return in, &ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	// "-0" parses to negative zero; store it as plain zero.
	in.Amount = math.Abs(v)

	t, ok := models.ParseTransactionType(typ)
	if !ok {
		return in, &ValidationError{Field: "type", Message: "type must be income or expense"}
	}
	in.Type = t

	if d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.Local); err == nil {
		in.Date = d
	}

	return in, nil
}

// NetPosition returns income minus expense rounded to two decimals, half away
// from zero. Amounts are summed as decimals so that binary float error does
// not leak into the rounding step.
func NetPosition(txs []models.Transaction) float64 {
	income, expense := totals(txs)
	return income.Sub(expense).Round(2).InexactFloat64()
}

func totals(txs []models.Transaction) (income, expense decimal.Decimal) {
	for _, t := range txs {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case models.TransactionIncome:
			income = income.Add(amount)
		case models.TransactionExpense:
			expense = expense.Add(amount)
		}
	}
	return income, expense
}

// Store is the persistence the ledger needs.
type Store interface {
	CreateTransaction(ctx context.Context, t models.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID int64) (bool, error)
}

// Summary is what the index page shows.
type Summary struct {
	Transactions []models.Transaction
	Income       float64
	Expense      float64
	Net          float64
}

// Service adds, removes and lists a user's transactions.
type Service struct {
	store Store
}

// NewService creates a ledger service over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add records a transaction for ownerID and returns its ID.
func (s *Service) Add(ctx context.Context, ownerID int64, in AddInput) (int64, error) {
	id, err := s.store.CreateTransaction(ctx, models.Transaction{
		UserID:      ownerID,
		Description: in.Description,
		Amount:      in.Amount,
		Type:        in.Type,
		Date:        in.Date,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// Remove deletes transaction id if ownerID owns it.
func (s *Service) Remove(ctx context.Context, ownerID, id int64) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get transaction: %w", err)
	}
	if t.UserID != ownerID {
		return ErrNotOwner
	}

	removed, err := s.store.DeleteTransaction(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !removed {
		// Deleted by a concurrent request between the lookup and the delete.
		return ErrNotFound
	}
	return nil
}

// List returns ownerID's transactions in the order they were added.
func (s *Service) List(ctx context.Context, ownerID int64) ([]models.Transaction, error) {
	txs, err := s.store.ListTransactionsByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Summary lists ownerID's transactions together with the totals.
func (s *Service) Summary(ctx context.Context, ownerID int64) (*Summary, error) {
	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	income, expense := totals(txs)
	return &Summary{
		Transactions: txs,
		Income:       income.Round(2).InexactFloat64(),
		Expense:      expense.Round(2).InexactFloat64(),
		Net:          NetPosition(txs),
	}, nil
}

// MonthSummary is a Summary restricted to one calendar month.
type MonthSummary struct {
	Summary
	Year  int
	Month time.Month
}

// Month returns ownerID's transactions dated within the given month of
// loc, with totals computed over that month only.
func (s *Service) Month(ctx context.Context, ownerID int64, year int, month time.Month, loc *time.Location) (*MonthSummary, error) {
	if month < time.January || month > time.December {
		return nil, &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if loc == nil {
		loc = time.Local
	}

	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	inMonth := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.Date.Before(start) && t.Date.Before(end) {
			inMonth = append(inMonth, t)
		}
	}

	income, expense := totals(inMonth)
	return &MonthSummary{
		Summary: Summary{
			Transactions: inMonth,
			Income:       income.Round(2).InexactFloat64(),
			Expense:      expense.Round(2).InexactFloat64(),
			Net:          NetPosition(inMonth),
		},
		Year:  year,
		Month: month,
	}, nil
}
