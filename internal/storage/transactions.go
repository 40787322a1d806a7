package storage

import (
	"context"
	"time"

	"finance-tracker/internal/models"
)

// CreateTransaction inserts a transaction and returns its ID.
// A zero date is replaced with the current time.
func (db *DB) CreateTransaction(ctx context.Context, t models.Transaction) (int64, error) {
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO transactions (user_id, description, amount, type, date) VALUES (?, ?, ?, ?, ?)",
		t.UserID, t.Description, t.Amount, string(t.Type), t.Date.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetTransaction retrieves a single transaction by ID.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, user_id, description, amount, type, date FROM transactions WHERE id = ?",
		id,
	)

	var t models.Transaction
	var typ string
	if err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &typ, &t.Date); err != nil {
		return nil, mapNoRows(err)
	}
	t.Type = models.TransactionType(typ)
	return &t, nil
}

// ListTransactionsByUser retrieves a user's transactions in insertion order.
func (db *DB) ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, user_id, description, amount, type, date FROM transactions WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &typ, &t.Date); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(typ)
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

// DeleteTransaction removes the transaction with the given ID if it belongs to
// userID. It reports whether a row was removed.
func (db *DB) DeleteTransaction(ctx context.Context, id, userID int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
