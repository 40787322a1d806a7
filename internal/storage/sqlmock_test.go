package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func TestListTransactionsByUser_QueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT id, user_id, description, amount, type, date FROM transactions WHERE user_id = \?`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("disk I/O error"))

	_, err := db.ListTransactionsByUser(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsByUser_RowError(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "description", "amount", "type", "date"}).
		AddRow(1, 7, "Salary", 1000.0, "income", "2024-01-01 00:00:00").
		RowError(0, errors.New("row failure"))
	mock.ExpectQuery(`SELECT id, user_id, description, amount, type, date FROM transactions`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	_, err := db.ListTransactionsByUser(context.Background(), 7)
	assert.Error(t, err)
}

func TestDeleteTransaction_ExecError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM transactions WHERE id = \? AND user_id = \?`).
		WithArgs(int64(3), int64(7)).
		WillReturnError(errors.New("database is locked"))

	removed, err := db.DeleteTransaction(context.Background(), 3, 7)
	require.Error(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordHash_NoRows(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \? WHERE username = \?`).
		WithArgs("newhash", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.UpdatePasswordHash(context.Background(), "ghost", "newhash")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_GenericErrorIsNotDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("alice", nil, "hash").
		WillReturnError(errors.New("no such table: users"))

	_, err := db.CreateUser(context.Background(), "alice", "", "hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
}
