package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/ticket-gate/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestMarkConsumed_OnlyFirstWins(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	q := regexp.QuoteMeta("WHERE id = ? AND consumed = 0")

	mock.ExpectExec(q).WithArgs(uint64(5), uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(uint64(5), uint64(1)).WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.MarkConsumed(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkConsumed(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketCreate_DuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'token_id'"})

	id := uint64(7)
	err := repo.Create(context.Background(), &model.Ticket{EventID: 1, OwnerUserID: 2, TokenID: &id, OwnerAddress: "0x1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func restoreTicket(hash string) *model.Ticket {
	id := uint64(7)
	return &model.Ticket{EventID: 1, OwnerUserID: 2, TokenID: &id, OwnerAddress: "0x1", MintTxHash: &hash, ChainBacked: true}
}

func TestTicketRestore_ReturnsExistingID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tickets WHERE mint_tx_hash = ?")).WithArgs("0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))

	tk := restoreTicket("0xabc")
	require.NoError(t, repo.Restore(context.Background(), tk))
	assert.Equal(t, uint64(31), tk.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRestore_InsertsMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tickets WHERE mint_tx_hash = ?")).WithArgs("0xabc").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO tickets").WillReturnResult(sqlmock.NewResult(40, 1))

	tk := restoreTicket("0xabc")
	require.NoError(t, repo.Restore(context.Background(), tk))
	assert.Equal(t, uint64(40), tk.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRestore_TokenHeldByOtherTicket(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	byHash := regexp.QuoteMeta("SELECT id FROM tickets WHERE mint_tx_hash = ?")
	mock.ExpectQuery(byHash).WithArgs("0xabc").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO tickets").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'token_id'"})
	mock.ExpectQuery(byHash).WithArgs("0xabc").WillReturnError(sql.ErrNoRows)

	tk := restoreTicket("0xabc")
	err := repo.Restore(context.Background(), tk)
	assert.ErrorIs(t, err, ErrTokenTaken)
	assert.Zero(t, tk.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRestore_ConcurrentReplayWins(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	byHash := regexp.QuoteMeta("SELECT id FROM tickets WHERE mint_tx_hash = ?")
	mock.ExpectQuery(byHash).WithArgs("0xabc").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO tickets").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery(byHash).WithArgs("0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(55))

	tk := restoreTicket("0xabc")
	require.NoError(t, repo.Restore(context.Background(), tk))
	assert.Equal(t, uint64(55), tk.ID)
}

func TestGetByTokenID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	now := time.Now().UTC()
	cols := []string{"id", "event_id", "owner_user_id", "token_id", "owner_address", "mint_tx_hash",
		"chain_backed", "consumed", "consumed_at", "consumed_by_staff_id", "created_at"}

	mock.ExpectQuery("FROM tickets WHERE token_id = ?").WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 1, 42, 7, "0x1", "0xabc", true, false, nil, nil, now))
	mock.ExpectQuery("FROM tickets WHERE token_id = ?").WithArgs(uint64(8)).
		WillReturnError(sql.ErrNoRows)

	tk, err := repo.GetByTokenID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *tk.TokenID)
	assert.Equal(t, "0xabc", *tk.MintTxHash)
	assert.True(t, tk.ChainBacked)
	assert.Nil(t, tk.ConsumedAt)

	_, err = repo.GetByTokenID(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetWalletIfAbsent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	q := regexp.QuoteMeta("WHERE id=? AND wallet_address IS NULL")

	mock.ExpectExec(q).WithArgs("0xA", "sealed", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("0xB", "sealed", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetWalletIfAbsent(context.Background(), 3, "0xA", "sealed")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.SetWalletIfAbsent(context.Background(), 3, "0xB", "sealed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaffCreate_DuplicatePerEvent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStaffRepo(db)
	mock.ExpectExec("INSERT INTO event_staff").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err := repo.Create(context.Background(), 1, "Gate@Example.com", "password", 9, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRefreshValidate_Revoked(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	mock.ExpectQuery("FROM refresh_tokens").WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(1, time.Now().Add(time.Hour), time.Now()))

	_, err := repo.ValidateRefresh(context.Background(), "h")
	assert.ErrorIs(t, err, ErrNotFound)
}
