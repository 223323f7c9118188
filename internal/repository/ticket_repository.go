package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatepass/ticket-gate/internal/model"
)

// TicketRepo is the durable record of issued tickets.  Rows are inserted
// at purchase time, flipped to consumed at the gate and never deleted.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, event_id, owner_user_id, token_id, owner_address, mint_tx_hash,
	chain_backed, consumed, consumed_at, consumed_by_staff_id, created_at`

// Create inserts a freshly issued ticket and fills in its ID and
// CreatedAt.  A duplicate token id or mint hash yields ErrConflict.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (event_id, owner_user_id, token_id, owner_address, mint_tx_hash, chain_backed)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.EventID, t.OwnerUserID, t.TokenID, t.OwnerAddress, t.MintTxHash, t.ChainBacked)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CreatedAt = time.Now().UTC()
	return nil
}

// Restore writes a ticket whose mint already happened on-chain.  It is
// idempotent on mint_tx_hash: replaying the same record returns the ID of
// the row that is already there.  A token id recorded under any other
// hash is ErrTokenTaken; the caller must not treat that as restored.
func (r *TicketRepo) Restore(ctx context.Context, t *model.Ticket) error {
	if t.MintTxHash == nil || *t.MintTxHash == "" {
		return errors.New("restore: ticket has no mint transaction")
	}
	id, err := r.idByMintHash(ctx, *t.MintTxHash)
	switch {
	case err == nil:
		t.ID = id
		return nil
	case !errors.Is(err, ErrNotFound):
		return err
	}

	err = r.Create(ctx, t)
	if !errors.Is(err, ErrConflict) {
		return err
	}
	// Either a concurrent replay won the insert or the token id clashes.
	id, err = r.idByMintHash(ctx, *t.MintTxHash)
	switch {
	case err == nil:
		t.ID = id
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrTokenTaken
	default:
		return err
	}
}

func (r *TicketRepo) idByMintHash(ctx context.Context, hash string) (uint64, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM tickets WHERE mint_tx_hash = ? LIMIT 1", hash).Scan(&id)
	return id, notFound(err)
}

// GetByID returns a single ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = ? LIMIT 1", id))
}

// GetByTokenID looks a ticket up by its on-chain token id.
func (r *TicketRepo) GetByTokenID(ctx context.Context, tokenID uint64) (model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE token_id = ? LIMIT 1", tokenID))
}

// ListByOwner returns a user's tickets, newest first.
func (r *TicketRepo) ListByOwner(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE owner_user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkConsumed performs the single-use transition.  The WHERE clause makes
// the check and the write one atomic statement: of any number of concurrent
// callers exactly one observes true.
func (r *TicketRepo) MarkConsumed(ctx context.Context, id, staffID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET consumed = 1, consumed_at = UTC_TIMESTAMP(), consumed_by_staff_id = ?
		 WHERE id = ? AND consumed = 0`,
		staffID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(s rowScanner) (model.Ticket, error) {
	var (
		t          model.Ticket
		tokenID    sql.NullInt64
		txHash     sql.NullString
		consumedAt sql.NullTime
		staffID    sql.NullInt64
	)
	err := s.Scan(&t.ID, &t.EventID, &t.OwnerUserID, &tokenID, &t.OwnerAddress, &txHash,
		&t.ChainBacked, &t.Consumed, &consumedAt, &staffID, &t.CreatedAt)
	if err != nil {
		return model.Ticket{}, notFound(err)
	}
	if tokenID.Valid {
		v := uint64(tokenID.Int64)
		t.TokenID = &v
	}
	if txHash.Valid {
		t.MintTxHash = &txHash.String
	}
	if consumedAt.Valid {
		t.ConsumedAt = &consumedAt.Time
	}
	if staffID.Valid {
		v := uint64(staffID.Int64)
		t.ConsumedByStaffID = &v
	}
	return t, nil
}
