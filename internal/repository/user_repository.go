package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,is_active,wallet_address,encrypted_wallet_key,created_at,updated_at"

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// SetWalletIfAbsent stores the address and its encrypted key in one
// statement, guarded so that an address is never overwritten.  It reports
// false when the user already had a wallet (or does not exist) and nothing
// was written.
func (r *UserRepo) SetWalletIfAbsent(ctx context.Context, userID uint64, address, encryptedKey string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET wallet_address=?, encrypted_wallet_key=? WHERE id=? AND wallet_address IS NULL",
		address, encryptedKey, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		wallet sql.NullString
		encKey sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &wallet, &encKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, notFound(err)
	}
	if wallet.Valid {
		u.WalletAddress = &wallet.String
	}
	if encKey.Valid {
		u.EncryptedWalletKey = &encKey.String
	}
	return u, nil
}
