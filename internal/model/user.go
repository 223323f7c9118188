package model

import "time"

// User represents an account record as stored in the `users` table.  It is
// both the login identity and the holder of the custodial wallet: the
// wallet columns stay NULL until the first purchase and are written exactly
// once afterwards.
//
// Fields:
//  ID                 – primary key identifier of the user.
//  Email              – unique email address.
//  PasswordHash       – bcrypt hashed password.
//  Role               – CUSTOMER or HOST.
//  IsActive           – whether the account is active.
//  WalletAddress      – checksummed 0x address (nullable).
//  EncryptedWalletKey – age ciphertext of the wallet's private key (nullable).
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type User struct {
	ID                 uint64    // users.id
	Email              string    // users.email
	PasswordHash       string    // users.password_hash
	Role               string    // users.role
	IsActive           bool      // users.is_active
	WalletAddress      *string   // users.wallet_address (nullable)
	EncryptedWalletKey *string   // users.encrypted_wallet_key (nullable)
	CreatedAt          time.Time // users.created_at
	UpdatedAt          time.Time // users.updated_at
}

// Roles accepted in the users table and in access tokens.  STAFF never
// appears in users; staff principals live in event_staff.
const (
	RoleCustomer = "CUSTOMER"
	RoleHost     = "HOST"
	RoleStaff    = "STAFF"
)

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
