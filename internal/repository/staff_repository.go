package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/utils"
)

// StaffRepo stores gate accounts.  An account is keyed by (event, email);
// the same email may exist once per event.
type StaffRepo struct {
	db *sql.DB
}

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{db: db} }

// Create hashes the password with bcrypt and inserts the staff row.
// A second account for the same (event, email) yields ErrEmailExists.
func (r *StaffRepo) Create(ctx context.Context, eventID uint64, email, password string, createdBy uint64, cost int) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.Staff{}, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO event_staff (event_id, email, password_hash, created_by) VALUES (?, ?, ?, ?)",
		eventID, email, hash, createdBy)
	if err != nil {
		if isDuplicate(err) {
			return model.Staff{}, ErrEmailExists
		}
		return model.Staff{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Staff{}, err
	}
	return model.Staff{
		ID:           uint64(id),
		EventID:      eventID,
		Email:        email,
		PasswordHash: hash,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// GetForEvent fetches the staff account for email scoped to eventID.
func (r *StaffRepo) GetForEvent(ctx context.Context, email string, eventID uint64) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var s model.Staff
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, email, password_hash, created_by, created_at
		 FROM event_staff WHERE email = ? AND event_id = ? LIMIT 1`,
		email, eventID).Scan(&s.ID, &s.EventID, &s.Email, &s.PasswordHash, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return model.Staff{}, notFound(err)
	}
	return s, nil
}
