package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gatepass/ticket-gate/internal/model"
)

// EventRepo exposes the few event operations the gate depends on.  Full
// catalog management lives elsewhere.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts an event owned by hostID.
func (r *EventRepo) Create(ctx context.Context, hostID uint64, title string, startsAt time.Time) (model.Event, error) {
	title = strings.TrimSpace(title)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO events (host_user_id, title, starts_at) VALUES (?, ?, ?)",
		hostID, title, startsAt.UTC())
	if err != nil {
		return model.Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{ID: uint64(id), HostUserID: hostID, Title: title, StartsAt: startsAt.UTC(), CreatedAt: time.Now().UTC()}, nil
}

// GetByID returns the event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		"SELECT id, host_user_id, title, starts_at, created_at FROM events WHERE id = ? LIMIT 1", id).
		Scan(&e.ID, &e.HostUserID, &e.Title, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		return model.Event{}, notFound(err)
	}
	return e, nil
}
