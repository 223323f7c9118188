package model

import "time"

// Event is the minimal slice of an event the gate needs: who hosts it and
// what to call it when a ticket is accepted.
type Event struct {
	ID         uint64    // events.id
	HostUserID uint64    // events.host_user_id
	Title      string    // events.title
	StartsAt   time.Time // events.starts_at
	CreatedAt  time.Time // events.created_at
}

// Staff is a gate account scoped to exactly one event.  Hosts create them;
// there is no self-registration.
type Staff struct {
	ID           uint64    // event_staff.id
	EventID      uint64    // event_staff.event_id
	Email        string    // event_staff.email
	PasswordHash string    // event_staff.password_hash (bcrypt)
	CreatedBy    uint64    // event_staff.created_by
	CreatedAt    time.Time // event_staff.created_at
}
