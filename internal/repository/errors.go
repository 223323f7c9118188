// Package repository holds the MySQL-backed stores for accounts, events,
// staff and tickets.  Sentinel errors let the handler and ticketing layers
// distinguish failure scenarios without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert collides with a unique key,
// e.g. a token id that is already recorded.  Handlers translate it into
// HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrTokenTaken is returned by TicketRepo.Restore when the minted token id
// is already recorded against a different mint transaction.
var ErrTokenTaken = errors.New("token id held by another ticket")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
