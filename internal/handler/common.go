package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/middleware"
	"github.com/gatepass/ticket-gate/internal/ticketing"
)

// getUserID extracts the token subject from echo.Context.
func getUserID(c echo.Context) (uint64, error) {
	return claimID(c.Get(middleware.CtxUserID))
}

// getEventClaim extracts the event a staff session is pinned to.
func getEventClaim(c echo.Context) (uint64, error) {
	return claimID(c.Get(middleware.CtxEventID))
}

func claimID(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64: // JSON numbers in MapClaims
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid id claim in context")
}

func parseIDParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// ticketingError maps the ticketing error taxonomy onto HTTP.
func ticketingError(c echo.Context, logger *slog.Logger, err error) error {
	var (
		verr *ticketing.ValidationError
		serr *ticketing.StorageError
		merr *ticketing.MintTransactionError
		uerr *ticketing.TokenIDUnresolvedError
		rerr *ticketing.ReconciliationError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	case errors.As(err, &serr):
		logger.Error("storage failure", "op", serr.Op, "err", serr.Err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
	case errors.As(err, &merr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "mint transaction failed", "transaction_hash": nullable(merr.TxHash)})
	case errors.As(err, &uerr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "minted token could not be identified", "transaction_hash": uerr.TxHash})
	case errors.As(err, &rerr):
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":            "ticket minted; issuance pending reconciliation",
			"transaction_hash": rerr.Ticket.MintTxHash,
			"queued":           rerr.Queued,
		})
	}
	logger.Error("unexpected error", "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
