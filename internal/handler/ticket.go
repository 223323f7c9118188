package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/signing"
	"github.com/gatepass/ticket-gate/internal/ticketing"
)

type ticketReader interface {
	GetByID(ctx context.Context, id uint64) (model.Ticket, error)
	ListByOwner(ctx context.Context, userID uint64) ([]model.Ticket, error)
}

type addressEnsurer interface {
	EnsureAddress(ctx context.Context, userID uint64) (common.Address, error)
}

// TicketHandler serves the customer side: buying tickets, showing their
// QR credential and the custodial wallet behind them.
type TicketHandler struct {
	Issuer  *ticketing.Issuer
	Tickets ticketReader
	Wallets addressEnsurer
	Signer  *signing.Signer
	Logger  *slog.Logger

	// IssueTimeout bounds a purchase after it has been detached from the
	// client request.  It should exceed the mint confirmation timeout.
	IssueTimeout time.Duration
}

func NewTicketHandler(iss *ticketing.Issuer, tickets ticketReader, wallets addressEnsurer, signer *signing.Signer, issueTimeout time.Duration, logger *slog.Logger) *TicketHandler {
	if iss == nil || tickets == nil || wallets == nil || signer == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketHandler{Issuer: iss, Tickets: tickets, Wallets: wallets, Signer: signer, IssueTimeout: issueTimeout, Logger: logger}
}

type ticketView struct {
	ID              uint64     `json:"id"`
	EventID         uint64     `json:"event_id"`
	TokenID         *uint64    `json:"token_id"`
	OwnerAddress    string     `json:"owner_address"`
	TransactionHash *string    `json:"transaction_hash"`
	ChainBacked     bool       `json:"chain_backed"`
	Consumed        bool       `json:"consumed"`
	ConsumedAt      *time.Time `json:"consumed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toTicketView(t model.Ticket) ticketView {
	return ticketView{
		ID:              t.ID,
		EventID:         t.EventID,
		TokenID:         t.TokenID,
		OwnerAddress:    t.OwnerAddress,
		TransactionHash: t.MintTxHash,
		ChainBacked:     t.ChainBacked,
		Consumed:        t.Consumed,
		ConsumedAt:      t.ConsumedAt,
		CreatedAt:       t.CreatedAt,
	}
}

// Purchase handles POST /v1/tickets.  The buyer is the token subject; the
// body only names the event.  Issuance is detached from the request
// context so a client that hangs up cannot strand a submitted mint.
func (h *TicketHandler) Purchase(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		EventID uint64 `json:"event_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}

	ctx := context.WithoutCancel(c.Request().Context())
	if h.IssueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.IssueTimeout)
		defer cancel()
	}

	t, err := h.Issuer.IssueTicket(ctx, body.EventID, userID)
	if err != nil {
		return ticketingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "ticket": toTicketView(t)})
}

// Credential handles GET /v1/tickets/:id/credential.  Only the owner gets
// the QR data; anyone else sees 404.
func (h *TicketHandler) Credential(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	t, err := h.Tickets.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if t.OwnerUserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}

	qr, err := ticketing.Credential(h.Signer, t)
	if err != nil {
		return ticketingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"qr_data": qr})
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Tickets.ListByOwner(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]ticketView, 0, len(list))
	for _, t := range list {
		views = append(views, toTicketView(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": views})
}

// CreateWallet handles POST /v1/wallet.  Repeated calls return the same
// address.
func (h *TicketHandler) CreateWallet(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	addr, err := h.Wallets.EnsureAddress(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		h.Logger.Error("wallet provisioning failed", "user_id", userID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "wallet provisioning failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"wallet_address": addr.Hex()})
}
