package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/ticketing"
)

// ScanHandler is the gate endpoint used by event staff.
type ScanHandler struct {
	Redeemer *ticketing.Redeemer
	Logger   *slog.Logger
}

func NewScanHandler(r *ticketing.Redeemer, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanHandler{Redeemer: r, Logger: logger}
}

type scanReq struct {
	QRData       string `json:"qr_data"`
	StaffEventID uint64 `json:"staff_event_id"`
}

type scanResp struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Reason   ticketing.Reason `json:"reason,omitempty"`
	TicketID uint64           `json:"ticket_id,omitempty"`
}

// Scan handles POST /v1/scan.  Every business rejection is a 200 with
// success=false so gate devices can show the message verbatim.
func (h *ScanHandler) Scan(c echo.Context) error {
	staffID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	claimEvent, err := getEventClaim(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "staff session has no event"})
	}

	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.QRData) == "" || req.StaffEventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_data and staff_event_id are required"})
	}
	if req.StaffEventID != claimEvent {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "staff is not assigned to this event"})
	}

	out, err := h.Redeemer.Redeem(c.Request().Context(), req.QRData, req.StaffEventID, staffID)
	if err != nil {
		return ticketingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, scanResp{
		Success:  out.Accepted,
		Message:  out.Message,
		Reason:   out.Reason,
		TicketID: out.TicketID,
	})
}
