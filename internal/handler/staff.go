package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/config"
	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/utils"
)

type staffStore interface {
	Create(ctx context.Context, eventID uint64, email, password string, createdBy uint64, cost int) (model.Staff, error)
	GetForEvent(ctx context.Context, email string, eventID uint64) (model.Staff, error)
}

type eventStore interface {
	Create(ctx context.Context, hostID uint64, title string, startsAt time.Time) (model.Event, error)
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

const minStaffPassword = 8

// StaffHandler handles gate accounts: hosts create them per event, staff
// log in with them.
type StaffHandler struct {
	Cfg    config.Config
	Staff  staffStore
	Events eventStore
}

func NewStaffHandler(cfg config.Config, staff staffStore, events eventStore) *StaffHandler {
	return &StaffHandler{Cfg: cfg, Staff: staff, Events: events}
}

type staffView struct {
	ID      uint64 `json:"id"`
	Email   string `json:"email"`
	EventID uint64 `json:"event_id"`
}

// Login handles POST /v1/staff/login.  Credentials are only valid for the
// event they were created for.
func (h *StaffHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		EventID  uint64 `json:"event_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "email, password and event_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Staff.GetForEvent(ctx, req.Email, req.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(req.Password)
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "query failed"})
	}
	if !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Invalid credentials"})
	}

	access, err := utils.NewStaffToken(h.Cfg.JWTSecret, s.ID, s.EventID, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"staff":   staffView{ID: s.ID, Email: s.Email, EventID: s.EventID},
		"access":  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Create handles POST /v1/events/:id/staff.  Only the event's host may add
// staff to it.
func (h *StaffHandler) Create(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < minStaffPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if ev.HostUserID != hostID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the host of this event"})
	}

	s, err := h.Staff.Create(ctx, eventID, req.Email, req.Password, hostID, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "staff email already exists for this event"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create staff failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"staff": staffView{ID: s.ID, Email: s.Email, EventID: s.EventID}})
}
