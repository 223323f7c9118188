package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// EventHandler is the minimal host-side event surface.
type EventHandler struct {
	Events eventStore
}

func NewEventHandler(events eventStore) *EventHandler { return &EventHandler{Events: events} }

// Create handles POST /v1/events.
func (h *EventHandler) Create(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		Title    string    `json:"title"`
		StartsAt time.Time `json:"starts_at"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body; starts_at must be RFC 3339"})
	}
	if strings.TrimSpace(req.Title) == "" || req.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and starts_at required"})
	}

	ev, err := h.Events.Create(c.Request().Context(), hostID, req.Title, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":           ev.ID,
		"host_user_id": ev.HostUserID,
		"title":        ev.Title,
		"starts_at":    ev.StartsAt,
	})
}
