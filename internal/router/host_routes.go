package router

import (
	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/handler"
	"github.com/gatepass/ticket-gate/internal/middleware"
	"github.com/gatepass/ticket-gate/internal/model"
)

// RegisterHost registers HOST-scoped endpoints: creating events and the
// staff accounts that work their gates.
func RegisterHost(e *echo.Echo, events *handler.EventHandler, staff *handler.StaffHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHost),
	)
	g.POST("/events", events.Create)
	g.POST("/events/:id/staff", staff.Create)
}
