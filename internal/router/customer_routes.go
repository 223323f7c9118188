package router

import (
	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/handler"
	"github.com/gatepass/ticket-gate/internal/middleware"
	"github.com/gatepass/ticket-gate/internal/model"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a valid JWT and the CUSTOMER role.  Purchases are rate
// limited because each one may cost a mint transaction.
func RegisterCustomer(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/tickets", h.Purchase, limiter)
	g.GET("/tickets/:id/credential", h.Credential)
	g.GET("/my-tickets", h.MyTickets)
	g.POST("/wallet", h.CreateWallet)
}
