package router

import (
	"github.com/labstack/echo/v4"

	"github.com/gatepass/ticket-gate/internal/handler"
	"github.com/gatepass/ticket-gate/internal/middleware"
	"github.com/gatepass/ticket-gate/internal/model"
)

// RegisterGate registers the staff login and the scan endpoint.  Login is
// public but rate limited; scanning needs a STAFF token.
func RegisterGate(e *echo.Echo, scan *handler.ScanHandler, staff *handler.StaffHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.POST("/v1/staff/login", staff.Login, limiter)
	e.POST("/v1/scan", scan.Scan,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
		limiter)
}
