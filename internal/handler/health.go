package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness together with the database state and the mint
// mode the process was started in.  A failed ping answers 503 so load
// balancers drain the instance.
func Health(db pinger, mintMode string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		dbState := "up"
		if err := db.PingContext(ctx); err != nil {
			status, code, dbState = "degraded", http.StatusServiceUnavailable, "down"
		}
		return c.JSON(code, echo.Map{"status": status, "db": dbState, "mint_mode": mintMode})
	}
}
