package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the liveness endpoint used by load balancers. It returns a plain
// text "ok" with 200 as long as the process serves requests.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB through PingContext and by the Redis
// adapter built in cmd/server.
type Pinger func(ctx context.Context) error

// Ready reports 503 until every dependency answers a ping. Transactions
// cannot start without the database, nor confirm without Redis.
func Ready(deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(deps))
		for name, ping := range deps {
			if err := ping(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		return c.JSON(status, report)
	}
}
