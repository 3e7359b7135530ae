package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-order/internal/handler"
	"github.com/iliyamo/cinema-ticket-order/internal/middleware"
	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

// buyerRoles may place orders; anonymous buyers included.
var buyerRoles = []string{utils.RoleMember, utils.RoleAnonymous, utils.RoleAdmin}

// RegisterRoutes registers the unauthenticated operational routes: liveness,
// readiness and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready)
	e.GET("/metrics", echo.WrapHandler(metrics))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/anonymous", a.Anonymous)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(buyerRoles...))
}

// RegisterCatalog registers screening event lookups. Ticket offers are
// priced per buyer, so they require a token and are cached per buyer.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/events", middleware.JWTAuth(jwtSecret), middleware.RequireRole(buyerRoles...))
	g.GET("/:id/ticket-offers", h.TicketOffers, cache)
	g.GET("/:id/seats", h.FreeSeats)
}

// RegisterOrders registers order lookups and membership management.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	// inquiry works without an account; throttle it against guessing
	e.POST("/v1/orders/inquiry", h.Inquiry, limit)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.GET("/orders/:orderNumber", h.FindByOrderNumber, middleware.RequireRole(buyerRoles...))
	g.DELETE("/me/program-memberships/:programMembershipId", h.Unregister, middleware.RequireRole(utils.RoleMember))
}
