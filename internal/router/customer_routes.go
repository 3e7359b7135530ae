package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-order/internal/handler"
	"github.com/iliyamo/cinema-ticket-order/internal/middleware"
)

// RegisterPlaceOrder registers the passport issuer and the place-order
// transaction endpoints. Every transaction route requires a buyer token;
// the transaction must belong to the token's subject.
func RegisterPlaceOrder(e *echo.Echo, h *handler.PlaceOrderHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/v1/passports", h.IssuePassport, limit)

	g := e.Group(
		"/v1/transactions/place-order",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(buyerRoles...),
	)
	g.POST("/start", h.Start, limit)
	g.PUT("/:transactionId/customer-contact", h.SetCustomerContact)
	g.POST("/:transactionId/confirm", h.Confirm)

	a := g.Group("/:transactionId/actions/authorize")
	a.POST("/seat-reservation", h.CreateSeatReservation)
	a.PATCH("/seat-reservation/:actionId", h.ChangeSeatReservationOffers)
	a.DELETE("/seat-reservation/:actionId", h.CancelSeatReservation)
	a.POST("/credit-card", h.CreateCreditCard)
	a.DELETE("/credit-card/:actionId", h.CancelCreditCard)
	a.POST("/mvtk", h.CreateMvtk)
	a.DELETE("/mvtk/:actionId", h.CancelMvtk)
	a.POST("/account", h.CreateAccount)
	a.DELETE("/account/:actionId", h.CancelAccount)
	a.POST("/program-membership", h.CreateProgramMembership)
	a.DELETE("/program-membership/:actionId", h.CancelProgramMembership)
	a.POST("/award/point", h.CreatePointAward)
	a.DELETE("/award/point/:actionId", h.CancelPointAward)
}
