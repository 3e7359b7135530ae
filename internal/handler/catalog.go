package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

// CatalogHandler exposes the seat reservation gateway's catalog for a
// screening event.
type CatalogHandler struct {
	ProgramName      string
	Logger           *logrus.Logger
	SeatReservations *service.SeatReservationService
}

// TicketOffers lists the ticket types of an event at the caller's price
// tier. Responses are cached per caller by the response cache.
func (h *CatalogHandler) TicketOffers(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	isMember := false
	if agent, err := agentOf(c, h.ProgramName); err == nil {
		if isMember, err = h.SeatReservations.IsActiveMember(ctx, agent); err != nil {
			return writeError(c, h.Logger, err)
		}
	}
	tickets, err := h.SeatReservations.TicketOffers(ctx, c.Param("id"), isMember)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"eventIdentifier": c.Param("id"), "member": isMember, "tickets": tickets})
}

// FreeSeats returns the live seat map; it is never cached.
func (h *CatalogHandler) FreeSeats(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	seats, err := h.SeatReservations.FreeSeats(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, seats)
}
