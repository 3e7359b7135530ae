package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

// OrderHandler serves order lookups and membership management after a
// purchase.
type OrderHandler struct {
	Validate    *validator.Validate
	Logger      *logrus.Logger
	Orders      *service.OrderService
	Memberships *service.MembershipService
}

type inquiryReq struct {
	TheaterCode        string `json:"theaterCode" validate:"required"`
	ConfirmationNumber int    `json:"confirmationNumber" validate:"gt=0"`
	Telephone          string `json:"telephone" validate:"required"`
}

// Inquiry finds an order by theater, confirmation number and telephone. It
// needs no account, so a miss is always a 404 whichever part mismatched.
func (h *OrderHandler) Inquiry(c echo.Context) error {
	var req inquiryReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	order, err := h.Orders.FindByInquiryKey(ctx, model.OrderInquiryKey{
		TheaterCode:        req.TheaterCode,
		ConfirmationNumber: req.ConfirmationNumber,
		Telephone:          req.Telephone,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, order)
}

// FindByOrderNumber returns one of the bearer's orders. Orders of other
// customers are reported as missing.
func (h *OrderHandler) FindByOrderNumber(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	order, err := h.Orders.FindByOrderNumber(ctx, c.Param("orderNumber"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if order.Customer.ID != agentID(c) {
		return writeError(c, h.Logger, apperr.NotFound("order"))
	}
	return c.JSON(http.StatusOK, order)
}

// Unregister schedules the end of the bearer's program membership; renewals
// stop and the current ownership ends when the task runs.
func (h *OrderHandler) Unregister(c echo.Context) error {
	agent, err := agentOf(c, "")
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	data := model.UnregisterProgramMembershipData{
		AgentID:             agent.ID,
		ProgramMembershipID: c.Param("programMembershipId"),
	}
	if agent.MemberOf != nil {
		data.MembershipNumber = agent.MemberOf.MembershipNumber
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	task, err := h.Memberships.RequestUnregister(ctx, data)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"taskId": task.ID, "runsAt": task.RunsAt})
}
