package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

type ticketInfoReq struct {
	TicketCode       string `json:"ticketCode" validate:"required"`
	AddGlasses       int    `json:"addGlasses" validate:"min=0"`
	MvtkNum          string `json:"mvtkNum"`
	MvtkKbnDenshiken string `json:"mvtkKbnDenshiken"`
	MvtkKbnMaeuriken string `json:"mvtkKbnMaeuriken"`
	MvtkKbnKensyu    string `json:"mvtkKbnKensyu"`
	MvtkSalesPrice   int    `json:"mvtkSalesPrice" validate:"min=0"`
}

type seatOfferReq struct {
	SeatSection string        `json:"seatSection" validate:"required"`
	SeatNumber  string        `json:"seatNumber" validate:"required"`
	TicketInfo  ticketInfoReq `json:"ticketInfo"`
}

type seatReservationReq struct {
	EventIdentifier string         `json:"eventIdentifier" validate:"required"`
	Offers          []seatOfferReq `json:"offers" validate:"required,min=1,dive"`
}

// offers copies only what the buyer chooses; prices are filled from the
// gateway catalog by the service.
func (r seatReservationReq) offers() []model.SeatReservationOffer {
	out := make([]model.SeatReservationOffer, 0, len(r.Offers))
	for _, o := range r.Offers {
		out = append(out, model.SeatReservationOffer{
			SeatSection: o.SeatSection,
			SeatNumber:  o.SeatNumber,
			TicketInfo: model.TicketInfo{
				TicketCode:       o.TicketInfo.TicketCode,
				AddGlasses:       o.TicketInfo.AddGlasses,
				MvtkNum:          o.TicketInfo.MvtkNum,
				MvtkKbnDenshiken: o.TicketInfo.MvtkKbnDenshiken,
				MvtkKbnMaeuriken: o.TicketInfo.MvtkKbnMaeuriken,
				MvtkKbnKensyu:    o.TicketInfo.MvtkKbnKensyu,
				MvtkSalesPrice:   o.TicketInfo.MvtkSalesPrice,
			},
		})
	}
	return out
}

// CreateSeatReservation tentatively reserves seats.
func (h *PlaceOrderHandler) CreateSeatReservation(c echo.Context) error {
	var req seatReservationReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.SeatReservations.Create(ctx, agentID, txID, req.EventIdentifier, req.offers())
	})
}

// ChangeSeatReservationOffers re-prices the reserved seats.
func (h *PlaceOrderHandler) ChangeSeatReservationOffers(c echo.Context) error {
	var req seatReservationReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	return h.authorize(c, http.StatusOK, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.SeatReservations.ChangeOffers(ctx, agentID, txID, c.Param("actionId"), req.EventIdentifier, req.offers())
	})
}

func (h *PlaceOrderHandler) CancelSeatReservation(c echo.Context) error {
	return h.cancel(c, h.SeatReservations.Cancel)
}

type cardRefReq struct {
	MemberID string `json:"memberId" validate:"required"`
	CardSeq  int    `json:"cardSeq" validate:"min=0"`
}

type creditCardReq struct {
	OrderID string      `json:"orderId" validate:"required,max=27"`
	Amount  int         `json:"amount" validate:"gt=0"`
	Method  string      `json:"method" validate:"omitempty,oneof=1 2"`
	Token   string      `json:"token" validate:"required_without=Card"`
	Card    *cardRefReq `json:"card" validate:"required_without=Token"`
}

// CreateCreditCard authorizes a card payment. Raw card numbers are never
// accepted; the client sends a payment gateway token or a registered card.
func (h *PlaceOrderHandler) CreateCreditCard(c echo.Context) error {
	var req creditCardReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	obj := model.CreditCardObject{OrderID: req.OrderID, Amount: req.Amount, Method: req.Method, Token: req.Token}
	if req.Card != nil {
		obj.Card = &model.CardRef{MemberID: req.Card.MemberID, CardSeq: req.Card.CardSeq}
	}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.CreditCards.Create(ctx, agentID, txID, obj)
	})
}

func (h *PlaceOrderHandler) CancelCreditCard(c echo.Context) error {
	return h.cancel(c, h.CreditCards.Cancel)
}

type mvtkReq struct {
	Price          int                    `json:"price" validate:"min=0"`
	SeatInfoSyncIn model.MvtkSeatInfoSync `json:"seatInfoSyncIn"`
}

// CreateMvtk authorizes movie-ticket vouchers against the reserved seats.
func (h *PlaceOrderHandler) CreateMvtk(c echo.Context) error {
	var req mvtkReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.Mvtk.Create(ctx, agentID, txID, model.MvtkObject{Price: req.Price, SeatInfoSyncIn: req.SeatInfoSyncIn})
	})
}

func (h *PlaceOrderHandler) CancelMvtk(c echo.Context) error {
	return h.cancel(c, h.Mvtk.Cancel)
}

type accountReq struct {
	Amount            int    `json:"amount" validate:"gt=0"`
	AccountType       string `json:"accountType"`
	FromAccountNumber string `json:"fromAccountNumber"`
	Notes             string `json:"notes" validate:"max=256"`
}

// CreateAccount authorizes a point payment from the member's account.
func (h *PlaceOrderHandler) CreateAccount(c echo.Context) error {
	var req accountReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	obj := model.AccountObject{
		Amount:            req.Amount,
		AccountType:       req.AccountType,
		FromAccountNumber: req.FromAccountNumber,
		Notes:             req.Notes,
	}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.Accounts.Create(ctx, agentID, txID, obj)
	})
}

func (h *PlaceOrderHandler) CancelAccount(c echo.Context) error {
	return h.cancel(c, h.Accounts.Cancel)
}

type programMembershipReq struct {
	ProgramMembershipID string `json:"programMembershipId" validate:"required"`
	OfferIdentifier     string `json:"offerIdentifier" validate:"required"`
}

func (h *PlaceOrderHandler) CreateProgramMembership(c echo.Context) error {
	var req programMembershipReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.ProgramMemberships.Create(ctx, agentID, txID, req.ProgramMembershipID, req.OfferIdentifier)
	})
}

func (h *PlaceOrderHandler) CancelProgramMembership(c echo.Context) error {
	return h.cancel(c, h.ProgramMemberships.Cancel)
}

type pointAwardReq struct {
	Amount          int    `json:"amount" validate:"gt=0"`
	ToAccountNumber string `json:"toAccountNumber"`
	Notes           string `json:"notes" validate:"max=256"`
}

func (h *PlaceOrderHandler) CreatePointAward(c echo.Context) error {
	var req pointAwardReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	obj := model.PointAwardObject{Amount: req.Amount, ToAccountNumber: req.ToAccountNumber, Notes: req.Notes}
	return h.authorize(c, http.StatusCreated, func(ctx context.Context, agentID, txID string) (*model.AuthorizeAction, error) {
		return h.PointAwards.Create(ctx, agentID, txID, obj)
	})
}

func (h *PlaceOrderHandler) CancelPointAward(c echo.Context) error {
	return h.cancel(c, h.PointAwards.Cancel)
}

type authorizeFunc func(ctx context.Context, agentID, transactionID string) (*model.AuthorizeAction, error)
type cancelFunc func(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error)

func (h *PlaceOrderHandler) authorize(c echo.Context, status int, fn authorizeFunc) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	action, err := fn(ctx, agentID(c), c.Param("transactionId"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(status, action)
}

func (h *PlaceOrderHandler) cancel(c echo.Context, fn cancelFunc) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := fn(ctx, agentID(c), c.Param("transactionId"), c.Param("actionId")); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
