package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/passport"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

// PlaceOrderHandler serves the place-order transaction and its authorize
// actions.
type PlaceOrderHandler struct {
	ProgramName        string
	Validate           *validator.Validate
	Logger             *logrus.Logger
	Passports          *passport.Service
	Transactions       *service.TransactionService
	SeatReservations   *service.SeatReservationService
	CreditCards        *service.CreditCardService
	Mvtk               *service.MvtkService
	Accounts           *service.AccountService
	ProgramMemberships *service.ProgramMembershipService
	PointAwards        *service.PointAwardService
}

type issuePassportReq struct {
	Scope string `json:"scope" validate:"required"`
}

type passportResp struct {
	Token string `json:"token"`
}

// IssuePassport hands out a quota credential for starting one transaction.
func (h *PlaceOrderHandler) IssuePassport(c echo.Context) error {
	var req issuePassportReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	token, err := h.Passports.Issue(ctx, req.Scope)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, passportResp{Token: token})
}

type startReq struct {
	SellerID      string     `json:"sellerId" validate:"required"`
	Expires       *time.Time `json:"expires"`
	PassportToken string     `json:"passportToken"`
	ClientID      string     `json:"clientId" validate:"max=64"`
}

// Start opens a place-order transaction for the bearer.
func (h *PlaceOrderHandler) Start(c echo.Context) error {
	var req startReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	agent, err := agentOf(c, h.ProgramName)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	p := service.StartParams{
		Agent:         agent,
		SellerID:      req.SellerID,
		PassportToken: req.PassportToken,
		ClientUser:    &model.ClientUser{ClientID: req.ClientID, Subject: agent.ID},
	}
	if req.Expires != nil {
		p.Expires = *req.Expires
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	tx, err := h.Transactions.Start(ctx, p)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, tx)
}

type customerContactReq struct {
	GivenName  string `json:"givenName" validate:"required,max=50"`
	FamilyName string `json:"familyName" validate:"required,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Telephone  string `json:"telephone" validate:"required,max=20"`
}

// SetCustomerContact stores the buyer contact; the telephone comes back in
// E.164.
func (h *PlaceOrderHandler) SetCustomerContact(c echo.Context) error {
	var req customerContactReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	contact, err := h.Transactions.SetCustomerContact(ctx, agentID(c), c.Param("transactionId"), model.CustomerContact{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Email:      req.Email,
		Telephone:  req.Telephone,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, contact)
}

type confirmReq struct {
	SendEmailMessage bool `json:"sendEmailMessage"`
}

// Confirm turns the transaction into an order.
func (h *PlaceOrderHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	result, err := h.Transactions.Confirm(ctx, service.ConfirmParams{
		AgentID:          agentID(c),
		TransactionID:    c.Param("transactionId"),
		SendEmailMessage: req.SendEmailMessage,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, result)
}
