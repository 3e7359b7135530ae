package service_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

var validateTx = &model.Transaction{
	ID:     "tx-1",
	Agent:  member,
	Seller: model.Party{ID: "seller-1", TypeOf: model.PartyTypeMovieTheater},
}

func completed(agent model.Party, obj model.AuthorizeObject, result model.AuthorizeResult) model.AuthorizeAction {
	end := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)
	return model.AuthorizeAction{
		ID:           "a-" + string(obj.ObjectType()),
		ActionStatus: model.ActionStatusCompleted,
		Agent:        agent,
		Purpose:      model.ActionPurpose{TypeOf: model.TransactionTypePlaceOrder, ID: validateTx.ID},
		Object:       obj,
		Result:       result,
		EndDate:      &end,
	}
}

func seatAction(price, point int) model.AuthorizeAction {
	r := &model.SeatReservationResult{Price: price, RequiredPoint: point}
	if point > 0 {
		r.PointAccountType = service.DefaultPointAccountType
	}
	return completed(validateTx.Seller, &model.SeatReservationObject{}, r)
}

func cardAction(price int) model.AuthorizeAction {
	return completed(validateTx.Agent, &model.CreditCardObject{}, &model.CreditCardResult{Price: price})
}

func TestValidateAuthorizeActions(t *testing.T) {
	cases := []struct {
		name    string
		actions []model.AuthorizeAction
		wantErr bool
	}{
		{
			name:    "seat paid by card",
			actions: []model.AuthorizeAction{seatAction(2800, 0), cardAction(2800)},
		},
		{
			name:    "seat without payment",
			actions: []model.AuthorizeAction{seatAction(2800, 0)},
			wantErr: true,
		},
		{
			name:    "nothing to pay",
			actions: []model.AuthorizeAction{seatAction(0, 0)},
		},
		{
			name:    "card over seat price",
			actions: []model.AuthorizeAction{seatAction(1800, 0), cardAction(2800)},
			wantErr: true,
		},
		{
			name:    "two cards",
			actions: []model.AuthorizeAction{seatAction(2800, 0), cardAction(1400), cardAction(1400)},
			wantErr: true,
		},
		{
			name: "two vouchers",
			actions: []model.AuthorizeAction{
				seatAction(0, 0),
				completed(member, &model.MvtkObject{}, &model.MvtkResult{Price: 1500}),
				completed(member, &model.MvtkObject{}, &model.MvtkResult{Price: 1500}),
			},
			wantErr: true,
		},
		{
			name: "points matched",
			actions: []model.AuthorizeAction{
				seatAction(0, 10),
				completed(member, &model.AccountObject{}, &model.AccountResult{Amount: 10, AccountType: service.DefaultPointAccountType}),
			},
		},
		{
			name: "points short",
			actions: []model.AuthorizeAction{
				seatAction(0, 10),
				completed(member, &model.AccountObject{}, &model.AccountResult{Amount: 5, AccountType: service.DefaultPointAccountType}),
			},
			wantErr: true,
		},
		{
			name: "award within cap",
			actions: []model.AuthorizeAction{
				seatAction(1800, 0), cardAction(1800),
				completed(validateTx.Seller, &model.PointAwardObject{}, &model.PointAwardResult{Amount: 1}),
			},
		},
		{
			name: "award over cap",
			actions: []model.AuthorizeAction{
				seatAction(1800, 0), cardAction(1800),
				completed(validateTx.Seller, &model.PointAwardObject{}, &model.PointAwardResult{Amount: 1}),
				completed(validateTx.Seller, &model.PointAwardObject{}, &model.PointAwardResult{Amount: 1}),
			},
			wantErr: true,
		},
		{
			name: "membership counted on the seller side",
			actions: []model.AuthorizeAction{
				completed(validateTx.Seller, &model.ProgramMembershipObject{}, &model.ProgramMembershipResult{Price: 500}),
				cardAction(500),
			},
		},
		{
			name: "failed actions are ignored",
			actions: func() []model.AuthorizeAction {
				failed := cardAction(9999)
				failed.ActionStatus = model.ActionStatusFailed
				return []model.AuthorizeAction{seatAction(1800, 0), cardAction(1800), failed}
			}(),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateAuthorizeActions(validateTx, tc.actions)
			if tc.wantErr {
				assert.Equal(t, apperr.KindArgument, apperr.KindOf(err), "error: %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func voucherSeatAction(price int, voucherPrices ...int) model.AuthorizeAction {
	r := &model.SeatReservationResult{Price: price}
	for i, p := range voucherPrices {
		r.Offers = append(r.Offers, model.SeatReservationOffer{
			SeatNumber: fmt.Sprintf("B-%d", i+1),
			TicketInfo: model.TicketInfo{MvtkNum: "1234567890", MvtkSalesPrice: p},
		})
	}
	return completed(validateTx.Seller, &model.SeatReservationObject{}, r)
}

func voucherAction(price int) model.AuthorizeAction {
	return completed(validateTx.Agent, &model.MvtkObject{}, &model.MvtkResult{Price: price})
}

func TestValidateAuthorizeActionsVoucherSeats(t *testing.T) {
	cases := []struct {
		name    string
		actions []model.AuthorizeAction
		wantErr bool
	}{
		{
			name:    "voucher seat covered",
			actions: []model.AuthorizeAction{voucherSeatAction(1800, 1500), cardAction(1800), voucherAction(1500)},
		},
		{
			name:    "voucher seat without voucher authorization",
			actions: []model.AuthorizeAction{voucherSeatAction(1800, 1500), cardAction(1800)},
			wantErr: true,
		},
		{
			name:    "voucher short of the seats",
			actions: []model.AuthorizeAction{voucherSeatAction(0, 1500, 1500), voucherAction(1500)},
			wantErr: true,
		},
		{
			name:    "voucher without voucher seats",
			actions: []model.AuthorizeAction{seatAction(1800, 0), cardAction(1800), voucherAction(1500)},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateAuthorizeActions(validateTx, tc.actions)
			if tc.wantErr {
				assert.Equal(t, apperr.KindArgument, apperr.KindOf(err), "error: %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateAuthorizeActionsPriceMismatchNamesTransaction(t *testing.T) {
	err := service.ValidateAuthorizeActions(validateTx, []model.AuthorizeAction{seatAction(2800, 0)})
	assert.ErrorContains(t, err, "tx-1")
	assert.ErrorContains(t, err, "buyer authorized 0 but seller charges 2800")
}

func TestValidateAuthorizeActionsBalanceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("confirmable exactly when the card covers the seats", prop.ForAll(
		func(seatPrices []int, card int) bool {
			actions := make([]model.AuthorizeAction, 0, len(seatPrices)+1)
			total := 0
			for _, p := range seatPrices {
				actions = append(actions, seatAction(p, 0))
				total += p
			}
			if card > 0 {
				actions = append(actions, cardAction(card))
			}
			err := service.ValidateAuthorizeActions(validateTx, actions)
			if card == total {
				return err == nil
			}
			return apperr.KindOf(err) == apperr.KindArgument
		},
		gen.SliceOfN(3, gen.IntRange(0, 5000)),
		gen.IntRange(0, 15000),
	))

	properties.TestingRun(t)
}
