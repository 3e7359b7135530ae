package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

func TestValidateOffersGroupTickets(t *testing.T) {
	e := newEnv(t)
	ev := e.catalog.Events["ev-1"]
	ctx := context.Background()

	_, err := e.seats.ValidateOffers(ctx, false, ev, []model.SeatReservationOffer{
		offer("A-1", "30"), offer("A-2", "30"), offer("A-3", "30"),
	})
	requireKind(t, err, apperr.KindArgument)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Len(t, ae.Errors, 3)
	assert.Equal(t, "offers[0]", ae.Errors[0].Entity)

	priced, err := e.seats.ValidateOffers(ctx, false, ev, []model.SeatReservationOffer{
		offer("A-1", "30"), offer("A-2", "30"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1500, priced[0].TicketInfo.SalePrice)
	assert.Equal(t, gateway.LimitUnitPerGroup, priced[1].TicketInfo.LimitUnit)
}

func TestValidateOffersUnknownTicketsAreReportedPerOffer(t *testing.T) {
	e := newEnv(t)
	_, err := e.seats.ValidateOffers(context.Background(), false, e.catalog.Events["ev-1"], []model.SeatReservationOffer{
		offer("A-1", "10"), offer("A-2", "99"), offer("A-3", "98"),
	})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Len(t, ae.Errors, 2)
	assert.Equal(t, "offers[1]", ae.Errors[0].Entity)
	assert.Equal(t, "offers[2]", ae.Errors[1].Entity)
}

func TestValidateOffersPricesFromCatalogNotClient(t *testing.T) {
	e := newEnv(t)
	o := offer("A-1", "10")
	o.TicketInfo.SalePrice = 1
	o.TicketInfo.AddGlasses = 1
	priced, err := e.seats.ValidateOffers(context.Background(), true, e.catalog.Events["ev-1"], []model.SeatReservationOffer{o})
	require.NoError(t, err)
	assert.Equal(t, 1900, priced[0].TicketInfo.SalePrice)
	assert.Equal(t, 100, priced[0].TicketInfo.AddGlasses)
	assert.Equal(t, gateway.FlgMemberMember, e.seatGW.Catalogs[0].FlgMember)
}

func TestValidateOffersVoucher(t *testing.T) {
	e := newEnv(t)
	ev := e.catalog.Events["ev-1"]
	v := model.SeatReservationOffer{SeatSection: "0", SeatNumber: "B-1", TicketInfo: model.TicketInfo{
		MvtkNum: "1234567890", MvtkKbnKensyu: "01", MvtkSalesPrice: 1500, MvtkAppPrice: 1400,
	}}

	priced, err := e.seats.ValidateOffers(context.Background(), false, ev, []model.SeatReservationOffer{v})
	require.NoError(t, err)
	assert.Equal(t, "MV1", priced[0].TicketInfo.TicketCode)
	assert.Equal(t, 0, priced[0].Price())
	assert.Equal(t, 1500, priced[0].TicketInfo.MvtkSalesPrice)

	ev.MvtkExcludeFlg = "1"
	_, err = e.seats.ValidateOffers(context.Background(), false, ev, []model.SeatReservationOffer{v})
	requireKind(t, err, apperr.KindArgument)
}

func TestCreateSeatReservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)

	action, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10"), offer("A-2", "10")})
	require.NoError(t, err)
	assert.Equal(t, model.ActionStatusCompleted, action.ActionStatus)
	assert.Equal(t, "seller-1", action.Agent.ID)
	assert.Equal(t, anonymous.ID, action.Recipient.ID)

	r := action.Result.(*model.SeatReservationResult)
	assert.Equal(t, 3600, r.Price)
	assert.Equal(t, 1001, r.TmpReserveNum)
	assert.Len(t, r.ListTmpReserve, 2)
	require.Len(t, e.seatGW.Catalogs, 1)
	assert.Equal(t, gateway.FlgMemberNonMember, e.seatGW.Catalogs[0].FlgMember)

	stored, err := e.actions.FindByID(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionStatusCompleted, stored.ActionStatus)
}

func TestCreateSeatReservationMemberTier(t *testing.T) {
	e := newEnv(t)
	e.activateMembership()
	tx := e.start(t, member)

	_, err := e.seats.Create(context.Background(), member.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "20")})
	require.NoError(t, err)
	assert.Equal(t, gateway.FlgMemberMember, e.seatGW.Catalogs[0].FlgMember)
}

func TestCreateSeatReservationTakenSeatFailsAction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.seatGW.ReserveErr = &apperr.Error{Kind: apperr.KindArgument, Entity: "seat-reservation", Message: "seat taken",
		Cause: &gateway.StatusError{Service: "seat-reservation", StatusCode: 409, Body: "seat taken"}}

	_, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	requireKind(t, err, apperr.KindAlreadyInUse)

	actions, err := e.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionStatusFailed, actions[0].ActionStatus)
	require.NotNil(t, actions[0].Error)
	assert.Equal(t, string(apperr.KindAlreadyInUse), actions[0].Error.Name)
}

func TestCreateSeatReservationRejectedRequestStaysArgument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.seatGW.ReserveErr = &apperr.Error{Kind: apperr.KindArgument, Entity: "seat-reservation", Message: "unknown screen code",
		Cause: &gateway.StatusError{Service: "seat-reservation", StatusCode: 400, Body: "unknown screen code"}}

	_, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	requireKind(t, err, apperr.KindArgument)

	actions, err := e.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionStatusFailed, actions[0].ActionStatus)
}

func TestCreateSeatReservationGatewayDownFailsAction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.seatGW.ReserveErr = apperr.ServiceUnavailable(errors.New("503"), "seat reservation is down")

	_, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	requireKind(t, err, apperr.KindServiceUnavailable)

	actions, _ := e.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionStatusFailed, actions[0].ActionStatus)
}

func TestCreateSeatReservationChecksOwner(t *testing.T) {
	e := newEnv(t)
	tx := e.start(t, anonymous)
	_, err := e.seats.Create(context.Background(), "someone-else", tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	requireKind(t, err, apperr.KindForbidden)
}

func TestCancelSeatReservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	action, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	require.NoError(t, err)

	canceled, err := e.seats.Cancel(ctx, anonymous.ID, tx.ID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionStatusCanceled, canceled.ActionStatus)
	require.Len(t, e.seatGW.Released, 1)
	assert.Equal(t, 1001, e.seatGW.Released[0].TmpReserveNum)

	_, err = e.seats.Cancel(ctx, anonymous.ID, tx.ID, action.ID)
	requireKind(t, err, apperr.KindNotFound)
	assert.Len(t, e.seatGW.Released, 1)
}

func TestCancelRejectsActionOfAnotherType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	action, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	require.NoError(t, err)

	_, err = e.cards.Cancel(ctx, anonymous.ID, tx.ID, action.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestChangeOffers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	action, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10"), offer("A-2", "10")})
	require.NoError(t, err)

	changed, err := e.seats.ChangeOffers(ctx, anonymous.ID, tx.ID, action.ID, "ev-1", []model.SeatReservationOffer{offer("A-2", "30"), offer("A-1", "30")})
	require.NoError(t, err)
	assert.Equal(t, 3000, changed.Result.(*model.SeatReservationResult).Price)
	assert.Len(t, e.seatGW.Reserved, 1)

	_, err = e.seats.ChangeOffers(ctx, anonymous.ID, tx.ID, action.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10"), offer("A-3", "10")})
	requireKind(t, err, apperr.KindArgument)
}
