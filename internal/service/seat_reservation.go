package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// SeatReservationService authorizes tentative seat reservations. The seller
// is the agent of these actions and the buyer the recipient.
type SeatReservationService struct {
	authorizer
	events     EventRepository
	ownerships OwnershipInfoRepository
	seats      SeatReservationGateway
}

type SeatReservationServiceProperty struct {
	AuthorizeDeps
	EventRepository         EventRepository
	OwnershipInfoRepository OwnershipInfoRepository
	SeatReservationGateway  SeatReservationGateway
}

func NewSeatReservationService(props SeatReservationServiceProperty) *SeatReservationService {
	return &SeatReservationService{
		authorizer: newAuthorizer(props.AuthorizeDeps),
		events:     props.EventRepository,
		ownerships: props.OwnershipInfoRepository,
		seats:      props.SeatReservationGateway,
	}
}

// Create prices the offers, reserves the seats tentatively and records the
// result. Seats already taken on the gateway fail with AlreadyInUse.
func (s *SeatReservationService) Create(ctx context.Context, agentID, transactionID, eventIdentifier string, offers []model.SeatReservationOffer) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, apperr.Argument("offers", "at least one seat is required")
	}
	event, err := s.events.FindByIdentifier(ctx, eventIdentifier)
	if err != nil {
		return nil, err
	}
	if event.SellerID != tx.Seller.ID {
		return nil, apperr.Argument("eventIdentifier", "event %s is not sold by the transaction seller", eventIdentifier)
	}
	member, err := activeMembership(ctx, s.ownerships, tx.Agent, s.now())
	if err != nil {
		return nil, err
	}
	priced, err := s.ValidateOffers(ctx, member, event, offers)
	if err != nil {
		return nil, err
	}

	ref := event.Ref()
	action, err := s.open(ctx, tx, tx.Seller, tx.Agent, &model.SeatReservationObject{Event: ref, Offers: priced})
	if err != nil {
		return nil, err
	}

	listSeat := make([]gateway.SeatRef, 0, len(priced))
	for _, o := range priced {
		listSeat = append(listSeat, gateway.SeatRef{SeatSection: o.SeatSection, SeatNum: o.SeatNumber})
	}
	tmp, err := s.seats.UpdTmpReserveSeat(ctx, gateway.UpdTmpReserveSeatArgs{
		TheaterCode:    ref.TheaterCode,
		DateJouei:      ref.DateJouei,
		TitleCode:      ref.TitleCode,
		TitleBranchNum: ref.TitleBranchNum,
		TimeBegin:      ref.TimeBegin,
		ScreenCode:     ref.ScreenCode,
		ListSeat:       listSeat,
	})
	if err != nil {
		if gateway.IsConflict(err) {
			err = &apperr.Error{Kind: apperr.KindAlreadyInUse, Entity: "offers", Message: "some of the seats are not available", Cause: err}
		}
		return nil, s.fail(ctx, action, err)
	}

	return s.complete(ctx, action, seatResult(ref, priced, tmp.TmpReserveNum, tmp.ListTmpReserve))
}

func seatResult(ref model.EventRef, offers []model.SeatReservationOffer, tmpReserveNum int, listTmpReserve []model.TmpReserveSeat) *model.SeatReservationResult {
	price, point := 0, 0
	for _, o := range offers {
		price += o.Price()
		point += o.TicketInfo.UsePoint
	}
	r := &model.SeatReservationResult{
		Price:          price,
		PriceCurrency:  priceCurrencyJPY,
		RequiredPoint:  point,
		TmpReserveNum:  tmpReserveNum,
		ListTmpReserve: listTmpReserve,
		Event:          ref,
		Offers:         offers,
	}
	if point > 0 {
		r.PointAccountType = DefaultPointAccountType
	}
	return r
}

// Cancel releases the tentative reservation of a completed action.
func (s *SeatReservationService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	action, err := s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectSeatReservation)
	if err != nil {
		return nil, err
	}
	r, ok := action.Result.(*model.SeatReservationResult)
	if !ok {
		return action, nil
	}
	if err := s.seats.DelTmpReserve(ctx, delTmpReserveArgs(r)); err != nil {
		return nil, err
	}
	return action, nil
}

func delTmpReserveArgs(r *model.SeatReservationResult) gateway.DelTmpReserveArgs {
	return gateway.DelTmpReserveArgs{
		TheaterCode:    r.Event.TheaterCode,
		DateJouei:      r.Event.DateJouei,
		TitleCode:      r.Event.TitleCode,
		TitleBranchNum: r.Event.TitleBranchNum,
		TimeBegin:      r.Event.TimeBegin,
		TmpReserveNum:  r.TmpReserveNum,
	}
}

// ChangeOffers re-prices the seats of a completed reservation without
// reserving again. The seat set must stay the same.
func (s *SeatReservationService) ChangeOffers(ctx context.Context, agentID, transactionID, actionID, eventIdentifier string, offers []model.SeatReservationOffer) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	action, err := s.actions.FindByID(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.Purpose.ID != tx.ID || action.ObjectType() != model.AuthorizeObjectSeatReservation {
		return nil, apperr.NotFound("authorizeAction")
	}
	if action.ActionStatus != model.ActionStatusCompleted {
		return nil, apperr.Argument("authorizeAction", "action %s is %s", actionID, action.ActionStatus)
	}
	current, ok := action.Result.(*model.SeatReservationResult)
	if !ok {
		return nil, apperr.Argument("authorizeAction", "action %s has no reservation", actionID)
	}
	if current.Event.Identifier != eventIdentifier {
		return nil, apperr.Argument("eventIdentifier", "event must stay %s", current.Event.Identifier)
	}
	if !sameSeats(current.Offers, offers) {
		return nil, apperr.Argument("offers", "seats cannot change, only ticket types")
	}

	event, err := s.events.FindByIdentifier(ctx, eventIdentifier)
	if err != nil {
		return nil, err
	}
	member, err := activeMembership(ctx, s.ownerships, tx.Agent, s.now())
	if err != nil {
		return nil, err
	}
	priced, err := s.ValidateOffers(ctx, member, event, offers)
	if err != nil {
		return nil, err
	}

	obj := &model.SeatReservationObject{Event: current.Event, Offers: priced}
	result := seatResult(current.Event, priced, current.TmpReserveNum, current.ListTmpReserve)
	if err := s.actions.UpdateCompleted(ctx, action.ID, obj, result); err != nil {
		return nil, err
	}
	action.Object = obj
	action.Result = result
	return action, nil
}

func seatKeys(offers []model.SeatReservationOffer) []string {
	keys := make([]string, 0, len(offers))
	for _, o := range offers {
		keys = append(keys, o.SeatSection+"/"+o.SeatNumber)
	}
	return keys
}

func sameSeats(a, b []model.SeatReservationOffer) bool {
	return sameStrings(seatKeys(a), seatKeys(b))
}

// ValidateOffers fills the ticket info of every offer from the gateway
// catalog (member or non-member tier) or, for vouchers, from the voucher's
// ticket code. Each offer that cannot be priced and each group ticket sold
// outside a multiple of its unit yields one sub-error.
func (s *SeatReservationService) ValidateOffers(ctx context.Context, isMember bool, event *model.ScreeningEvent, offers []model.SeatReservationOffer) ([]model.SeatReservationOffer, error) {
	flg := gateway.FlgMemberNonMember
	if isMember {
		flg = gateway.FlgMemberMember
	}
	catalog, err := s.seats.SalesTicket(ctx, gateway.SalesTicketArgs{
		TheaterCode:    event.TheaterCode,
		DateJouei:      event.DateJouei,
		TitleCode:      event.TitleCode,
		TitleBranchNum: event.TitleBranchNum,
		TimeBegin:      event.TimeBegin,
		FlgMember:      flg,
	})
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]gateway.SalesTicket, len(catalog))
	for _, t := range catalog {
		byCode[t.TicketCode] = t
	}

	var errs []*apperr.Error
	priced := make([]model.SeatReservationOffer, len(offers))
	for i, offer := range offers {
		entity := fmt.Sprintf("offers[%d]", i)
		req := offer.TicketInfo
		var info model.TicketInfo

		if req.IsVoucher() {
			if event.MvtkExcludeFlg == "1" {
				errs = append(errs, apperr.Argument(entity, "vouchers cannot be used for this event"))
				continue
			}
			code, err := s.seats.MvtkTicketcode(ctx, gateway.MvtkTicketcodeArgs{
				TheaterCode:     event.TheaterCode,
				KbnDenshiken:    req.MvtkKbnDenshiken,
				KbnMaeuriken:    req.MvtkKbnMaeuriken,
				KbnKensyu:       req.MvtkKbnKensyu,
				SalesPrice:      req.MvtkSalesPrice,
				AppPrice:        req.MvtkAppPrice,
				KbnEisyahousiki: req.KbnEisyahousiki,
				TitleCode:       event.TitleCode,
				TitleBranchNum:  event.TitleBranchNum,
				DateJouei:       event.DateJouei,
			})
			if err != nil {
				if apperr.KindOf(err) != apperr.KindArgument {
					return nil, err
				}
				errs = append(errs, apperr.Argument(entity, "voucher %s has no ticket type: %v", req.MvtkNum, err))
				continue
			}
			info = model.TicketInfo{
				TicketCode:       code.TicketCode,
				TicketName:       code.TicketName,
				TicketNameEng:    code.TicketNameEng,
				TicketNameKana:   code.TicketNameKana,
				AddPrice:         code.AddPrice,
				SalePrice:        code.AddPrice,
				MvtkAppPrice:     req.MvtkAppPrice,
				KbnEisyahousiki:  req.KbnEisyahousiki,
				MvtkNum:          req.MvtkNum,
				MvtkKbnDenshiken: req.MvtkKbnDenshiken,
				MvtkKbnMaeuriken: req.MvtkKbnMaeuriken,
				MvtkKbnKensyu:    req.MvtkKbnKensyu,
				MvtkSalesPrice:   req.MvtkSalesPrice,
			}
			if req.AddGlasses > 0 {
				info.AddGlasses = code.AddPriceGlasses
				info.SalePrice += code.AddPriceGlasses
			}
		} else {
			t, ok := byCode[req.TicketCode]
			if !ok {
				errs = append(errs, apperr.Argument(entity, "ticket code %q is not on sale", req.TicketCode))
				continue
			}
			info = model.TicketInfo{
				TicketCode:     t.TicketCode,
				TicketName:     t.TicketName,
				TicketNameEng:  t.TicketNameEng,
				TicketNameKana: t.TicketNameKana,
				StdPrice:       t.StdPrice,
				AddPrice:       t.AddPrice,
				SalePrice:      t.SalePrice,
				UsePoint:       t.UsePoint,
				LimitUnit:      t.LimitUnit,
				LimitCount:     t.LimitCount,
			}
			if req.AddGlasses > 0 {
				info.AddGlasses = t.AddPriceGlasses
				info.SalePrice += t.AddPriceGlasses
			}
		}
		priced[i] = model.SeatReservationOffer{SeatSection: offer.SeatSection, SeatNumber: offer.SeatNumber, TicketInfo: info}
	}
	if len(errs) > 0 {
		return nil, apperr.Arguments("offers", errs)
	}

	if errs := checkGroupUnits(priced); len(errs) > 0 {
		return nil, apperr.Arguments("offers", errs)
	}
	return priced, nil
}

// checkGroupUnits reports one error per offer of a group ticket whose count
// is not a multiple of its unit size.
func checkGroupUnits(offers []model.SeatReservationOffer) []*apperr.Error {
	counts := map[string]int{}
	for _, o := range offers {
		if o.TicketInfo.LimitUnit == gateway.LimitUnitPerGroup && o.TicketInfo.LimitCount > 0 {
			counts[o.TicketInfo.TicketCode]++
		}
	}
	var errs []*apperr.Error
	for i, o := range offers {
		n, ok := counts[o.TicketInfo.TicketCode]
		if !ok || o.TicketInfo.LimitUnit != gateway.LimitUnitPerGroup {
			continue
		}
		if n%o.TicketInfo.LimitCount != 0 {
			errs = append(errs, apperr.Argument(fmt.Sprintf("offers[%d]", i), "ticket %s is sold in units of %d", o.TicketInfo.TicketCode, o.TicketInfo.LimitCount))
		}
	}
	return errs
}

// IsActiveMember reports whether the agent is priced at the member tier.
func (s *SeatReservationService) IsActiveMember(ctx context.Context, agent model.Party) (bool, error) {
	return activeMembership(ctx, s.ownerships, agent, s.now())
}

// FreeSeats returns the seat map of an event.
func (s *SeatReservationService) FreeSeats(ctx context.Context, eventIdentifier string) (gateway.StateReserveSeatResult, error) {
	event, err := s.events.FindByIdentifier(ctx, eventIdentifier)
	if err != nil {
		return gateway.StateReserveSeatResult{}, err
	}
	return s.seats.StateReserveSeat(ctx, event.Ref())
}

// TicketOffers returns the ticket catalog of an event for the member or
// non-member tier.
func (s *SeatReservationService) TicketOffers(ctx context.Context, eventIdentifier string, isMember bool) ([]gateway.SalesTicket, error) {
	event, err := s.events.FindByIdentifier(ctx, eventIdentifier)
	if err != nil {
		return nil, err
	}
	flg := gateway.FlgMemberNonMember
	if isMember {
		flg = gateway.FlgMemberMember
	}
	return s.seats.SalesTicket(ctx, gateway.SalesTicketArgs{
		TheaterCode:    event.TheaterCode,
		DateJouei:      event.DateJouei,
		TitleCode:      event.TitleCode,
		TitleBranchNum: event.TitleBranchNum,
		TimeBegin:      event.TimeBegin,
		FlgMember:      flg,
	})
}
