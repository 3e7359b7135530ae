package service

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// MvtkService authorizes movie-ticket vouchers as a discount. Vouchers are
// only checked against the seat reservation here; they are consumed when the
// transaction is settled.
type MvtkService struct {
	authorizer
}

func NewMvtkService(deps AuthorizeDeps) *MvtkService {
	return &MvtkService{authorizer: newAuthorizer(deps)}
}

// Create validates obj against the completed seat reservation of the
// transaction and records the voucher discount.
func (s *MvtkService) Create(ctx context.Context, agentID, transactionID string, obj model.MvtkObject) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	seats, err := s.completedOf(ctx, tx.ID, model.AuthorizeObjectSeatReservation)
	if err != nil {
		return nil, err
	}
	if len(seats) != 1 {
		return nil, apperr.Argument("authorizeActions", "exactly one seat reservation is required, found %d", len(seats))
	}
	seat := seats[0].Result.(*model.SeatReservationResult)

	price, err := validateVoucher(seat, obj.SeatInfoSyncIn)
	if err != nil {
		return nil, err
	}
	if obj.Price != 0 && obj.Price != price {
		return nil, apperr.Argument("price", "voucher price %d does not match seats (%d)", obj.Price, price)
	}
	obj.Price = price

	action, err := s.open(ctx, tx, tx.Agent, tx.Seller, &obj)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, action, &model.MvtkResult{Price: price})
}

// validateVoucher checks that in targets the reserved screening and seats
// and covers exactly the voucher-priced offers. It returns the sum of their
// voucher sales prices.
func validateVoucher(seat *model.SeatReservationResult, in model.MvtkSeatInfoSync) (int, error) {
	ev := seat.Event
	theater := ev.TheaterCode
	if len(theater) > 2 {
		theater = theater[len(theater)-2:]
	}
	if in.StCd != theater {
		return 0, apperr.Argument("seatInfoSyncIn.stCd", "theater %q does not match %q", in.StCd, theater)
	}
	if in.ScrnCd != ev.ScreenCode {
		return 0, apperr.Argument("seatInfoSyncIn.screnCd", "screen %q does not match %q", in.ScrnCd, ev.ScreenCode)
	}
	if !strings.HasPrefix(in.JeiDt, strings.ReplaceAll(ev.DateJouei, "/", "")) {
		return 0, apperr.Argument("seatInfoSyncIn.jeiDt", "screening date %q does not match %q", in.JeiDt, ev.DateJouei)
	}

	var seatNums, purchase []string
	price := 0
	for _, o := range seat.Offers {
		if !o.TicketInfo.IsVoucher() {
			continue
		}
		seatNums = append(seatNums, o.SeatNumber)
		purchase = append(purchase, o.TicketInfo.MvtkNum)
		price += o.TicketInfo.MvtkSalesPrice
	}
	if len(seatNums) == 0 {
		return 0, apperr.Argument("offers", "no seat is priced with a voucher")
	}

	tickets := 0
	var given []string
	for _, k := range in.KnyknrNoInfo {
		for _, kind := range k.KnshInfo {
			tickets += kind.MiNum
			for i := 0; i < kind.MiNum; i++ {
				given = append(given, k.KnyknrNo)
			}
		}
	}
	if tickets != len(seatNums) {
		return 0, apperr.Argument("seatInfoSyncIn.knyknrNoInfo", "%d voucher tickets for %d voucher seats", tickets, len(seatNums))
	}
	if !sameStrings(given, purchase) {
		return 0, apperr.Argument("seatInfoSyncIn.knyknrNoInfo", "purchase numbers do not match the reserved offers")
	}
	if !sameStrings(in.ZskInfo, seatNums) {
		return 0, apperr.Argument("seatInfoSyncIn.zskInfo", "seats do not match the reserved offers")
	}
	return price, nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Cancel drops a voucher authorization. Nothing was consumed on the voucher
// gateway yet, so only the action changes.
func (s *MvtkService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	return s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectMvtk)
}
