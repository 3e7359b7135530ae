package service

import (
	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// DefaultPointAccountType is the ledger account type points are held in.
const DefaultPointAccountType = "Point"

// MaxPointAwardPerOrder caps the points awarded on one order.
const MaxPointAwardPerOrder = 1

// ValidateAuthorizeActions checks that the completed authorize actions of tx
// add up to a consistent order:
//
//   - at most one credit card and at most one voucher authorization;
//   - the voucher authorization covers exactly the voucher-priced seats;
//   - the point awards do not sum past MaxPointAwardPerOrder;
//   - seats that require points are matched by a point payment of the same
//     account type and amount;
//   - the money the buyer authorized equals what the seller charges.
//
// The buyer side counts credit card amounts only. The seller side counts
// seat prices (already net of vouchers) and membership offer prices.
func ValidateAuthorizeActions(tx *model.Transaction, actions []model.AuthorizeAction) error {
	var (
		priceByAgent  int
		priceBySeller int
		creditCards   int
		vouchers      int
		voucherSeats  int
		voucherPrice  int
		awardTotal    int
		requiredPoint = map[string]int{}
		paidPoint     = map[string]int{}
	)

	for _, a := range actions {
		if a.ActionStatus != model.ActionStatusCompleted || a.Result == nil {
			continue
		}
		switch r := a.Result.(type) {
		case *model.CreditCardResult:
			creditCards++
			if a.Agent.ID == tx.Agent.ID {
				priceByAgent += r.Price
			}
		case *model.MvtkResult:
			vouchers++
			voucherPrice += r.Price
		case *model.AccountResult:
			paidPoint[accountTypeOr(r.AccountType)] += r.Amount
		case *model.SeatReservationResult:
			if a.Agent.ID == tx.Seller.ID {
				priceBySeller += r.Price
			}
			for _, o := range r.Offers {
				if o.TicketInfo.IsVoucher() {
					voucherSeats += o.TicketInfo.MvtkSalesPrice
				}
			}
			if r.RequiredPoint > 0 {
				requiredPoint[accountTypeOr(r.PointAccountType)] += r.RequiredPoint
			}
		case *model.ProgramMembershipResult:
			if a.Agent.ID == tx.Seller.ID {
				priceBySeller += r.Price
			}
		case *model.PointAwardResult:
			awardTotal += r.Amount
		}
	}

	if creditCards > 1 {
		return apperr.Argument("authorizeActions", "only one credit card authorization is allowed, found %d", creditCards)
	}
	if vouchers > 1 {
		return apperr.Argument("authorizeActions", "only one voucher authorization is allowed, found %d", vouchers)
	}
	if voucherPrice != voucherSeats {
		return apperr.Argument("authorizeActions", "vouchers authorized for %d but voucher seats are priced %d", voucherPrice, voucherSeats)
	}
	if awardTotal > MaxPointAwardPerOrder {
		return apperr.Argument("authorizeActions", "point award of %d exceeds %d per order", awardTotal, MaxPointAwardPerOrder)
	}
	for accountType, required := range requiredPoint {
		if paidPoint[accountType] != required {
			return apperr.Argument("authorizeActions", "%d %s points required but %d authorized", required, accountType, paidPoint[accountType])
		}
	}
	if priceByAgent != priceBySeller {
		return apperr.Argument("authorizeActions", "transaction %s cannot be confirmed: buyer authorized %d but seller charges %d", tx.ID, priceByAgent, priceBySeller)
	}
	return nil
}

func accountTypeOr(t string) string {
	if t == "" {
		return DefaultPointAccountType
	}
	return t
}
