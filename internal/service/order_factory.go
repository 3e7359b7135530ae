package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

const priceCurrencyJPY = "JPY"

type orderInput struct {
	tx          *model.Transaction
	seller      *model.Seller
	actions     []model.AuthorizeAction
	events      map[string]*model.ScreeningEvent
	orderNumber string
	orderDate   time.Time
	urlBase     string
}

// buildOrder turns the completed authorize actions into an order. Accepted
// offer prices are gross; voucher amounts are listed as discounts and the
// order price is what remains to pay.
func buildOrder(in orderInput) model.Order {
	contact := in.tx.Object.CustomerContact
	customer := model.Customer{
		ID:       in.tx.Agent.ID,
		TypeOf:   model.PartyTypePerson,
		MemberOf: in.tx.Agent.MemberOf,
	}
	underName := ""
	if contact != nil {
		underName = strings.TrimSpace(contact.FamilyName + " " + contact.GivenName)
		customer.Name = underName
		customer.Email = contact.Email
		customer.Telephone = contact.Telephone
	}

	order := model.Order{
		OrderNumber:    in.orderNumber,
		OrderDate:      in.orderDate,
		OrderStatus:    model.OrderStatusProcessing,
		PriceCurrency:  priceCurrencyJPY,
		Customer:       customer,
		Seller:         in.seller.AsParty(),
		AcceptedOffers: []model.AcceptedOffer{},
		PaymentMethods: []model.PaymentMethod{},
		Discounts:      []model.Discount{},
	}

	for _, a := range in.actions {
		switch r := a.Result.(type) {
		case *model.SeatReservationResult:
			order.ConfirmationNumber = r.TmpReserveNum
			ev := in.events[r.Event.Identifier]
			for i, offer := range r.Offers {
				res := &model.EventReservation{
					ID:                fmt.Sprintf("%s-%d", in.orderNumber, len(order.AcceptedOffers)),
					ReservationNumber: strconv.Itoa(r.TmpReserveNum),
					ReservationFor:    model.ReservationFor{EventRef: r.Event},
					ReservedTicket: model.ReservedTicket{
						TicketToken:  fmt.Sprintf("%s-%d-%d", r.Event.TheaterCode, r.TmpReserveNum, i),
						TicketedSeat: model.TicketedSeat{SeatSection: offer.SeatSection, SeatNumber: offer.SeatNumber},
						TicketType:   offer.TicketInfo,
					},
					UnderName: underName,
				}
				if ev != nil {
					res.ReservationFor.Name = ev.Name
					res.ReservationFor.StartDate = ev.StartDate
					res.ReservationFor.EndDate = ev.EndDate
				}
				order.AcceptedOffers = append(order.AcceptedOffers, model.AcceptedOffer{
					ItemOffered:   model.ItemOffered{EventReservation: res},
					Price:         offer.TicketInfo.SalePrice + offer.TicketInfo.MvtkSalesPrice,
					PriceCurrency: priceCurrencyJPY,
					SellerID:      in.seller.ID,
				})
			}
		case *model.ProgramMembershipResult:
			obj, ok := a.Object.(*model.ProgramMembershipObject)
			if !ok {
				continue
			}
			pm := obj.ProgramMembership
			pm.MembershipNumber = obj.MembershipNumber
			pm.Offers = []model.ProgramMembershipOffer{{
				Identifier:       obj.OfferIdentifier,
				Price:            obj.Price,
				EligibleDuration: obj.EligibleDuration,
			}}
			order.AcceptedOffers = append(order.AcceptedOffers, model.AcceptedOffer{
				ItemOffered:   model.ItemOffered{ProgramMembership: &pm},
				Price:         r.Price,
				PriceCurrency: priceCurrencyJPY,
				SellerID:      in.seller.ID,
			})
		case *model.CreditCardResult:
			order.PaymentMethods = append(order.PaymentMethods, model.PaymentMethod{
				Name:            "Credit card",
				TypeOf:          model.PaymentMethodCreditCard,
				PaymentMethodID: r.OrderID,
				TotalPaymentDue: r.Price,
			})
		case *model.AccountResult:
			order.PaymentMethods = append(order.PaymentMethods, model.PaymentMethod{
				Name:            accountTypeOr(r.AccountType),
				TypeOf:          model.PaymentMethodAccount,
				PaymentMethodID: r.PendingTransaction.ID,
				TotalPaymentDue: r.Amount,
			})
		case *model.MvtkResult:
			codes := voucherCodes(a.Object)
			order.PaymentMethods = append(order.PaymentMethods, model.PaymentMethod{
				Name:            "Movie ticket voucher",
				TypeOf:          model.PaymentMethodMvtk,
				PaymentMethodID: codes,
				TotalPaymentDue: r.Price,
			})
			order.Discounts = append(order.Discounts, model.Discount{
				Name:         "Movie ticket voucher",
				Amount:       r.Price,
				DiscountCode: codes,
			})
		}
	}

	gross := 0
	for _, o := range order.AcceptedOffers {
		gross += o.Price
	}
	discount := 0
	for _, d := range order.Discounts {
		discount += d.Amount
	}
	order.Price = gross - discount

	order.OrderInquiryKey = model.OrderInquiryKey{
		TheaterCode:        in.seller.BranchCode,
		ConfirmationNumber: order.ConfirmationNumber,
		Telephone:          customer.Telephone,
	}
	if in.urlBase != "" {
		q := url.Values{}
		q.Set("theaterCode", order.OrderInquiryKey.TheaterCode)
		q.Set("confirmationNumber", strconv.Itoa(order.ConfirmationNumber))
		order.URL = strings.TrimRight(in.urlBase, "/") + "/inquiry?" + q.Encode()
	}
	return order
}

func voucherCodes(obj model.AuthorizeObject) string {
	o, ok := obj.(*model.MvtkObject)
	if !ok {
		return ""
	}
	codes := make([]string, 0, len(o.SeatInfoSyncIn.KnyknrNoInfo))
	for _, k := range o.SeatInfoSyncIn.KnyknrNoInfo {
		codes = append(codes, k.KnyknrNo)
	}
	return strings.Join(codes, ",")
}

// buildOwnershipInfos derives one ownership info per accepted offer.
// Identifiers are stable per order so that saving them twice is harmless.
func buildOwnershipInfos(order model.Order, orderDate time.Time) []model.OwnershipInfo {
	owner := model.Party{
		ID:       order.Customer.ID,
		TypeOf:   order.Customer.TypeOf,
		Name:     order.Customer.Name,
		MemberOf: order.Customer.MemberOf,
	}
	infos := make([]model.OwnershipInfo, 0, len(order.AcceptedOffers))
	for i, offer := range order.AcceptedOffers {
		good := offer.ItemOffered
		info := model.OwnershipInfo{
			ID:           uuid.NewString(),
			Identifier:   fmt.Sprintf("%s-%s-%d", good.TypeOf(), order.OrderNumber, i),
			OwnedBy:      owner,
			AcquiredFrom: order.Seller,
			OwnedFrom:    orderDate,
			TypeOfGood:   good,
		}
		switch good.TypeOf() {
		case model.GoodTypeEventReservation:
			info.OwnedThrough = good.EventReservation.ReservationFor.EndDate
			if info.OwnedThrough.IsZero() {
				info.OwnedThrough = orderDate
			}
		case model.GoodTypeProgramMembership:
			duration := 0
			if len(good.ProgramMembership.Offers) > 0 {
				duration = good.ProgramMembership.Offers[0].EligibleDuration
			}
			info.OwnedThrough = orderDate.Add(time.Duration(duration) * time.Second)
		}
		infos = append(infos, info)
	}
	return infos
}

// buildPotentialActions lists the side effects the confirmed transaction
// still owes.
func buildPotentialActions(tx *model.Transaction, order model.Order, actions []model.AuthorizeAction, email *model.SendEmailMessageAction) model.PotentialActions {
	pa := model.PotentialActions{
		PayAccount:                []model.PayAccountAction{},
		GivePointAward:            []model.GivePointAwardAction{},
		SendOrder:                 model.SendOrderAction{SendEmailMessage: email},
		RegisterProgramMembership: []model.RegisterProgramMembershipAction{},
	}

	var card *model.CardRef
	for _, a := range actions {
		switch r := a.Result.(type) {
		case *model.CreditCardResult:
			pa.PayCreditCard = &model.PayCreditCardAction{AuthorizeActionID: a.ID, OrderID: r.OrderID, Amount: r.Price}
			if obj, ok := a.Object.(*model.CreditCardObject); ok {
				card = obj.Card
			}
		case *model.AccountResult:
			pa.PayAccount = append(pa.PayAccount, model.PayAccountAction{
				AuthorizeActionID:  a.ID,
				Amount:             r.Amount,
				AccountType:        r.AccountType,
				PendingTransaction: r.PendingTransaction,
			})
		case *model.MvtkResult:
			if obj, ok := a.Object.(*model.MvtkObject); ok {
				pa.UseMvtk = &model.UseMvtkAction{AuthorizeActionID: a.ID, SeatInfoSyncIn: obj.SeatInfoSyncIn}
			}
		case *model.PointAwardResult:
			pa.GivePointAward = append(pa.GivePointAward, model.GivePointAwardAction{
				AuthorizeActionID:  a.ID,
				Amount:             r.Amount,
				PendingTransaction: r.PendingTransaction,
			})
		}
	}

	var contact model.CustomerContact
	if tx.Object.CustomerContact != nil {
		contact = *tx.Object.CustomerContact
	}
	for _, offer := range order.AcceptedOffers {
		pm := offer.ItemOffered.ProgramMembership
		if pm == nil || len(pm.Offers) == 0 {
			continue
		}
		pa.RegisterProgramMembership = append(pa.RegisterProgramMembership, model.RegisterProgramMembershipAction{
			RunsAt: order.OrderDate.Add(time.Duration(pm.Offers[0].EligibleDuration) * time.Second),
			Data: model.RegisterProgramMembershipData{
				Agent:               tx.Agent,
				SellerID:            tx.Seller.ID,
				ProgramMembershipID: pm.ID,
				OfferIdentifier:     pm.Offers[0].Identifier,
				MembershipNumber:    pm.MembershipNumber,
				CustomerContact:     contact,
				Card:                card,
			},
		})
	}
	return pa
}

func buildEmailMessage(order model.Order, seller *model.Seller, cfg config.TransactionConfig) *model.SendEmailMessageAction {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nThank you for your order.\n\n", order.Customer.Name)
	fmt.Fprintf(&b, "Order number: %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Confirmation number: %d\n", order.ConfirmationNumber)
	for _, o := range order.AcceptedOffers {
		if r := o.ItemOffered.EventReservation; r != nil {
			fmt.Fprintf(&b, "%s %s seat %s %s (%s)\n",
				r.ReservationFor.StartDate.In(jst).Format("2006-01-02 15:04"),
				r.ReservationFor.Name,
				r.ReservedTicket.TicketedSeat.SeatNumber,
				r.ReservedTicket.TicketType.TicketName,
				strconv.Itoa(o.Price)+" "+o.PriceCurrency)
		}
		if pm := o.ItemOffered.ProgramMembership; pm != nil {
			fmt.Fprintf(&b, "%s membership (%s %s)\n", pm.ProgramName, strconv.Itoa(o.Price), o.PriceCurrency)
		}
	}
	fmt.Fprintf(&b, "Total: %d %s\n", order.Price, order.PriceCurrency)
	if order.URL != "" {
		fmt.Fprintf(&b, "\n%s\n", order.URL)
	}
	fmt.Fprintf(&b, "\n%s %s\n", seller.Name, seller.Telephone)

	return &model.SendEmailMessageAction{
		ID:          uuid.NewString(),
		Sender:      model.EmailAddress{Name: cfg.EmailSenderName, Email: cfg.EmailSender},
		ToRecipient: model.EmailAddress{Name: order.Customer.Name, Email: order.Customer.Email},
		About:       fmt.Sprintf("%s order %s", seller.Name, order.OrderNumber),
		Text:        b.String(),
	}
}

var jst = time.FixedZone("Asia/Tokyo", 9*60*60)

// mustMarshal encodes task payloads built from plain structs.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("service: marshal %T: %v", v, err))
	}
	return b
}
