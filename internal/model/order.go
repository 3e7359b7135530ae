package model

import "time"

// OrderStatus is the delivery state of an order.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "OrderProcessing"
	OrderStatusDelivered  OrderStatus = "OrderDelivered"
)

// PaymentMethodType names how (part of) an order was paid.
type PaymentMethodType string

const (
	PaymentMethodCreditCard PaymentMethodType = "CreditCard"
	PaymentMethodAccount    PaymentMethodType = "Account"
	PaymentMethodMvtk       PaymentMethodType = "Mvtk"
)

// PaymentMethod is one entry per completed payment-type authorize action.
type PaymentMethod struct {
	Name            string            `json:"name"`
	TypeOf          PaymentMethodType `json:"typeOf"`
	PaymentMethodID string            `json:"paymentMethodId"`
	TotalPaymentDue int               `json:"totalPaymentDue"`
}

// Discount is a voucher discount applied to the order.
type Discount struct {
	Name         string `json:"name"`
	Amount       int    `json:"discount"`
	DiscountCode string `json:"discountCode"`
}

// OrderInquiryKey lets a customer look an order up without an account.
type OrderInquiryKey struct {
	TheaterCode        string `json:"theaterCode"`
	ConfirmationNumber int    `json:"confirmationNumber"`
	Telephone          string `json:"telephone"`
}

// Customer is the buyer snapshot on an order.
type Customer struct {
	ID        string    `json:"id"`
	TypeOf    PartyType `json:"typeOf"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Telephone string    `json:"telephone"`
	MemberOf  *MemberOf `json:"memberOf,omitempty"`
}

// TicketedSeat is the seat of an event reservation.
type TicketedSeat struct {
	SeatSection string `json:"seatSection"`
	SeatNumber  string `json:"seatNumber"`
}

// ReservedTicket is the ticket issued for an event reservation.
type ReservedTicket struct {
	TicketToken  string       `json:"ticketToken"`
	TicketedSeat TicketedSeat `json:"ticketedSeat"`
	TicketType   TicketInfo   `json:"ticketType"`
}

// ReservationFor is the event snapshot on an event reservation.
type ReservationFor struct {
	EventRef
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// EventReservation is one seat reserved for a screening event.
type EventReservation struct {
	ID                string         `json:"id"`
	ReservationNumber string         `json:"reservationNumber"`
	ReservationFor    ReservationFor `json:"reservationFor"`
	ReservedTicket    ReservedTicket `json:"reservedTicket"`
	UnderName         string         `json:"underName"`
}

// ItemOffered is the good behind an accepted offer. Exactly one field is set.
type ItemOffered struct {
	EventReservation  *EventReservation  `json:"eventReservation,omitempty"`
	ProgramMembership *ProgramMembership `json:"programMembership,omitempty"`
}

// GoodType discriminates ItemOffered.
type GoodType string

const (
	GoodTypeEventReservation  GoodType = "EventReservation"
	GoodTypeProgramMembership GoodType = "ProgramMembership"
)

// TypeOf returns the kind of good that is set.
func (i ItemOffered) TypeOf() GoodType {
	switch {
	case i.EventReservation != nil:
		return GoodTypeEventReservation
	case i.ProgramMembership != nil:
		return GoodTypeProgramMembership
	}
	return ""
}

// AcceptedOffer is one purchased item. Price is gross (before discounts).
type AcceptedOffer struct {
	ItemOffered   ItemOffered `json:"itemOffered"`
	Price         int         `json:"price"`
	PriceCurrency string      `json:"priceCurrency"`
	SellerID      string      `json:"sellerId"`
}

// Order is the finalized purchase built at confirmation.
type Order struct {
	OrderNumber        string          `json:"orderNumber"`
	ConfirmationNumber int             `json:"confirmationNumber"`
	OrderInquiryKey    OrderInquiryKey `json:"orderInquiryKey"`
	OrderDate          time.Time       `json:"orderDate"`
	OrderStatus        OrderStatus     `json:"orderStatus"`
	Price              int             `json:"price"`
	PriceCurrency      string          `json:"priceCurrency"`
	Customer           Customer        `json:"customer"`
	Seller             Party           `json:"seller"`
	AcceptedOffers     []AcceptedOffer `json:"acceptedOffers"`
	PaymentMethods     []PaymentMethod `json:"paymentMethods"`
	Discounts          []Discount      `json:"discounts"`
	URL                string          `json:"url,omitempty"`
}
