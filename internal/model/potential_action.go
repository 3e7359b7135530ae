package model

import "time"

// PotentialActions is the set of side effects to run after confirmation.
// Optional actions are pointers or slices; SendOrder is always present.
type PotentialActions struct {
	PayCreditCard             *PayCreditCardAction              `json:"payCreditCard,omitempty"`
	PayAccount                []PayAccountAction                `json:"payAccount"`
	UseMvtk                   *UseMvtkAction                    `json:"useMvtk,omitempty"`
	GivePointAward            []GivePointAwardAction            `json:"givePointAward"`
	SendOrder                 SendOrderAction                   `json:"sendOrder"`
	RegisterProgramMembership []RegisterProgramMembershipAction `json:"registerProgramMembership"`
}

// PayCreditCardAction settles the completed credit card authorization.
type PayCreditCardAction struct {
	AuthorizeActionID string `json:"authorizeActionId"`
	OrderID           string `json:"orderId"`
	Amount            int    `json:"amount"`
}

// PayAccountAction confirms one point-account pending debit.
type PayAccountAction struct {
	AuthorizeActionID  string                `json:"authorizeActionId"`
	Amount             int                   `json:"amount"`
	AccountType        string                `json:"accountType"`
	PendingTransaction PendingTransactionRef `json:"pendingTransaction"`
}

// UseMvtkAction consumes the authorized vouchers.
type UseMvtkAction struct {
	AuthorizeActionID string           `json:"authorizeActionId"`
	SeatInfoSyncIn    MvtkSeatInfoSync `json:"seatInfoSyncIn"`
}

// GivePointAwardAction confirms one pending point deposit.
type GivePointAwardAction struct {
	AuthorizeActionID  string                `json:"authorizeActionId"`
	Amount             int                   `json:"amount"`
	PendingTransaction PendingTransactionRef `json:"pendingTransaction"`
}

// SendOrderAction delivers the order. SendEmailMessage is nil when the buyer
// did not ask for a confirmation email.
type SendOrderAction struct {
	SendEmailMessage *SendEmailMessageAction `json:"sendEmailMessage,omitempty"`
}

// EmailAddress is a named mailbox.
type EmailAddress struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SendEmailMessageAction is one email to send.
type SendEmailMessageAction struct {
	ID          string       `json:"id"`
	Sender      EmailAddress `json:"sender"`
	ToRecipient EmailAddress `json:"toRecipient"`
	About       string       `json:"about"`
	Text        string       `json:"text"`
}

// RegisterProgramMembershipAction schedules the renewal of a membership.
type RegisterProgramMembershipAction struct {
	RunsAt time.Time                     `json:"runsAt"`
	Data   RegisterProgramMembershipData `json:"data"`
}
