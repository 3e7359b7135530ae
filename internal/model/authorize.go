package model

// TicketInfo is one ticket type as priced by the seat reservation gateway.
// Price fields are always filled from the gateway catalog or the voucher code
// translation, never from client input.
type TicketInfo struct {
	TicketCode       string `json:"ticketCode"`
	TicketName       string `json:"ticketName"`
	TicketNameEng    string `json:"ticketNameEng"`
	TicketNameKana   string `json:"ticketNameKana"`
	StdPrice         int    `json:"stdPrice"`
	AddPrice         int    `json:"addPrice"`
	DisPrice         int    `json:"disPrice"`
	SalePrice        int    `json:"salePrice"`
	AddGlasses       int    `json:"addGlasses"`
	UsePoint         int    `json:"usePoint"`
	LimitUnit        string `json:"limitUnit,omitempty"`
	LimitCount       int    `json:"limitCount,omitempty"`
	MvtkAppPrice     int    `json:"mvtkAppPrice"`
	KbnEisyahousiki  string `json:"kbnEisyahousiki"`
	MvtkNum          string `json:"mvtkNum"`
	MvtkKbnDenshiken string `json:"mvtkKbnDenshiken"`
	MvtkKbnMaeuriken string `json:"mvtkKbnMaeuriken"`
	MvtkKbnKensyu    string `json:"mvtkKbnKensyu"`
	MvtkSalesPrice   int    `json:"mvtkSalesPrice"`
}

// IsVoucher reports whether the ticket is paid by a movie-ticket voucher.
func (t TicketInfo) IsVoucher() bool { return t.MvtkNum != "" }

// SeatReservationOffer is one requested seat with its ticket type.
type SeatReservationOffer struct {
	SeatSection string     `json:"seatSection"`
	SeatNumber  string     `json:"seatNumber"`
	TicketInfo  TicketInfo `json:"ticketInfo"`
}

// Price is the amount the seller charges for the seat, net of any voucher.
func (o SeatReservationOffer) Price() int {
	return o.TicketInfo.SalePrice
}

// EventRef identifies a screening event on the seat reservation gateway.
type EventRef struct {
	Identifier     string `json:"identifier"`
	TheaterCode    string `json:"theaterCode"`
	DateJouei      string `json:"dateJouei"`
	TitleCode      string `json:"titleCode"`
	TitleBranchNum string `json:"titleBranchNum"`
	TimeBegin      string `json:"timeBegin"`
	ScreenCode     string `json:"screenCode"`
}

// TmpReserveSeat is one tentatively reserved seat returned by the gateway.
type TmpReserveSeat struct {
	SeatSection      string `json:"seatSection"`
	SeatNum          string `json:"seatNum"`
	StatusTmpReserve string `json:"sttsTmpReserve"`
}

// SeatReservationObject requests seats for a screening event.
type SeatReservationObject struct {
	Event  EventRef               `json:"event"`
	Offers []SeatReservationOffer `json:"offers"`
}

// SeatReservationResult holds the tentative reservation and its price.
type SeatReservationResult struct {
	Price            int                    `json:"price"`
	PriceCurrency    string                 `json:"priceCurrency"`
	RequiredPoint    int                    `json:"requiredPoint"`
	PointAccountType string                 `json:"pointAccountType,omitempty"`
	TmpReserveNum    int                    `json:"tmpReserveNum"`
	ListTmpReserve   []TmpReserveSeat       `json:"listTmpReserve"`
	Event            EventRef               `json:"event"`
	Offers           []SeatReservationOffer `json:"offers"`
}

// CardRef points at a card registered on the payment gateway for a member.
type CardRef struct {
	MemberID string `json:"memberId"`
	CardSeq  int    `json:"cardSeq"`
}

// CreditCardObject requests a credit card authorization. Raw card numbers are
// never stored; only a gateway token or a registered card reference.
type CreditCardObject struct {
	OrderID string   `json:"orderId"`
	Amount  int      `json:"amount"`
	Method  string   `json:"method"`
	Token   string   `json:"token,omitempty"`
	Card    *CardRef `json:"card,omitempty"`
}

// CreditCardResult is what the payment gateway returned for the
// authorization. AccessID/AccessPass are needed to settle or void.
type CreditCardResult struct {
	Price      int    `json:"price"`
	ShopID     string `json:"shopId"`
	OrderID    string `json:"orderId"`
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
	Approve    string `json:"approve"`
	TranID     string `json:"tranId"`
	TranDate   string `json:"tranDate"`
}

// MvtkPurchaseNumber is one voucher purchase number with its ticket counts.
type MvtkPurchaseNumber struct {
	KnyknrNo string           `json:"knyknrNo"`
	PinCd    string           `json:"pinCd"`
	KnshInfo []MvtkTicketKind `json:"knshInfo"`
}

// MvtkTicketKind is a voucher ticket kind and its count.
type MvtkTicketKind struct {
	KnshTyp string `json:"knshTyp"`
	MiNum   int    `json:"miNum"`
}

// MvtkSeatInfoSync is the voucher gateway's seat synchronization payload.
type MvtkSeatInfoSync struct {
	KgygishCd           string               `json:"kgygishCd"`
	YykDvcTyp           string               `json:"yykDvcTyp"`
	TrkshFlg            string               `json:"trkshFlg"`
	KgygishSstmZskyykNo string               `json:"kgygishSstmZskyykNo"`
	KgygishUsrZskyykNo  string               `json:"kgygishUsrZskyykNo"`
	JeiDt               string               `json:"jeiDt"`
	KijYmd              string               `json:"kijYmd"`
	StCd                string               `json:"stCd"`
	ScrnCd              string               `json:"screnCd"`
	KnyknrNoInfo        []MvtkPurchaseNumber `json:"knyknrNoInfo"`
	ZskInfo             []string             `json:"zskInfo"`
	SkhnCd              string               `json:"skhnCd"`
}

// MvtkObject authorizes movie-ticket vouchers as a discount.
type MvtkObject struct {
	Price          int              `json:"price"`
	SeatInfoSyncIn MvtkSeatInfoSync `json:"seatInfoSyncIn"`
}

// MvtkResult is the voucher discount amount.
type MvtkResult struct {
	Price int `json:"price"`
}

// PendingTransactionType names the point ledger backend that holds a pending
// transaction.
type PendingTransactionType string

const (
	PendingTransactionWithdraw PendingTransactionType = "Withdraw"
	PendingTransactionTransfer PendingTransactionType = "Transfer"
	PendingTransactionDeposit  PendingTransactionType = "Deposit"
)

// PendingTransactionRef is a handle on a point ledger pending transaction.
type PendingTransactionRef struct {
	ID     string                 `json:"id"`
	TypeOf PendingTransactionType `json:"typeOf"`
}

// AccountObject requests a point-account debit.
type AccountObject struct {
	Amount            int    `json:"amount"`
	AccountType       string `json:"accountType"`
	FromAccountNumber string `json:"fromAccountNumber"`
	ToAccountNumber   string `json:"toAccountNumber,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// AccountResult holds the ledger pending transaction for the debit.
type AccountResult struct {
	Amount             int                   `json:"amount"`
	AccountType        string                `json:"accountType"`
	PendingTransaction PendingTransactionRef `json:"pendingTransaction"`
}

// ProgramMembershipObject requests a program membership offer.
type ProgramMembershipObject struct {
	OfferIdentifier   string            `json:"offerIdentifier"`
	Price             int               `json:"price"`
	ProgramMembership ProgramMembership `json:"programMembership"`
	EligibleDuration  int               `json:"eligibleDuration"`
	MembershipNumber  string            `json:"membershipNumber"`
}

// ProgramMembershipResult is the accepted membership price.
type ProgramMembershipResult struct {
	Price         int    `json:"price"`
	PriceCurrency string `json:"priceCurrency"`
}

// PointAwardObject requests an incentive point deposit to the buyer.
type PointAwardObject struct {
	Amount          int    `json:"amount"`
	ToAccountNumber string `json:"toAccountNumber"`
	Notes           string `json:"notes,omitempty"`
}

// PointAwardResult holds the ledger pending deposit.
type PointAwardResult struct {
	Amount             int                   `json:"amount"`
	PendingTransaction PendingTransactionRef `json:"pendingTransaction"`
}

func (*SeatReservationObject) ObjectType() AuthorizeObjectType { return AuthorizeObjectSeatReservation }
func (*CreditCardObject) ObjectType() AuthorizeObjectType      { return AuthorizeObjectCreditCard }
func (*MvtkObject) ObjectType() AuthorizeObjectType            { return AuthorizeObjectMvtk }
func (*AccountObject) ObjectType() AuthorizeObjectType         { return AuthorizeObjectAccount }
func (*ProgramMembershipObject) ObjectType() AuthorizeObjectType {
	return AuthorizeObjectProgramMembership
}
func (*PointAwardObject) ObjectType() AuthorizeObjectType { return AuthorizeObjectPointAward }

func (*SeatReservationObject) isAuthorizeObject()   {}
func (*CreditCardObject) isAuthorizeObject()        {}
func (*MvtkObject) isAuthorizeObject()              {}
func (*AccountObject) isAuthorizeObject()           {}
func (*ProgramMembershipObject) isAuthorizeObject() {}
func (*PointAwardObject) isAuthorizeObject()        {}

func (*SeatReservationResult) ObjectType() AuthorizeObjectType { return AuthorizeObjectSeatReservation }
func (*CreditCardResult) ObjectType() AuthorizeObjectType      { return AuthorizeObjectCreditCard }
func (*MvtkResult) ObjectType() AuthorizeObjectType            { return AuthorizeObjectMvtk }
func (*AccountResult) ObjectType() AuthorizeObjectType         { return AuthorizeObjectAccount }
func (*ProgramMembershipResult) ObjectType() AuthorizeObjectType {
	return AuthorizeObjectProgramMembership
}
func (*PointAwardResult) ObjectType() AuthorizeObjectType { return AuthorizeObjectPointAward }

func (*SeatReservationResult) isAuthorizeResult()   {}
func (*CreditCardResult) isAuthorizeResult()        {}
func (*MvtkResult) isAuthorizeResult()              {}
func (*AccountResult) isAuthorizeResult()           {}
func (*ProgramMembershipResult) isAuthorizeResult() {}
func (*PointAwardResult) isAuthorizeResult()        {}
