package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// LimitUnitPerGroup marks a ticket that must be sold in multiples of its
// LimitCount (a pair ticket, for instance).
const LimitUnitPerGroup = "001"

// Member tiers of the ticket catalog.
const (
	FlgMemberNonMember = "0"
	FlgMemberMember    = "1"
)

// SalesTicketArgs selects the ticket catalog of one screening.
type SalesTicketArgs struct {
	TheaterCode    string `json:"theaterCode"`
	DateJouei      string `json:"dateJouei"`
	TitleCode      string `json:"titleCode"`
	TitleBranchNum string `json:"titleBranchNum"`
	TimeBegin      string `json:"timeBegin"`
	FlgMember      string `json:"flgMember"`
}

// SalesTicket is one sellable ticket type.
type SalesTicket struct {
	TicketCode      string `json:"ticketCode"`
	TicketName      string `json:"ticketName"`
	TicketNameKana  string `json:"ticketNameKana"`
	TicketNameEng   string `json:"ticketNameEng"`
	StdPrice        int    `json:"stdPrice"`
	AddPrice        int    `json:"addPrice"`
	SalePrice       int    `json:"salePrice"`
	TicketNote      string `json:"ticketNote"`
	AddPriceGlasses int    `json:"addPriceGlasses"`
	LimitCount      int    `json:"limitCount"`
	LimitUnit       string `json:"limitUnit"`
	UsePoint        int    `json:"usePoint"`
}

// FreeSeat is an unreserved seat.
type FreeSeat struct {
	SeatNum string `json:"seatNum"`
}

// SectionSeats lists the free seats of a section.
type SectionSeats struct {
	SeatSection  string     `json:"seatSection"`
	ListFreeSeat []FreeSeat `json:"listFreeSeat"`
}

// StateReserveSeatResult is the free-seat map of a screening.
type StateReserveSeatResult struct {
	CntReserveFree int            `json:"cntReserveFree"`
	ListSeat       []SectionSeats `json:"listSeat"`
}

// SeatRef addresses one seat.
type SeatRef struct {
	SeatSection string `json:"seatSection"`
	SeatNum     string `json:"seatNum"`
}

// UpdTmpReserveSeatArgs tentatively reserves seats.
type UpdTmpReserveSeatArgs struct {
	TheaterCode    string    `json:"theaterCode"`
	DateJouei      string    `json:"dateJouei"`
	TitleCode      string    `json:"titleCode"`
	TitleBranchNum string    `json:"titleBranchNum"`
	TimeBegin      string    `json:"timeBegin"`
	ScreenCode     string    `json:"screenCode"`
	ListSeat       []SeatRef `json:"listSeat"`
}

// UpdTmpReserveSeatResult identifies the tentative reservation.
type UpdTmpReserveSeatResult struct {
	TmpReserveNum  int                    `json:"tmpReserveNum"`
	ListTmpReserve []model.TmpReserveSeat `json:"listTmpReserve"`
}

// DelTmpReserveArgs releases a tentative reservation.
type DelTmpReserveArgs struct {
	TheaterCode    string `json:"theaterCode"`
	DateJouei      string `json:"dateJouei"`
	TitleCode      string `json:"titleCode"`
	TitleBranchNum string `json:"titleBranchNum"`
	TimeBegin      string `json:"timeBegin"`
	TmpReserveNum  int    `json:"tmpReserveNum"`
}

// ReserveTicket is one ticket line of a definite reservation.
type ReserveTicket struct {
	TicketCode       string `json:"ticketCode"`
	StdPrice         int    `json:"stdPrice"`
	AddPrice         int    `json:"addPrice"`
	DisPrice         int    `json:"disPrice"`
	SalePrice        int    `json:"salePrice"`
	MvtkAppPrice     int    `json:"mvtkAppPrice"`
	TicketCount      int    `json:"ticketCount"`
	SeatNum          string `json:"seatNum"`
	AddGlasses       int    `json:"addGlasses"`
	KbnEisyahousiki  string `json:"kbnEisyahousiki"`
	MvtkNum          string `json:"mvtkNum"`
	MvtkKbnDenshiken string `json:"mvtkKbnDenshiken"`
	MvtkKbnMaeuriken string `json:"mvtkKbnMaeuriken"`
	MvtkKbnKensyu    string `json:"mvtkKbnKensyu"`
	MvtkSalesPrice   int    `json:"mvtkSalesPrice"`
}

// UpdReserveArgs turns a tentative reservation into a definite one.
type UpdReserveArgs struct {
	TheaterCode      string          `json:"theaterCode"`
	DateJouei        string          `json:"dateJouei"`
	TitleCode        string          `json:"titleCode"`
	TitleBranchNum   string          `json:"titleBranchNum"`
	TimeBegin        string          `json:"timeBegin"`
	TmpReserveNum    int             `json:"tmpReserveNum"`
	ReserveName      string          `json:"reserveName"`
	ReserveNameJkana string          `json:"reserveNameJkana"`
	TelNum           string          `json:"telNum"`
	MailAddr         string          `json:"mailAddr"`
	ReserveAmount    int             `json:"reserveAmount"`
	ListTicket       []ReserveTicket `json:"listTicket"`
}

// UpdReserveResult carries the definite reservation number.
type UpdReserveResult struct {
	ReserveNum int `json:"reserveNum"`
}

// MvtkTicketcodeArgs asks which ticket code a voucher maps to.
type MvtkTicketcodeArgs struct {
	TheaterCode     string `json:"theaterCode"`
	KbnDenshiken    string `json:"kbnDenshiken"`
	KbnMaeuriken    string `json:"kbnMaeuriken"`
	KbnKensyu       string `json:"kbnKensyu"`
	SalesPrice      int    `json:"salesPrice"`
	AppPrice        int    `json:"appPrice"`
	KbnEisyahousiki string `json:"kbnEisyahousiki"`
	TitleCode       string `json:"titleCode"`
	TitleBranchNum  string `json:"titleBranchNum"`
	DateJouei       string `json:"dateJouei"`
}

// MvtkTicketcodeResult is the ticket type behind a voucher.
type MvtkTicketcodeResult struct {
	TicketCode      string `json:"ticketCode"`
	TicketName      string `json:"ticketName"`
	TicketNameKana  string `json:"ticketNameKana"`
	TicketNameEng   string `json:"ticketNameEng"`
	AddPrice        int    `json:"addPrice"`
	AddPriceGlasses int    `json:"addPriceGlasses"`
}

// SeatReservationClient talks to the theater seat reservation system.
type SeatReservationClient struct{ c client }

func NewSeatReservationClient(baseURL string, logger *logrus.Logger, hc *http.Client) *SeatReservationClient {
	return &SeatReservationClient{c: newClient("seat-reservation", baseURL, "", logger, hc)}
}

func (s *SeatReservationClient) SalesTicket(ctx context.Context, args SalesTicketArgs) ([]SalesTicket, error) {
	var out struct {
		ListTicket []SalesTicket `json:"listTicket"`
	}
	if err := s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(args.TheaterCode)+"/sales_ticket", args, &out); err != nil {
		return nil, err
	}
	return out.ListTicket, nil
}

func (s *SeatReservationClient) StateReserveSeat(ctx context.Context, ev model.EventRef) (StateReserveSeatResult, error) {
	var out StateReserveSeatResult
	err := s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(ev.TheaterCode)+"/state_reserve_seat", ev, &out)
	return out, err
}

func (s *SeatReservationClient) UpdTmpReserveSeat(ctx context.Context, args UpdTmpReserveSeatArgs) (UpdTmpReserveSeatResult, error) {
	var out UpdTmpReserveSeatResult
	err := s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(args.TheaterCode)+"/upd_tmp_reserve_seat", args, &out)
	return out, err
}

func (s *SeatReservationClient) DelTmpReserve(ctx context.Context, args DelTmpReserveArgs) error {
	return s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(args.TheaterCode)+"/del_tmp_reserve", args, nil)
}

func (s *SeatReservationClient) UpdReserve(ctx context.Context, args UpdReserveArgs) (UpdReserveResult, error) {
	var out UpdReserveResult
	err := s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(args.TheaterCode)+"/upd_reserve", args, &out)
	return out, err
}

func (s *SeatReservationClient) MvtkTicketcode(ctx context.Context, args MvtkTicketcodeArgs) (MvtkTicketcodeResult, error) {
	var out MvtkTicketcodeResult
	err := s.c.do(ctx, http.MethodPost, "/theater/"+url.PathEscape(args.TheaterCode)+"/mvtk_ticketcode", args, &out)
	return out, err
}
