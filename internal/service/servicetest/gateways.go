package servicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
)

// SeatGateway is a scripted seat reservation gateway. Tickets is the catalog
// returned for every screening; Vouchers maps a voucher ticket kind to the
// ticket code it translates to, keyed by KbnKensyu.
type SeatGateway struct {
	mu sync.Mutex

	Tickets     []gateway.SalesTicket
	Vouchers    map[string]gateway.MvtkTicketcodeResult
	FreeSeats   gateway.StateReserveSeatResult
	ReserveErr  error
	SettleErr   error
	nextReserve int

	Catalogs  []gateway.SalesTicketArgs
	Reserved  []gateway.UpdTmpReserveSeatArgs
	Released  []gateway.DelTmpReserveArgs
	Confirmed []gateway.UpdReserveArgs
}

func (g *SeatGateway) SalesTicket(_ context.Context, args gateway.SalesTicketArgs) ([]gateway.SalesTicket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Catalogs = append(g.Catalogs, args)
	return append([]gateway.SalesTicket(nil), g.Tickets...), nil
}

func (g *SeatGateway) StateReserveSeat(context.Context, model.EventRef) (gateway.StateReserveSeatResult, error) {
	return g.FreeSeats, nil
}

func (g *SeatGateway) UpdTmpReserveSeat(_ context.Context, args gateway.UpdTmpReserveSeatArgs) (gateway.UpdTmpReserveSeatResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReserveErr != nil {
		return gateway.UpdTmpReserveSeatResult{}, g.ReserveErr
	}
	g.Reserved = append(g.Reserved, args)
	g.nextReserve++
	res := gateway.UpdTmpReserveSeatResult{TmpReserveNum: 1000 + g.nextReserve}
	for _, s := range args.ListSeat {
		res.ListTmpReserve = append(res.ListTmpReserve, model.TmpReserveSeat{
			SeatSection:      s.SeatSection,
			SeatNum:          s.SeatNum,
			StatusTmpReserve: "0",
		})
	}
	return res, nil
}

func (g *SeatGateway) DelTmpReserve(_ context.Context, args gateway.DelTmpReserveArgs) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Released = append(g.Released, args)
	return nil
}

func (g *SeatGateway) UpdReserve(_ context.Context, args gateway.UpdReserveArgs) (gateway.UpdReserveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SettleErr != nil {
		return gateway.UpdReserveResult{}, g.SettleErr
	}
	g.Confirmed = append(g.Confirmed, args)
	return gateway.UpdReserveResult{ReserveNum: args.TmpReserveNum}, nil
}

func (g *SeatGateway) MvtkTicketcode(_ context.Context, args gateway.MvtkTicketcodeArgs) (gateway.MvtkTicketcodeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.Vouchers[args.KbnKensyu]
	if !ok {
		return gateway.MvtkTicketcodeResult{}, apperr.Argument("seat-reservation", "no ticket for voucher kind %s", args.KbnKensyu)
	}
	return res, nil
}

// PaymentGateway records card operations and keeps trade state per order id.
type PaymentGateway struct {
	mu sync.Mutex

	EntryErr error
	ExecErr  error
	AlterErr error

	Entries []gateway.EntryTranArgs
	Execs   []gateway.ExecTranArgs
	Alters  []gateway.AlterTranArgs
	trades  map[string]*gateway.SearchTradeResult
	access  map[string]string
}

func (g *PaymentGateway) EntryTran(_ context.Context, args gateway.EntryTranArgs) (gateway.EntryTranResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.EntryErr != nil {
		return gateway.EntryTranResult{}, g.EntryErr
	}
	if g.trades == nil {
		g.trades = map[string]*gateway.SearchTradeResult{}
		g.access = map[string]string{}
	}
	g.Entries = append(g.Entries, args)
	accessID := "access-" + args.OrderID
	g.trades[args.OrderID] = &gateway.SearchTradeResult{
		OrderID:    args.OrderID,
		Status:     "UNPROCESSED",
		JobCode:    args.JobCode,
		Amount:     args.Amount,
		AccessID:   accessID,
		AccessPass: "pass-" + args.OrderID,
	}
	g.access[accessID] = args.OrderID
	return gateway.EntryTranResult{AccessID: accessID, AccessPass: "pass-" + args.OrderID}, nil
}

func (g *PaymentGateway) ExecTran(_ context.Context, args gateway.ExecTranArgs) (gateway.ExecTranResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ExecErr != nil {
		return gateway.ExecTranResult{}, g.ExecErr
	}
	g.Execs = append(g.Execs, args)
	if t, ok := g.trades[args.OrderID]; ok {
		t.Status = gateway.JobCodeAuth
	}
	return gateway.ExecTranResult{OrderID: args.OrderID, Approve: "0000001", TranID: "tran-" + args.OrderID, TranDate: "20261018120000"}, nil
}

func (g *PaymentGateway) AlterTran(_ context.Context, args gateway.AlterTranArgs) (gateway.AlterTranResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AlterErr != nil {
		return gateway.AlterTranResult{}, g.AlterErr
	}
	g.Alters = append(g.Alters, args)
	if t, ok := g.trades[g.access[args.AccessID]]; ok {
		t.Status = args.JobCode
		t.JobCode = args.JobCode
	}
	return gateway.AlterTranResult{AccessID: args.AccessID, AccessPass: args.AccessPass}, nil
}

func (g *PaymentGateway) SearchTrade(_ context.Context, args gateway.SearchTradeArgs) (gateway.SearchTradeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.trades[args.OrderID]
	if !ok {
		return gateway.SearchTradeResult{}, fmt.Errorf("trade %s not found", args.OrderID)
	}
	return *t, nil
}

// PointLedger keeps pending transactions in memory.
type PointLedger struct {
	mu sync.Mutex

	StartErr error
	Started  []gateway.PointTransactionArgs
	Status   map[string]string
}

func (g *PointLedger) Start(_ context.Context, args gateway.PointTransactionArgs) (model.PendingTransactionRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.StartErr != nil {
		return model.PendingTransactionRef{}, g.StartErr
	}
	if g.Status == nil {
		g.Status = map[string]string{}
	}
	g.Started = append(g.Started, args)
	id := fmt.Sprintf("pt-%d", len(g.Started))
	g.Status[id] = "Pending"
	return model.PendingTransactionRef{ID: id, TypeOf: args.Type}, nil
}

func (g *PointLedger) Confirm(_ context.Context, ref model.PendingTransactionRef) error {
	return g.finish(ref, "Confirmed")
}

func (g *PointLedger) Cancel(_ context.Context, ref model.PendingTransactionRef) error {
	return g.finish(ref, "Canceled")
}

func (g *PointLedger) finish(ref model.PendingTransactionRef, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.Status[ref.ID]; !ok {
		return fmt.Errorf("pending transaction %s not found", ref.ID)
	}
	g.Status[ref.ID] = status
	return nil
}

// VoucherGateway answers seat info syncs with Result.
type VoucherGateway struct {
	mu     sync.Mutex
	Result string
	Synced []model.MvtkSeatInfoSync
}

func (g *VoucherGateway) SeatInfoSync(_ context.Context, in model.MvtkSeatInfoSync) (gateway.SeatInfoSyncResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Synced = append(g.Synced, in)
	res := g.Result
	if res == "" {
		res = gateway.SeatInfoSyncSucceeded
	}
	return gateway.SeatInfoSyncResult{ZskyykResult: res}, nil
}

// Publisher collects published messages.
type Publisher struct {
	mu      sync.Mutex
	Emails  []queue.EmailMessage
	Aborted []queue.TaskAbortedEvent
}

func (p *Publisher) PublishEmailMessage(_ context.Context, msg queue.EmailMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Emails = append(p.Emails, msg)
	return nil
}

func (p *Publisher) PublishTaskAborted(_ context.Context, ev queue.TaskAbortedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Aborted = append(p.Aborted, ev)
	return nil
}

// Verifier accepts the tokens in Passports and rejects the rest.
type Verifier struct {
	Passports map[string]model.Passport
	Err       error
}

func (v Verifier) Verify(token string) (*model.Passport, error) {
	p, ok := v.Passports[token]
	if !ok {
		return nil, v.Err
	}
	return &p, nil
}
