// Package service implements the place-order transaction lifecycle: the
// transaction state machine, the authorize action services that accumulate
// reservations and payments on a transaction, and the task dispatcher that
// settles or cancels them once the transaction ends.
//
// Services coordinate only through conditional updates in the stores behind
// the interfaces below; there is no in-process locking.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
)

type TransactionRepository interface {
	Start(ctx context.Context, t *model.Transaction) error
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	FindInProgressByID(ctx context.Context, id string) (*model.Transaction, error)
	SetCustomerContact(ctx context.Context, id string, contact model.CustomerContact, now time.Time) error
	Confirm(ctx context.Context, id string, endDate time.Time, result model.TransactionResult, actions model.PotentialActions) error
	MakeExpired(ctx context.Context, now time.Time) (int64, error)
	StartExportTasks(ctx context.Context, status model.TransactionStatus, now time.Time) (*model.Transaction, error)
	SetTasksExported(ctx context.Context, id, claim string, tasks []model.Task, at time.Time) error
	ReexportTasks(ctx context.Context, olderThan time.Time) (int64, error)
}

type ActionRepository interface {
	Start(ctx context.Context, a *model.AuthorizeAction) error
	Complete(ctx context.Context, id string, result model.AuthorizeResult, endDate time.Time) error
	GiveUp(ctx context.Context, id string, actionErr model.ActionError, endDate time.Time) error
	Cancel(ctx context.Context, transactionID, id string) (*model.AuthorizeAction, error)
	UpdateCompleted(ctx context.Context, id string, object model.AuthorizeObject, result model.AuthorizeResult) error
	FindByID(ctx context.Context, id string) (*model.AuthorizeAction, error)
	FindAuthorizeByTransactionID(ctx context.Context, transactionID string) ([]model.AuthorizeAction, error)
}

type TaskRepository interface {
	Save(ctx context.Context, tasks []model.Task) error
	Claim(ctx context.Context, name model.TaskName, now time.Time) (*model.Task, error)
	PushExecutionResult(ctx context.Context, id string, status model.TaskStatus, result model.TaskExecutionResult) error
	Retry(ctx context.Context, lastTriedBefore time.Time) (int64, error)
	Abort(ctx context.Context, lastTriedBefore time.Time) ([]model.Task, error)
	AbortReadyRegistrations(ctx context.Context, membershipNumber, programMembershipID string) (int64, error)
}

type SellerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Seller, error)
}

type EventRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.ScreeningEvent, error)
}

type ProgramMembershipRepository interface {
	FindByID(ctx context.Context, id string) (*model.ProgramMembership, error)
}

type OwnershipInfoRepository interface {
	Save(ctx context.Context, infos []model.OwnershipInfo) error
	SearchActiveMembership(ctx context.Context, ownedByID string, at time.Time) ([]model.OwnershipInfo, error)
	EndMembership(ctx context.Context, ownedByID, programMembershipID string, at time.Time) (int64, error)
}

type OrderRepository interface {
	Save(ctx context.Context, o model.Order) error
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindByInquiryKey(ctx context.Context, key model.OrderInquiryKey) (*model.Order, error)
}

// OrderNumberRepository hands out order numbers that are never reused.
type OrderNumberRepository interface {
	Publish(ctx context.Context, branchCode string, orderDate time.Time) (string, error)
}

// LockRepository is an advisory lock. Lock fails with AlreadyInUse when the
// key is held.
type LockRepository interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// PassportVerifier validates a passport token and returns its content.
type PassportVerifier interface {
	Verify(token string) (*model.Passport, error)
}

type SeatReservationGateway interface {
	SalesTicket(ctx context.Context, args gateway.SalesTicketArgs) ([]gateway.SalesTicket, error)
	StateReserveSeat(ctx context.Context, ev model.EventRef) (gateway.StateReserveSeatResult, error)
	UpdTmpReserveSeat(ctx context.Context, args gateway.UpdTmpReserveSeatArgs) (gateway.UpdTmpReserveSeatResult, error)
	DelTmpReserve(ctx context.Context, args gateway.DelTmpReserveArgs) error
	UpdReserve(ctx context.Context, args gateway.UpdReserveArgs) (gateway.UpdReserveResult, error)
	MvtkTicketcode(ctx context.Context, args gateway.MvtkTicketcodeArgs) (gateway.MvtkTicketcodeResult, error)
}

type PaymentGateway interface {
	EntryTran(ctx context.Context, args gateway.EntryTranArgs) (gateway.EntryTranResult, error)
	ExecTran(ctx context.Context, args gateway.ExecTranArgs) (gateway.ExecTranResult, error)
	AlterTran(ctx context.Context, args gateway.AlterTranArgs) (gateway.AlterTranResult, error)
	SearchTrade(ctx context.Context, args gateway.SearchTradeArgs) (gateway.SearchTradeResult, error)
}

type PointLedgerGateway interface {
	Start(ctx context.Context, args gateway.PointTransactionArgs) (model.PendingTransactionRef, error)
	Confirm(ctx context.Context, ref model.PendingTransactionRef) error
	Cancel(ctx context.Context, ref model.PendingTransactionRef) error
}

type VoucherGateway interface {
	SeatInfoSync(ctx context.Context, in model.MvtkSeatInfoSync) (gateway.SeatInfoSyncResult, error)
}

// Publisher sends messages to the broker.
type Publisher interface {
	PublishEmailMessage(ctx context.Context, msg queue.EmailMessage) error
	PublishTaskAborted(ctx context.Context, ev queue.TaskAbortedEvent) error
}
