package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
)

// followUpNamespace seeds the ids of tasks derived from a transaction so that
// a repeated export or create-order does not duplicate them.
var followUpNamespace = uuid.MustParse("6f1d7c1e-2f3b-4c55-9a0e-8e51f0c6b1a4")

// TaskHandlers settles and cancels ended transactions. Every handler is safe
// to run again after a partial failure.
type TaskHandlers struct {
	logger       *logrus.Logger
	transactions TransactionRepository
	actions      ActionRepository
	tasks        TaskRepository
	sellers      SellerRepository
	orders       OrderRepository
	ownerships   OwnershipInfoRepository
	seats        SeatReservationGateway
	payments     PaymentGateway
	ledger       PointLedgerGateway
	vouchers     VoucherGateway
	publisher    Publisher
	memberships  *MembershipService
	maxTries     int
	now          func() time.Time
}

type TaskHandlersProperty struct {
	Logger                  *logrus.Logger
	TransactionRepository   TransactionRepository
	ActionRepository        ActionRepository
	TaskRepository          TaskRepository
	SellerRepository        SellerRepository
	OrderRepository         OrderRepository
	OwnershipInfoRepository OwnershipInfoRepository
	SeatReservationGateway  SeatReservationGateway
	PaymentGateway          PaymentGateway
	PointLedgerGateway      PointLedgerGateway
	VoucherGateway          VoucherGateway
	Publisher               Publisher
	MembershipService       *MembershipService
	MaxTries                int
	Now                     func() time.Time
}

func NewTaskHandlers(props TaskHandlersProperty) *TaskHandlers {
	now := props.Now
	if now == nil {
		now = time.Now
	}
	maxTries := props.MaxTries
	if maxTries <= 0 {
		maxTries = 10
	}
	return &TaskHandlers{
		logger:       props.Logger,
		transactions: props.TransactionRepository,
		actions:      props.ActionRepository,
		tasks:        props.TaskRepository,
		sellers:      props.SellerRepository,
		orders:       props.OrderRepository,
		ownerships:   props.OwnershipInfoRepository,
		seats:        props.SeatReservationGateway,
		payments:     props.PaymentGateway,
		ledger:       props.PointLedgerGateway,
		vouchers:     props.VoucherGateway,
		publisher:    props.Publisher,
		memberships:  props.MembershipService,
		maxTries:     maxTries,
		now:          now,
	}
}

// Register installs a handler for every task name.
func (h *TaskHandlers) Register(s *TaskService) {
	s.Handle(model.TaskSettleSeatReservation, h.settleSeatReservation)
	s.Handle(model.TaskSettlePayment, h.settlePayment)
	s.Handle(model.TaskSettleAccount, h.settleAccount)
	s.Handle(model.TaskSettleVoucher, h.settleVoucher)
	s.Handle(model.TaskGivePointAward, h.givePointAward)
	s.Handle(model.TaskCreateOrder, h.createOrder)
	s.Handle(model.TaskSendEmailMessage, h.sendEmailMessage)
	s.Handle(model.TaskCancelSeatReservation, h.cancelSeatReservation)
	s.Handle(model.TaskCancelPayment, h.cancelPayment)
	s.Handle(model.TaskCancelAccount, h.cancelAccount)
	s.Handle(model.TaskCancelVoucher, h.cancelVoucher)
	s.Handle(model.TaskCancelPointAward, h.cancelPointAward)
	s.Handle(model.TaskRegisterProgramMembership, h.registerProgramMembership)
	s.Handle(model.TaskUnregisterProgramMembership, h.unregisterProgramMembership)
}

func (h *TaskHandlers) transactionOf(ctx context.Context, t model.Task, want model.TransactionStatus) (*model.Transaction, error) {
	var data model.TransactionTaskData
	if err := t.DecodeData(&data); err != nil {
		return nil, apperr.Argument("data", "task %s: %v", t.ID, err)
	}
	tx, err := h.transactions.FindByID(ctx, data.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != want {
		return nil, apperr.Argument("transaction", "transaction %s is %s, want %s", tx.ID, tx.Status, want)
	}
	return tx, nil
}

func (h *TaskHandlers) completedOf(ctx context.Context, transactionID string, want model.AuthorizeObjectType) ([]model.AuthorizeAction, error) {
	all, err := h.actions.FindAuthorizeByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return filterCompleted(all, want), nil
}

func (h *TaskHandlers) settleSeatReservation(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	seats, err := h.completedOf(ctx, tx.ID, model.AuthorizeObjectSeatReservation)
	if err != nil {
		return err
	}
	var contact model.CustomerContact
	if tx.Object.CustomerContact != nil {
		contact = *tx.Object.CustomerContact
	}
	for _, a := range seats {
		r := a.Result.(*model.SeatReservationResult)
		args := gateway.UpdReserveArgs{
			TheaterCode:      r.Event.TheaterCode,
			DateJouei:        r.Event.DateJouei,
			TitleCode:        r.Event.TitleCode,
			TitleBranchNum:   r.Event.TitleBranchNum,
			TimeBegin:        r.Event.TimeBegin,
			TmpReserveNum:    r.TmpReserveNum,
			ReserveName:      strings.TrimSpace(contact.FamilyName + " " + contact.GivenName),
			ReserveNameJkana: strings.TrimSpace(contact.FamilyName + " " + contact.GivenName),
			TelNum:           strings.TrimPrefix(contact.Telephone, "+"),
			MailAddr:         contact.Email,
		}
		for _, o := range r.Offers {
			ti := o.TicketInfo
			args.ReserveAmount += ti.SalePrice + ti.MvtkSalesPrice
			args.ListTicket = append(args.ListTicket, gateway.ReserveTicket{
				TicketCode:       ti.TicketCode,
				StdPrice:         ti.StdPrice,
				AddPrice:         ti.AddPrice,
				DisPrice:         ti.DisPrice,
				SalePrice:        ti.SalePrice,
				MvtkAppPrice:     ti.MvtkAppPrice,
				TicketCount:      1,
				SeatNum:          o.SeatNumber,
				AddGlasses:       ti.AddGlasses,
				KbnEisyahousiki:  ti.KbnEisyahousiki,
				MvtkNum:          ti.MvtkNum,
				MvtkKbnDenshiken: ti.MvtkKbnDenshiken,
				MvtkKbnMaeuriken: ti.MvtkKbnMaeuriken,
				MvtkKbnKensyu:    ti.MvtkKbnKensyu,
				MvtkSalesPrice:   ti.MvtkSalesPrice,
			})
		}
		res, err := h.seats.UpdReserve(ctx, args)
		if err != nil {
			return err
		}
		h.logger.WithContext(ctx).WithFields(logrus.Fields{"transactionId": tx.ID, "reserveNum": res.ReserveNum}).Info("seat reservation settled")
	}
	return nil
}

func (h *TaskHandlers) settlePayment(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	if tx.PotentialActions == nil || tx.PotentialActions.PayCreditCard == nil {
		return nil
	}
	pay := tx.PotentialActions.PayCreditCard
	action, err := h.actions.FindByID(ctx, pay.AuthorizeActionID)
	if err != nil {
		return err
	}
	r, ok := action.Result.(*model.CreditCardResult)
	if !ok {
		return apperr.Argument("authorizeAction", "action %s is not a credit card authorization", action.ID)
	}
	seller, err := h.sellers.FindByID(ctx, tx.Seller.ID)
	if err != nil {
		return err
	}
	trade, err := h.payments.SearchTrade(ctx, gateway.SearchTradeArgs{ShopID: seller.GMO.ShopID, ShopPass: seller.GMO.ShopPass, OrderID: r.OrderID})
	if err != nil {
		return err
	}
	if trade.Status == gateway.TradeStatusSales {
		return nil
	}
	_, err = h.payments.AlterTran(ctx, gateway.AlterTranArgs{
		ShopID:     seller.GMO.ShopID,
		ShopPass:   seller.GMO.ShopPass,
		AccessID:   r.AccessID,
		AccessPass: r.AccessPass,
		JobCode:    gateway.JobCodeSales,
		Amount:     pay.Amount,
	})
	return err
}

func (h *TaskHandlers) settleAccount(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	if tx.PotentialActions == nil {
		return nil
	}
	for _, pay := range tx.PotentialActions.PayAccount {
		if err := h.ledger.Confirm(ctx, pay.PendingTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (h *TaskHandlers) settleVoucher(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	if tx.PotentialActions == nil || tx.PotentialActions.UseMvtk == nil {
		return nil
	}
	res, err := h.vouchers.SeatInfoSync(ctx, tx.PotentialActions.UseMvtk.SeatInfoSyncIn)
	if err != nil {
		return err
	}
	if res.ZskyykResult != gateway.SeatInfoSyncSucceeded {
		return fmt.Errorf("voucher seat sync for transaction %s returned %q", tx.ID, res.ZskyykResult)
	}
	return nil
}

func (h *TaskHandlers) givePointAward(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	if tx.PotentialActions == nil {
		return nil
	}
	for _, award := range tx.PotentialActions.GivePointAward {
		if err := h.ledger.Confirm(ctx, award.PendingTransaction); err != nil {
			return err
		}
	}
	return nil
}

// createOrder stores the order and its ownership infos, then schedules the
// email and membership renewal tasks.
func (h *TaskHandlers) createOrder(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusConfirmed)
	if err != nil {
		return err
	}
	if tx.Result == nil {
		return apperr.Argument("transaction", "confirmed transaction %s has no result", tx.ID)
	}
	order := tx.Result.Order
	order.OrderStatus = model.OrderStatusDelivered
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}
	if err := h.ownerships.Save(ctx, tx.Result.OwnershipInfos); err != nil {
		return err
	}
	if tx.PotentialActions == nil {
		return nil
	}
	tasks := h.followUpTasks(tx.ID, order, *tx.PotentialActions)
	if len(tasks) == 0 {
		return nil
	}
	return h.tasks.Save(ctx, tasks)
}

func (h *TaskHandlers) followUpTasks(transactionID string, order model.Order, pa model.PotentialActions) []model.Task {
	var tasks []model.Task
	newTask := func(name model.TaskName, i int, runsAt time.Time, data any) model.Task {
		id := uuid.NewSHA1(followUpNamespace, []byte(transactionID+"/"+string(name)+"/"+strconv.Itoa(i)))
		return model.Task{
			ID:                     id.String(),
			Name:                   name,
			Status:                 model.TaskStatusReady,
			RunsAt:                 runsAt,
			RemainingNumberOfTries: h.maxTries,
			ExecutionResults:       []model.TaskExecutionResult{},
			Data:                   mustMarshal(data),
		}
	}
	if email := pa.SendOrder.SendEmailMessage; email != nil {
		tasks = append(tasks, newTask(model.TaskSendEmailMessage, 0, h.now(), model.SendEmailMessageTaskData{
			OrderNumber:      order.OrderNumber,
			ActionAttributes: *email,
		}))
	}
	for i, reg := range pa.RegisterProgramMembership {
		tasks = append(tasks, newTask(model.TaskRegisterProgramMembership, i, reg.RunsAt, reg.Data))
	}
	return tasks
}

func (h *TaskHandlers) sendEmailMessage(ctx context.Context, t model.Task) error {
	var data model.SendEmailMessageTaskData
	if err := t.DecodeData(&data); err != nil {
		return apperr.Argument("data", "task %s: %v", t.ID, err)
	}
	a := data.ActionAttributes
	return h.publisher.PublishEmailMessage(ctx, queue.EmailMessage{
		ID:             a.ID,
		OrderNumber:    data.OrderNumber,
		SenderName:     a.Sender.Name,
		SenderEmail:    a.Sender.Email,
		RecipientName:  a.ToRecipient.Name,
		RecipientEmail: a.ToRecipient.Email,
		Subject:        a.About,
		Text:           a.Text,
		RequestedAt:    h.now().UTC().Format(time.RFC3339),
	})
}

func (h *TaskHandlers) cancelSeatReservation(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusExpired)
	if err != nil {
		return err
	}
	seats, err := h.completedOf(ctx, tx.ID, model.AuthorizeObjectSeatReservation)
	if err != nil {
		return err
	}
	for _, a := range seats {
		if err := h.seats.DelTmpReserve(ctx, delTmpReserveArgs(a.Result.(*model.SeatReservationResult))); err != nil {
			return err
		}
	}
	return nil
}

func (h *TaskHandlers) cancelPayment(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusExpired)
	if err != nil {
		return err
	}
	cards, err := h.completedOf(ctx, tx.ID, model.AuthorizeObjectCreditCard)
	if err != nil || len(cards) == 0 {
		return err
	}
	seller, err := h.sellers.FindByID(ctx, tx.Seller.ID)
	if err != nil {
		return err
	}
	for _, a := range cards {
		r := a.Result.(*model.CreditCardResult)
		trade, err := h.payments.SearchTrade(ctx, gateway.SearchTradeArgs{ShopID: seller.GMO.ShopID, ShopPass: seller.GMO.ShopPass, OrderID: r.OrderID})
		if err != nil {
			return err
		}
		if trade.JobCode == gateway.JobCodeVoid {
			continue
		}
		if _, err := h.payments.AlterTran(ctx, gateway.AlterTranArgs{
			ShopID:     seller.GMO.ShopID,
			ShopPass:   seller.GMO.ShopPass,
			AccessID:   r.AccessID,
			AccessPass: r.AccessPass,
			JobCode:    gateway.JobCodeVoid,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *TaskHandlers) cancelAccount(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusExpired)
	if err != nil {
		return err
	}
	accounts, err := h.completedOf(ctx, tx.ID, model.AuthorizeObjectAccount)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if err := h.ledger.Cancel(ctx, a.Result.(*model.AccountResult).PendingTransaction); err != nil {
			return err
		}
	}
	return nil
}

// cancelVoucher has nothing to release: vouchers are consumed only by
// settlement.
func (h *TaskHandlers) cancelVoucher(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusExpired)
	if err != nil {
		return err
	}
	h.logger.WithContext(ctx).WithField("transactionId", tx.ID).Debug("no voucher to release")
	return nil
}

func (h *TaskHandlers) cancelPointAward(ctx context.Context, t model.Task) error {
	tx, err := h.transactionOf(ctx, t, model.TransactionStatusExpired)
	if err != nil {
		return err
	}
	awards, err := h.completedOf(ctx, tx.ID, model.AuthorizeObjectPointAward)
	if err != nil {
		return err
	}
	for _, a := range awards {
		if err := h.ledger.Cancel(ctx, a.Result.(*model.PointAwardResult).PendingTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (h *TaskHandlers) registerProgramMembership(ctx context.Context, t model.Task) error {
	var data model.RegisterProgramMembershipData
	if err := t.DecodeData(&data); err != nil {
		return apperr.Argument("data", "task %s: %v", t.ID, err)
	}
	return h.memberships.Register(ctx, data)
}

func (h *TaskHandlers) unregisterProgramMembership(ctx context.Context, t model.Task) error {
	var data model.UnregisterProgramMembershipData
	if err := t.DecodeData(&data); err != nil {
		return apperr.Argument("data", "task %s: %v", t.ID, err)
	}
	return h.memberships.Unregister(ctx, data)
}
