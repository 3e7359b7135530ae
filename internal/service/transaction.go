package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/passport"
)

// defaultRegion is used to parse telephone numbers given without a country
// code.
const defaultRegion = "JP"

type TransactionService struct {
	logger       *logrus.Logger
	transactions TransactionRepository
	actions      ActionRepository
	tasks        TaskRepository
	sellers      SellerRepository
	events       EventRepository
	orderNumbers OrderNumberRepository
	passports    PassportVerifier
	metrics      *metrics.Metrics
	cfg          config.TransactionConfig
	maxTries     int
	now          func() time.Time
}

type TransactionServiceProperty struct {
	Logger                *logrus.Logger
	TransactionRepository TransactionRepository
	ActionRepository      ActionRepository
	TaskRepository        TaskRepository
	SellerRepository      SellerRepository
	EventRepository       EventRepository
	OrderNumberRepository OrderNumberRepository
	PassportVerifier      PassportVerifier
	Metrics               *metrics.Metrics
	Config                config.TransactionConfig
	MaxTries              int
	Now                   func() time.Time
}

func NewTransactionService(props TransactionServiceProperty) *TransactionService {
	now := props.Now
	if now == nil {
		now = time.Now
	}
	maxTries := props.MaxTries
	if maxTries <= 0 {
		maxTries = 10
	}
	return &TransactionService{
		logger:       props.Logger,
		transactions: props.TransactionRepository,
		actions:      props.ActionRepository,
		tasks:        props.TaskRepository,
		sellers:      props.SellerRepository,
		events:       props.EventRepository,
		orderNumbers: props.OrderNumberRepository,
		passports:    props.PassportVerifier,
		metrics:      props.Metrics,
		cfg:          props.Config,
		maxTries:     maxTries,
		now:          now,
	}
}

// StartParams starts a place-order transaction. Expires defaults to the
// configured transaction lifetime.
type StartParams struct {
	Agent         model.Party
	SellerID      string
	Expires       time.Time
	ClientUser    *model.ClientUser
	PassportToken string
}

// Start opens an InProgress transaction for the agent. A passport, when
// given, must be valid and scoped to the seller; each passport starts at
// most one transaction.
func (s *TransactionService) Start(ctx context.Context, p StartParams) (*model.Transaction, error) {
	now := s.now()
	seller, err := s.sellers.FindByID(ctx, p.SellerID)
	if err != nil {
		return nil, err
	}

	expires := p.Expires
	if expires.IsZero() {
		expires = now.Add(s.cfg.Expires)
	}
	if !expires.After(now) {
		return nil, apperr.Argument("expires", "expires must be in the future")
	}

	object := model.TransactionObject{ClientUser: p.ClientUser}
	if p.PassportToken != "" {
		pp, err := s.passports.Verify(p.PassportToken)
		if err != nil {
			return nil, err
		}
		if want := passport.Scope(seller.Identifier); pp.Scope != want {
			return nil, apperr.Argument("passport", "passport scope %q does not match %q", pp.Scope, want)
		}
		object.PassportToken = p.PassportToken
		object.Passport = pp
	} else {
		// Without a passport every start still needs a unique token.
		object.PassportToken = fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	}

	tx := &model.Transaction{
		ID:                     uuid.NewString(),
		TypeOf:                 model.TransactionTypePlaceOrder,
		Status:                 model.TransactionStatusInProgress,
		Agent:                  p.Agent,
		Seller:                 seller.AsParty(),
		Object:                 object,
		Expires:                expires,
		StartDate:              now,
		TasksExportationStatus: model.TasksExportationStatusUnexported,
		UpdatedAt:              now,
	}
	if err := s.transactions.Start(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.Transaction("started", 1)
	return tx, nil
}

// FindInProgressByID returns the transaction when it is still InProgress.
func (s *TransactionService) FindInProgressByID(ctx context.Context, id string) (*model.Transaction, error) {
	return s.transactions.FindInProgressByID(ctx, id)
}

// FindByID returns the transaction in any state.
func (s *TransactionService) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	return s.transactions.FindByID(ctx, id)
}

// inProgressOwnedBy loads an InProgress transaction and checks that agentID
// started it.
func inProgressOwnedBy(ctx context.Context, repo TransactionRepository, agentID, id string) (*model.Transaction, error) {
	tx, err := repo.FindInProgressByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Agent.ID != agentID {
		return nil, apperr.Forbidden("transaction %s is not yours", id)
	}
	return tx, nil
}

// SetCustomerContact validates and stores the buyer's contact. The telephone
// number is normalized to E.164 and the stored contact is returned.
func (s *TransactionService) SetCustomerContact(ctx context.Context, agentID, id string, contact model.CustomerContact) (*model.CustomerContact, error) {
	if _, err := inProgressOwnedBy(ctx, s.transactions, agentID, id); err != nil {
		return nil, err
	}
	tel, err := normalizeTelephone(contact.Telephone)
	if err != nil {
		return nil, err
	}
	contact.Telephone = tel
	contact.Email = strings.TrimSpace(contact.Email)
	if err := s.transactions.SetCustomerContact(ctx, id, contact, s.now()); err != nil {
		return nil, err
	}
	return &contact, nil
}

func normalizeTelephone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", apperr.Argument("telephone", "invalid telephone number %q", raw)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", apperr.Argument("telephone", "invalid telephone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ConfirmParams confirms a transaction at OrderDate (now when zero).
type ConfirmParams struct {
	AgentID          string
	TransactionID    string
	OrderDate        time.Time
	SendEmailMessage bool
}

// Confirm reconciles the completed authorize actions of an InProgress
// transaction, builds the order with its ownership infos and follow-up
// actions, and moves the transaction to Confirmed. A transaction that left
// InProgress concurrently is reported as NotFound.
func (s *TransactionService) Confirm(ctx context.Context, p ConfirmParams) (*model.TransactionResult, error) {
	tx, err := inProgressOwnedBy(ctx, s.transactions, p.AgentID, p.TransactionID)
	if err != nil {
		return nil, err
	}
	orderDate := p.OrderDate
	if orderDate.IsZero() {
		orderDate = s.now()
	}
	if tx.Object.CustomerContact == nil {
		return nil, apperr.Argument("customerContact", "customer contact is not set")
	}
	seller, err := s.sellers.FindByID(ctx, tx.Seller.ID)
	if err != nil {
		return nil, err
	}

	all, err := s.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	completed := completedBefore(all, orderDate)
	tx.Object.AuthorizeActions = completed

	if err := ValidateAuthorizeActions(tx, completed); err != nil {
		return nil, err
	}

	events, err := s.loadEvents(ctx, completed)
	if err != nil {
		return nil, err
	}
	orderNumber, err := s.orderNumbers.Publish(ctx, seller.BranchCode, orderDate)
	if err != nil {
		return nil, err
	}

	order := buildOrder(orderInput{
		tx:          tx,
		seller:      seller,
		actions:     completed,
		events:      events,
		orderNumber: orderNumber,
		orderDate:   orderDate,
		urlBase:     s.cfg.OrderURLBase,
	})
	result := model.TransactionResult{
		Order:          order,
		OwnershipInfos: buildOwnershipInfos(order, orderDate),
	}
	var email *model.SendEmailMessageAction
	if p.SendEmailMessage {
		email = buildEmailMessage(order, seller, s.cfg)
	}
	potential := buildPotentialActions(tx, order, completed, email)

	if err := s.transactions.Confirm(ctx, tx.ID, s.now(), result, potential); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.logger.WithContext(ctx).WithField("transactionId", tx.ID).Warn("transaction left InProgress during confirmation")
		}
		return nil, err
	}
	s.metrics.Transaction("confirmed", 1)
	return &result, nil
}

// completedBefore keeps the Completed actions whose end date does not follow
// orderDate.
func completedBefore(actions []model.AuthorizeAction, orderDate time.Time) []model.AuthorizeAction {
	out := make([]model.AuthorizeAction, 0, len(actions))
	for _, a := range actions {
		if a.ActionStatus != model.ActionStatusCompleted || a.EndDate == nil {
			continue
		}
		if a.EndDate.After(orderDate) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *TransactionService) loadEvents(ctx context.Context, actions []model.AuthorizeAction) (map[string]*model.ScreeningEvent, error) {
	events := make(map[string]*model.ScreeningEvent)
	for _, a := range actions {
		obj, ok := a.Object.(*model.SeatReservationObject)
		if !ok {
			continue
		}
		if _, done := events[obj.Event.Identifier]; done {
			continue
		}
		ev, err := s.events.FindByIdentifier(ctx, obj.Event.Identifier)
		if err != nil {
			return nil, err
		}
		events[obj.Event.Identifier] = ev
	}
	return events, nil
}

// MakeExpired expires every InProgress transaction past its deadline. It is
// idempotent.
func (s *TransactionService) MakeExpired(ctx context.Context) (int64, error) {
	n, err := s.transactions.MakeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.Transaction("expired", int(n))
	return n, nil
}

// ExportTasks claims one terminal transaction in status whose tasks are not
// exported yet, creates its follow-up tasks and marks it Exported. It
// returns nil when there was nothing to export.
func (s *TransactionService) ExportTasks(ctx context.Context, status model.TransactionStatus) (*model.Transaction, error) {
	if !status.IsTerminal() {
		return nil, apperr.Argument("status", "tasks are exported only for Confirmed or Expired transactions, not %s", status)
	}
	now := s.now()
	tx, err := s.transactions.StartExportTasks(ctx, status, now)
	if err != nil || tx == nil {
		return nil, err
	}

	tasks, err := s.ExportTasksByID(ctx, tx.ID)
	if err != nil {
		// Left Exporting; ReexportTasks releases it later.
		return nil, err
	}
	if err := s.transactions.SetTasksExported(ctx, tx.ID, tx.ExportClaim, tasks, s.now()); err != nil {
		return nil, err
	}
	tx.TasksExportationStatus = model.TasksExportationStatusExported
	tx.Tasks = tasks
	s.metrics.Transaction("exported", 1)
	return tx, nil
}

// ExportTasksByID creates and saves the follow-up tasks of a terminal
// transaction without touching its exportation status. Task ids derive from
// the transaction and task name, so exporting twice saves each task once.
func (s *TransactionService) ExportTasksByID(ctx context.Context, id string) ([]model.Task, error) {
	tx, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var names []model.TaskName
	switch tx.Status {
	case model.TransactionStatusConfirmed:
		names = confirmedTaskNames(tx.PotentialActions)
	case model.TransactionStatusExpired:
		names = []model.TaskName{
			model.TaskCancelSeatReservation,
			model.TaskCancelPayment,
			model.TaskCancelAccount,
			model.TaskCancelVoucher,
			model.TaskCancelPointAward,
		}
	default:
		return nil, apperr.Argument("transaction", "status %s has no tasks", tx.Status)
	}

	now := s.now()
	data := mustMarshal(model.TransactionTaskData{TransactionID: tx.ID})
	tasks := make([]model.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, model.Task{
			ID:                     uuid.NewSHA1(followUpNamespace, []byte(tx.ID+"/"+string(name))).String(),
			Name:                   name,
			Status:                 model.TaskStatusReady,
			RunsAt:                 now,
			RemainingNumberOfTries: s.maxTries,
			ExecutionResults:       []model.TaskExecutionResult{},
			Data:                   data,
		})
	}
	if err := s.tasks.Save(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func confirmedTaskNames(pa *model.PotentialActions) []model.TaskName {
	names := []model.TaskName{model.TaskSettleSeatReservation}
	if pa != nil {
		if pa.PayCreditCard != nil {
			names = append(names, model.TaskSettlePayment)
		}
		if len(pa.PayAccount) > 0 {
			names = append(names, model.TaskSettleAccount)
		}
		if pa.UseMvtk != nil {
			names = append(names, model.TaskSettleVoucher)
		}
		if len(pa.GivePointAward) > 0 {
			names = append(names, model.TaskGivePointAward)
		}
	}
	return append(names, model.TaskCreateOrder)
}

// ReexportTasks releases transactions stuck in Exporting for longer than
// interval so that the next export claims them again.
func (s *TransactionService) ReexportTasks(ctx context.Context, interval time.Duration) (int64, error) {
	return s.transactions.ReexportTasks(ctx, s.now().Add(-interval))
}
