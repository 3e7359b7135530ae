package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// registrationLockTTL bounds how long one renewal may hold its lock.
const registrationLockTTL = 5 * time.Minute

// MembershipService renews and ends program memberships without the member
// being present. A renewal is an ordinary place-order transaction driven by
// the task.
type MembershipService struct {
	logger       *logrus.Logger
	locks        LockRepository
	tasks        TaskRepository
	ownerships   OwnershipInfoRepository
	programs     ProgramMembershipRepository
	transactions *TransactionService
	memberships  *ProgramMembershipService
	creditCards  *CreditCardService
	maxTries     int
	now          func() time.Time
}

type MembershipServiceProperty struct {
	Logger                      *logrus.Logger
	LockRepository              LockRepository
	TaskRepository              TaskRepository
	OwnershipInfoRepository     OwnershipInfoRepository
	ProgramMembershipRepository ProgramMembershipRepository
	TransactionService          *TransactionService
	ProgramMembershipService    *ProgramMembershipService
	CreditCardService           *CreditCardService
	MaxTries                    int
	Now                         func() time.Time
}

func NewMembershipService(props MembershipServiceProperty) *MembershipService {
	now := props.Now
	if now == nil {
		now = time.Now
	}
	maxTries := props.MaxTries
	if maxTries <= 0 {
		maxTries = 10
	}
	return &MembershipService{
		logger:       props.Logger,
		locks:        props.LockRepository,
		tasks:        props.TaskRepository,
		ownerships:   props.OwnershipInfoRepository,
		programs:     props.ProgramMembershipRepository,
		transactions: props.TransactionService,
		memberships:  props.ProgramMembershipService,
		creditCards:  props.CreditCardService,
		maxTries:     maxTries,
		now:          now,
	}
}

func registrationLockKey(membershipNumber, programMembershipID string) string {
	return fmt.Sprintf("registerProgramMembership:%s:%s", membershipNumber, programMembershipID)
}

// Register buys the next membership term with the member's registered card.
// A free offer needs no card. Concurrent renewals of the same membership fail
// with AlreadyInUse.
func (s *MembershipService) Register(ctx context.Context, data model.RegisterProgramMembershipData) error {
	key := registrationLockKey(data.MembershipNumber, data.ProgramMembershipID)
	token, err := s.locks.Lock(ctx, key, registrationLockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.locks.Unlock(ctx, key, token); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("failed to release registration lock")
		}
	}()

	pm, err := s.programs.FindByID(ctx, data.ProgramMembershipID)
	if err != nil {
		return err
	}
	offer, ok := pm.FindOffer(data.OfferIdentifier)
	if !ok {
		return apperr.NotFound("offer")
	}
	if offer.Price > 0 && data.Card == nil {
		return apperr.Argument("card", "membership %s has no registered card to renew with", data.MembershipNumber)
	}

	agent := data.Agent
	if agent.MemberOf == nil {
		agent.MemberOf = &model.MemberOf{MembershipNumber: data.MembershipNumber, ProgramName: pm.ProgramName}
	}
	tx, err := s.transactions.Start(ctx, StartParams{
		Agent:    agent,
		SellerID: data.SellerID,
		Expires:  s.now().Add(registrationLockTTL),
	})
	if err != nil {
		return err
	}
	if _, err := s.memberships.Create(ctx, agent.ID, tx.ID, pm.ID, offer.Identifier); err != nil {
		return err
	}
	if offer.Price > 0 {
		if _, err := s.creditCards.Create(ctx, agent.ID, tx.ID, model.CreditCardObject{
			OrderID: renewalOrderID(tx.ID),
			Amount:  offer.Price,
			Card:    data.Card,
		}); err != nil {
			return err
		}
	}
	if _, err := s.transactions.SetCustomerContact(ctx, agent.ID, tx.ID, data.CustomerContact); err != nil {
		return err
	}
	_, err = s.transactions.Confirm(ctx, ConfirmParams{AgentID: agent.ID, TransactionID: tx.ID, SendEmailMessage: true})
	return err
}

// renewalOrderID derives a payment order id that fits the gateway's 27
// character limit.
func renewalOrderID(transactionID string) string {
	id := "PM" + transactionID
	if len(id) > 27 {
		id = id[:27]
	}
	return id
}

// RequestUnregister schedules the end of a membership.
func (s *MembershipService) RequestUnregister(ctx context.Context, data model.UnregisterProgramMembershipData) (*model.Task, error) {
	if data.MembershipNumber == "" {
		return nil, apperr.Forbidden("only members can end a program membership")
	}
	t := model.Task{
		ID:                     uuid.NewString(),
		Name:                   model.TaskUnregisterProgramMembership,
		Status:                 model.TaskStatusReady,
		RunsAt:                 s.now(),
		RemainingNumberOfTries: s.maxTries,
		ExecutionResults:       []model.TaskExecutionResult{},
		Data:                   mustMarshal(data),
	}
	if err := s.tasks.Save(ctx, []model.Task{t}); err != nil {
		return nil, err
	}
	return &t, nil
}

// Unregister aborts pending renewals and ends the membership now.
func (s *MembershipService) Unregister(ctx context.Context, data model.UnregisterProgramMembershipData) error {
	n, err := s.tasks.AbortReadyRegistrations(ctx, data.MembershipNumber, data.ProgramMembershipID)
	if err != nil {
		return err
	}
	ended, err := s.ownerships.EndMembership(ctx, data.AgentID, data.ProgramMembershipID, s.now())
	if err != nil {
		return err
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"membershipNumber":    data.MembershipNumber,
		"programMembershipId": data.ProgramMembershipID,
		"abortedRenewals":     n,
		"endedOwnerships":     ended,
	}).Info("program membership unregistered")
	return nil
}
