package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// AuthorizeDeps is what every authorize action service needs.
type AuthorizeDeps struct {
	Logger                *logrus.Logger
	TransactionRepository TransactionRepository
	ActionRepository      ActionRepository
	Metrics               *metrics.Metrics
	Now                   func() time.Time
}

// authorizer opens and closes authorize actions on behalf of the typed
// services.
type authorizer struct {
	logger       *logrus.Logger
	transactions TransactionRepository
	actions      ActionRepository
	metrics      *metrics.Metrics
	now          func() time.Time
}

func newAuthorizer(d AuthorizeDeps) authorizer {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return authorizer{
		logger:       d.Logger,
		transactions: d.TransactionRepository,
		actions:      d.ActionRepository,
		metrics:      d.Metrics,
		now:          now,
	}
}

func (a authorizer) transaction(ctx context.Context, agentID, transactionID string) (*model.Transaction, error) {
	return inProgressOwnedBy(ctx, a.transactions, agentID, transactionID)
}

// open records a new Active action for tx.
func (a authorizer) open(ctx context.Context, tx *model.Transaction, agent, recipient model.Party, obj model.AuthorizeObject) (*model.AuthorizeAction, error) {
	action := &model.AuthorizeAction{
		ID:           uuid.NewString(),
		TypeOf:       model.ActionTypeAuthorize,
		ActionStatus: model.ActionStatusActive,
		Agent:        agent,
		Recipient:    recipient,
		Purpose:      model.ActionPurpose{TypeOf: tx.TypeOf, ID: tx.ID},
		Object:       obj,
		StartDate:    a.now(),
	}
	if err := a.actions.Start(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// complete records the result and returns the completed action.
func (a authorizer) complete(ctx context.Context, action *model.AuthorizeAction, result model.AuthorizeResult) (*model.AuthorizeAction, error) {
	end := a.now()
	if err := a.actions.Complete(ctx, action.ID, result, end); err != nil {
		return nil, err
	}
	action.ActionStatus = model.ActionStatusCompleted
	action.Result = result
	action.EndDate = &end
	a.metrics.AuthorizeAction(string(action.ObjectType()), "completed")
	return action, nil
}

// fail marks the action Failed and returns cause unchanged. A failure to
// record the failure is logged, never returned in place of cause.
func (a authorizer) fail(ctx context.Context, action *model.AuthorizeAction, cause error) error {
	actionErr := model.ActionError{Name: "Error", Message: cause.Error()}
	var ae *apperr.Error
	if errors.As(cause, &ae) {
		actionErr.Name = string(ae.Kind)
	}
	if err := a.actions.GiveUp(ctx, action.ID, actionErr, a.now()); err != nil {
		a.logger.WithContext(ctx).WithError(err).WithField("actionId", action.ID).Error("failed to give up authorize action")
	}
	a.metrics.AuthorizeAction(string(action.ObjectType()), "failed")
	return cause
}

// cancel flips a completed action of the expected type to Canceled. The
// caller reverses the gateway side afterwards.
func (a authorizer) cancel(ctx context.Context, agentID, transactionID, actionID string, want model.AuthorizeObjectType) (*model.AuthorizeAction, error) {
	if _, err := a.transaction(ctx, agentID, transactionID); err != nil {
		return nil, err
	}
	existing, err := a.actions.FindByID(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if existing.Purpose.ID != transactionID || existing.ObjectType() != want {
		return nil, apperr.NotFound("authorizeAction")
	}
	canceled, err := a.actions.Cancel(ctx, transactionID, actionID)
	if err != nil {
		return nil, err
	}
	a.metrics.AuthorizeAction(string(want), "canceled")
	return canceled, nil
}

// completedOf returns the completed actions of tx with the given type.
func (a authorizer) completedOf(ctx context.Context, transactionID string, want model.AuthorizeObjectType) ([]model.AuthorizeAction, error) {
	all, err := a.actions.FindAuthorizeByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return filterCompleted(all, want), nil
}

func filterCompleted(actions []model.AuthorizeAction, want model.AuthorizeObjectType) []model.AuthorizeAction {
	var out []model.AuthorizeAction
	for _, a := range actions {
		if a.ActionStatus == model.ActionStatusCompleted && a.ObjectType() == want {
			out = append(out, a)
		}
	}
	return out
}

// activeMembership reports whether the agent currently owns a program
// membership.
func activeMembership(ctx context.Context, ownerships OwnershipInfoRepository, agent model.Party, at time.Time) (bool, error) {
	if agent.MemberOf == nil || agent.MemberOf.MembershipNumber == "" {
		return false, nil
	}
	infos, err := ownerships.SearchActiveMembership(ctx, agent.ID, at)
	if err != nil {
		return false, err
	}
	return len(infos) > 0, nil
}
