package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// PointAwardService authorizes incentive points deposited to a member once
// the order is settled.
type PointAwardService struct {
	authorizer
	ownerships OwnershipInfoRepository
	ledger     PointLedgerGateway
}

type PointAwardServiceProperty struct {
	AuthorizeDeps
	OwnershipInfoRepository OwnershipInfoRepository
	PointLedgerGateway      PointLedgerGateway
}

func NewPointAwardService(props PointAwardServiceProperty) *PointAwardService {
	return &PointAwardService{
		authorizer: newAuthorizer(props.AuthorizeDeps),
		ownerships: props.OwnershipInfoRepository,
		ledger:     props.PointLedgerGateway,
	}
}

// Create starts a pending deposit of obj.Amount points.
func (s *PointAwardService) Create(ctx context.Context, agentID, transactionID string, obj model.PointAwardObject) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	member, err := activeMembership(ctx, s.ownerships, tx.Agent, s.now())
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Forbidden("point award requires an active program membership")
	}
	if obj.Amount <= 0 || obj.Amount > MaxPointAwardPerOrder {
		return nil, apperr.Argument("amount", "amount must be between 1 and %d", MaxPointAwardPerOrder)
	}
	if obj.ToAccountNumber == "" {
		obj.ToAccountNumber = tx.Agent.MemberOf.MembershipNumber
	}
	if obj.Notes == "" {
		obj.Notes = fmt.Sprintf("award for place order %s", tx.ID)
	}

	action, err := s.open(ctx, tx, tx.Seller, tx.Agent, &obj)
	if err != nil {
		return nil, err
	}
	pending, err := s.ledger.Start(ctx, gateway.PointTransactionArgs{
		Type:            model.PendingTransactionDeposit,
		Expires:         tx.Expires.Add(pendingTransactionGrace),
		Agent:           tx.Seller,
		Recipient:       tx.Agent,
		Amount:          obj.Amount,
		AccountType:     DefaultPointAccountType,
		ToAccountNumber: obj.ToAccountNumber,
		Notes:           obj.Notes,
	})
	if err != nil {
		return nil, s.fail(ctx, action, err)
	}
	return s.complete(ctx, action, &model.PointAwardResult{Amount: obj.Amount, PendingTransaction: pending})
}

// Cancel abandons the pending deposit of a completed award.
func (s *PointAwardService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	action, err := s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectPointAward)
	if err != nil {
		return nil, err
	}
	if r, ok := action.Result.(*model.PointAwardResult); ok {
		if err := s.ledger.Cancel(ctx, r.PendingTransaction); err != nil {
			return nil, err
		}
	}
	return action, nil
}
