package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// pendingTransactionGrace keeps ledger pending transactions open a little
// longer than the place-order transaction so settlement can still confirm
// them.
const pendingTransactionGrace = time.Hour

// AccountService authorizes point-account payments. Only members with an
// active program membership may pay with points.
type AccountService struct {
	authorizer
	sellers    SellerRepository
	ownerships OwnershipInfoRepository
	ledger     PointLedgerGateway
	backend    config.PointBackend
}

type AccountServiceProperty struct {
	AuthorizeDeps
	SellerRepository        SellerRepository
	OwnershipInfoRepository OwnershipInfoRepository
	PointLedgerGateway      PointLedgerGateway
	PointBackend            config.PointBackend
}

// NewAccountService fails when the point backend is not exactly one of the
// known strategies.
func NewAccountService(props AccountServiceProperty) (*AccountService, error) {
	backend, err := config.ParsePointBackend(string(props.PointBackend))
	if err != nil {
		return nil, err
	}
	return &AccountService{
		authorizer: newAuthorizer(props.AuthorizeDeps),
		sellers:    props.SellerRepository,
		ownerships: props.OwnershipInfoRepository,
		ledger:     props.PointLedgerGateway,
		backend:    backend,
	}, nil
}

// Create starts a pending debit of obj.Amount points on the buyer's account.
func (s *AccountService) Create(ctx context.Context, agentID, transactionID string, obj model.AccountObject) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	member, err := activeMembership(ctx, s.ownerships, tx.Agent, s.now())
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Forbidden("point payment requires an active program membership")
	}
	if obj.Amount <= 0 {
		return nil, apperr.Argument("amount", "amount must be positive")
	}
	if obj.AccountType == "" {
		obj.AccountType = DefaultPointAccountType
	}
	if obj.FromAccountNumber == "" {
		obj.FromAccountNumber = tx.Agent.MemberOf.MembershipNumber
	}

	args := gateway.PointTransactionArgs{
		Expires:           tx.Expires.Add(pendingTransactionGrace),
		Agent:             tx.Agent,
		Recipient:         tx.Seller,
		Amount:            obj.Amount,
		AccountType:       obj.AccountType,
		FromAccountNumber: obj.FromAccountNumber,
		Notes:             obj.Notes,
	}
	switch s.backend {
	case config.PointBackendWithdraw:
		args.Type = model.PendingTransactionWithdraw
	case config.PointBackendTransfer:
		seller, err := s.sellers.FindByID(ctx, tx.Seller.ID)
		if err != nil {
			return nil, err
		}
		if seller.PointAccountNumber == "" {
			return nil, apperr.Argument("seller", "seller %s has no point account to transfer to", seller.ID)
		}
		args.Type = model.PendingTransactionTransfer
		args.ToAccountNumber = seller.PointAccountNumber
		obj.ToAccountNumber = seller.PointAccountNumber
	default:
		return nil, apperr.NotImplemented("point backend %q", s.backend)
	}
	if args.Notes == "" {
		args.Notes = fmt.Sprintf("place order %s", tx.ID)
	}

	action, err := s.open(ctx, tx, tx.Agent, tx.Seller, &obj)
	if err != nil {
		return nil, err
	}
	pending, err := s.ledger.Start(ctx, args)
	if err != nil {
		return nil, s.fail(ctx, action, err)
	}
	return s.complete(ctx, action, &model.AccountResult{
		Amount:             obj.Amount,
		AccountType:        obj.AccountType,
		PendingTransaction: pending,
	})
}

// Cancel abandons the pending debit of a completed action.
func (s *AccountService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	action, err := s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectAccount)
	if err != nil {
		return nil, err
	}
	if r, ok := action.Result.(*model.AccountResult); ok {
		if err := s.ledger.Cancel(ctx, r.PendingTransaction); err != nil {
			return nil, err
		}
	}
	return action, nil
}
