package service

import (
	"context"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// CreditCardService authorizes card payments on the payment gateway. The
// buyer is the agent of these actions.
type CreditCardService struct {
	authorizer
	sellers  SellerRepository
	payments PaymentGateway
}

type CreditCardServiceProperty struct {
	AuthorizeDeps
	SellerRepository SellerRepository
	PaymentGateway   PaymentGateway
}

func NewCreditCardService(props CreditCardServiceProperty) *CreditCardService {
	return &CreditCardService{
		authorizer: newAuthorizer(props.AuthorizeDeps),
		sellers:    props.SellerRepository,
		payments:   props.PaymentGateway,
	}
}

// Create enters and executes an authorization for obj.Amount. Exactly one of
// obj.Token and obj.Card must be set.
func (s *CreditCardService) Create(ctx context.Context, agentID, transactionID string, obj model.CreditCardObject) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	if obj.OrderID == "" {
		return nil, apperr.Argument("orderId", "orderId is required")
	}
	if obj.Amount <= 0 {
		return nil, apperr.Argument("amount", "amount must be positive")
	}
	if (obj.Token == "") == (obj.Card == nil) {
		return nil, apperr.Argument("creditCard", "either a card token or a registered card is required")
	}
	if obj.Method == "" {
		obj.Method = gateway.MethodLump
	}
	seller, err := s.sellers.FindByID(ctx, tx.Seller.ID)
	if err != nil {
		return nil, err
	}

	action, err := s.open(ctx, tx, tx.Agent, tx.Seller, &obj)
	if err != nil {
		return nil, err
	}

	entry, err := s.payments.EntryTran(ctx, gateway.EntryTranArgs{
		ShopID:   seller.GMO.ShopID,
		ShopPass: seller.GMO.ShopPass,
		OrderID:  obj.OrderID,
		JobCode:  gateway.JobCodeAuth,
		Amount:   obj.Amount,
	})
	if err != nil {
		return nil, s.fail(ctx, action, err)
	}
	exec := gateway.ExecTranArgs{
		AccessID:   entry.AccessID,
		AccessPass: entry.AccessPass,
		OrderID:    obj.OrderID,
		Method:     obj.Method,
		Token:      obj.Token,
	}
	if obj.Card != nil {
		exec.SiteID = seller.GMO.SiteID
		exec.MemberID = obj.Card.MemberID
		exec.CardSeq = obj.Card.CardSeq
	}
	res, err := s.payments.ExecTran(ctx, exec)
	if err != nil {
		return nil, s.fail(ctx, action, err)
	}

	return s.complete(ctx, action, &model.CreditCardResult{
		Price:      obj.Amount,
		ShopID:     seller.GMO.ShopID,
		OrderID:    obj.OrderID,
		AccessID:   entry.AccessID,
		AccessPass: entry.AccessPass,
		Approve:    res.Approve,
		TranID:     res.TranID,
		TranDate:   res.TranDate,
	})
}

// Cancel voids the authorization of a completed action.
func (s *CreditCardService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	action, err := s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectCreditCard)
	if err != nil {
		return nil, err
	}
	r, ok := action.Result.(*model.CreditCardResult)
	if !ok {
		return action, nil
	}
	seller, err := s.sellers.FindByID(ctx, action.Recipient.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.payments.AlterTran(ctx, gateway.AlterTranArgs{
		ShopID:     seller.GMO.ShopID,
		ShopPass:   seller.GMO.ShopPass,
		AccessID:   r.AccessID,
		AccessPass: r.AccessPass,
		JobCode:    gateway.JobCodeVoid,
	}); err != nil {
		return nil, err
	}
	return action, nil
}
