package service

import (
	"context"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// ProgramMembershipService authorizes the sale of a membership offer. The
// seller is the agent and its price counts on the seller side.
type ProgramMembershipService struct {
	authorizer
	programs ProgramMembershipRepository
}

type ProgramMembershipServiceProperty struct {
	AuthorizeDeps
	ProgramMembershipRepository ProgramMembershipRepository
}

func NewProgramMembershipService(props ProgramMembershipServiceProperty) *ProgramMembershipService {
	return &ProgramMembershipService{
		authorizer: newAuthorizer(props.AuthorizeDeps),
		programs:   props.ProgramMembershipRepository,
	}
}

// Create records the offer for the member. Anonymous buyers cannot buy a
// membership.
func (s *ProgramMembershipService) Create(ctx context.Context, agentID, transactionID, programMembershipID, offerIdentifier string) (*model.AuthorizeAction, error) {
	tx, err := s.transaction(ctx, agentID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Agent.MemberOf == nil || tx.Agent.MemberOf.MembershipNumber == "" {
		return nil, apperr.Forbidden("only members can buy a program membership")
	}
	pm, err := s.programs.FindByID(ctx, programMembershipID)
	if err != nil {
		return nil, err
	}
	if pm.HostingOrganizationID != tx.Seller.ID {
		return nil, apperr.Argument("programMembershipId", "program %s is not hosted by the transaction seller", pm.ID)
	}
	offer, ok := pm.FindOffer(offerIdentifier)
	if !ok {
		return nil, apperr.NotFound("offer")
	}

	snapshot := *pm
	snapshot.Offers = nil
	obj := &model.ProgramMembershipObject{
		OfferIdentifier:   offer.Identifier,
		Price:             offer.Price,
		ProgramMembership: snapshot,
		EligibleDuration:  offer.EligibleDuration,
		MembershipNumber:  tx.Agent.MemberOf.MembershipNumber,
	}
	action, err := s.open(ctx, tx, tx.Seller, tx.Agent, obj)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, action, &model.ProgramMembershipResult{Price: offer.Price, PriceCurrency: priceCurrencyJPY})
}

// Cancel drops a membership offer authorization.
func (s *ProgramMembershipService) Cancel(ctx context.Context, agentID, transactionID, actionID string) (*model.AuthorizeAction, error) {
	return s.cancel(ctx, agentID, transactionID, actionID, model.AuthorizeObjectProgramMembership)
}
