package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// PointTransactionArgs starts a pending point ledger transaction. Withdraw
// uses FromAccountNumber, Deposit uses ToAccountNumber and Transfer both.
type PointTransactionArgs struct {
	Type              model.PendingTransactionType `json:"-"`
	Expires           time.Time                    `json:"expires"`
	Agent             model.Party                  `json:"agent"`
	Recipient         model.Party                  `json:"recipient"`
	Amount            int                          `json:"amount"`
	AccountType       string                       `json:"accountType"`
	FromAccountNumber string                       `json:"fromAccountNumber,omitempty"`
	ToAccountNumber   string                       `json:"toAccountNumber,omitempty"`
	Notes             string                       `json:"notes,omitempty"`
}

// PointLedgerClient talks to the point account ledger.
type PointLedgerClient struct{ c client }

func NewPointLedgerClient(baseURL, token string, logger *logrus.Logger, hc *http.Client) *PointLedgerClient {
	return &PointLedgerClient{c: newClient("point-ledger", baseURL, token, logger, hc)}
}

func ledgerPath(t model.PendingTransactionType) string {
	return "/transactions/" + strings.ToLower(string(t))
}

// Start opens a pending transaction and returns its handle.
func (p *PointLedgerClient) Start(ctx context.Context, args PointTransactionArgs) (model.PendingTransactionRef, error) {
	switch args.Type {
	case model.PendingTransactionWithdraw, model.PendingTransactionTransfer, model.PendingTransactionDeposit:
	default:
		return model.PendingTransactionRef{}, fmt.Errorf("unknown pending transaction type %q", args.Type)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := p.c.do(ctx, http.MethodPost, ledgerPath(args.Type)+"/start", args, &out); err != nil {
		return model.PendingTransactionRef{}, err
	}
	return model.PendingTransactionRef{ID: out.ID, TypeOf: args.Type}, nil
}

// Confirm settles a pending transaction.
func (p *PointLedgerClient) Confirm(ctx context.Context, ref model.PendingTransactionRef) error {
	return p.c.do(ctx, http.MethodPut, ledgerPath(ref.TypeOf)+"/"+ref.ID+"/confirm", nil, nil)
}

// Cancel abandons a pending transaction.
func (p *PointLedgerClient) Cancel(ctx context.Context, ref model.PendingTransactionRef) error {
	return p.c.do(ctx, http.MethodPut, ledgerPath(ref.TypeOf)+"/"+ref.ID+"/cancel", nil, nil)
}
