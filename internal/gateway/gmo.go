package gateway

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Job codes of the card payment gateway.
const (
	JobCodeAuth    = "AUTH"
	JobCodeSales   = "SALES"
	JobCodeVoid    = "VOID"
	JobCodeCapture = "CAPTURE"
)

// Trade status meaning the sale is already settled.
const TradeStatusSales = "SALES"

// MethodLump is a one-time card payment.
const MethodLump = "1"

type EntryTranArgs struct {
	ShopID   string `json:"shopId"`
	ShopPass string `json:"shopPass"`
	OrderID  string `json:"orderId"`
	JobCode  string `json:"jobCd"`
	Amount   int    `json:"amount"`
}

type EntryTranResult struct {
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
}

// ExecTranArgs pays an entered transaction with either a card token or a
// card registered for a member on the site.
type ExecTranArgs struct {
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
	OrderID    string `json:"orderId"`
	Method     string `json:"method"`
	Token      string `json:"token,omitempty"`
	SiteID     string `json:"siteId,omitempty"`
	MemberID   string `json:"memberId,omitempty"`
	CardSeq    int    `json:"cardSeq,omitempty"`
}

type ExecTranResult struct {
	ACS      string `json:"acs"`
	OrderID  string `json:"orderId"`
	Forward  string `json:"forward"`
	Method   string `json:"method"`
	Approve  string `json:"approve"`
	TranID   string `json:"tranId"`
	TranDate string `json:"tranDate"`
}

type AlterTranArgs struct {
	ShopID     string `json:"shopId"`
	ShopPass   string `json:"shopPass"`
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
	JobCode    string `json:"jobCd"`
	Amount     int    `json:"amount,omitempty"`
}

type AlterTranResult struct {
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
	Forward    string `json:"forward"`
	Approve    string `json:"approve"`
	TranID     string `json:"tranId"`
	TranDate   string `json:"tranDate"`
}

type SearchTradeArgs struct {
	ShopID   string `json:"shopId"`
	ShopPass string `json:"shopPass"`
	OrderID  string `json:"orderId"`
}

type SearchTradeResult struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	JobCode    string `json:"jobCd"`
	Amount     int    `json:"amount"`
	AccessID   string `json:"accessId"`
	AccessPass string `json:"accessPass"`
}

// PaymentClient talks to the card payment gateway.
type PaymentClient struct{ c client }

func NewPaymentClient(baseURL string, logger *logrus.Logger, hc *http.Client) *PaymentClient {
	return &PaymentClient{c: newClient("payment", baseURL, "", logger, hc)}
}

func (p *PaymentClient) EntryTran(ctx context.Context, args EntryTranArgs) (EntryTranResult, error) {
	var out EntryTranResult
	err := p.c.do(ctx, http.MethodPost, "/payment/EntryTran.json", args, &out)
	return out, err
}

func (p *PaymentClient) ExecTran(ctx context.Context, args ExecTranArgs) (ExecTranResult, error) {
	var out ExecTranResult
	err := p.c.do(ctx, http.MethodPost, "/payment/ExecTran.json", args, &out)
	return out, err
}

// AlterTran changes the job of a transaction: VOID cancels the
// authorization, SALES captures it.
func (p *PaymentClient) AlterTran(ctx context.Context, args AlterTranArgs) (AlterTranResult, error) {
	var out AlterTranResult
	err := p.c.do(ctx, http.MethodPost, "/payment/AlterTran.json", args, &out)
	return out, err
}

func (p *PaymentClient) SearchTrade(ctx context.Context, args SearchTradeArgs) (SearchTradeResult, error) {
	var out SearchTradeResult
	err := p.c.do(ctx, http.MethodPost, "/payment/SearchTrade.json", args, &out)
	return out, err
}
