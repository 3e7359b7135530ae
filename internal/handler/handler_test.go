package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/handler"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/passport"
	"github.com/iliyamo/cinema-ticket-order/internal/router"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
	"github.com/iliyamo/cinema-ticket-order/internal/service/servicetest"
	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

const secret = "handler-test-secret"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

type counter struct {
	mu sync.Mutex
	n  map[string]int64
}

func (c *counter) Incr(_ context.Context, scope string, windowStart time.Time, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%s:%d", scope, windowStart.Unix())
	c.n[key]++
	return c.n[key], nil
}

type server struct {
	e      *echo.Echo
	orders *servicetest.Orders
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	now := func() time.Time { return time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC) }

	catalog := servicetest.NewCatalog()
	catalog.Sellers["seller-1"] = &model.Seller{
		ID:         "seller-1",
		Identifier: "MovieTheater-118",
		Name:       "Cinema Sunshine Ikebukuro",
		BranchCode: "118",
		GMO:        model.GMOShop{SiteID: "site-1", ShopID: "shop-1", ShopPass: "shop-pass"},
	}
	catalog.Events["ev-1"] = &model.ScreeningEvent{
		Identifier:     "ev-1",
		Name:           "Feature",
		SellerID:       "seller-1",
		TheaterCode:    "118",
		ScreenCode:     "01",
		DateJouei:      "20261020",
		TitleCode:      "99500",
		TitleBranchNum: "0",
		TimeBegin:      "1000",
		StartDate:      time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC),
	}
	transactions := servicetest.NewTransactions()
	actions := servicetest.NewActions()
	tasks := servicetest.NewTasks()
	orders := servicetest.NewOrders()
	ownerships := servicetest.NewOwnerships()
	seatGW := &servicetest.SeatGateway{Tickets: []gateway.SalesTicket{
		{TicketCode: "10", TicketName: "General", StdPrice: 1800, SalePrice: 1800},
	}}

	deps := service.AuthorizeDeps{Logger: logger, TransactionRepository: transactions, ActionRepository: actions, Now: now}
	txs := service.NewTransactionService(service.TransactionServiceProperty{
		Logger:                logger,
		TransactionRepository: transactions,
		ActionRepository:      actions,
		TaskRepository:        tasks,
		SellerRepository:      servicetest.Sellers{C: catalog},
		EventRepository:       servicetest.Events{C: catalog},
		OrderNumberRepository: &servicetest.OrderNumbers{},
		PassportVerifier:      servicetest.Verifier{Err: apperr.Argument("passport", "invalid passport")},
		Config:                config.TransactionConfig{Expires: 15 * time.Minute, OrderURLBase: "https://tickets.example.com"},
		MaxTries:              3,
		Now:                   now,
	})
	seats := service.NewSeatReservationService(service.SeatReservationServiceProperty{
		AuthorizeDeps:           deps,
		EventRepository:         servicetest.Events{C: catalog},
		OwnershipInfoRepository: ownerships,
		SeatReservationGateway:  seatGW,
	})
	cards := service.NewCreditCardService(service.CreditCardServiceProperty{
		AuthorizeDeps:    deps,
		SellerRepository: servicetest.Sellers{C: catalog},
		PaymentGateway:   &servicetest.PaymentGateway{},
	})
	programs := service.NewProgramMembershipService(service.ProgramMembershipServiceProperty{
		AuthorizeDeps:               deps,
		ProgramMembershipRepository: servicetest.Programs{C: catalog},
	})
	memberships := service.NewMembershipService(service.MembershipServiceProperty{
		Logger:                      logger,
		LockRepository:              servicetest.NewLocks(),
		TaskRepository:              tasks,
		OwnershipInfoRepository:     ownerships,
		ProgramMembershipRepository: servicetest.Programs{C: catalog},
		TransactionService:          txs,
		ProgramMembershipService:    programs,
		CreditCardService:           cards,
		MaxTries:                    3,
		Now:                         now,
	})

	v := handler.NewValidator()
	e := echo.New()
	router.RegisterPlaceOrder(e, &handler.PlaceOrderHandler{
		ProgramName:        "CinemaPointMembership",
		Validate:           v,
		Logger:             logger,
		Passports:          passport.New(config.PassportConfig{Secret: "p", Issuer: "cinema-waiter", AllowedIssuers: []string{"cinema-waiter"}, Unit: 24 * time.Hour, MaxCountPerUnit: 1, TTL: time.Minute}, &counter{n: map[string]int64{}}),
		Transactions:       txs,
		SeatReservations:   seats,
		CreditCards:        cards,
		Mvtk:               service.NewMvtkService(deps),
		ProgramMemberships: programs,
	}, secret, passThrough)
	router.RegisterCatalog(e, &handler.CatalogHandler{ProgramName: "CinemaPointMembership", Logger: logger, SeatReservations: seats}, secret, passThrough)
	router.RegisterOrders(e, &handler.OrderHandler{
		Validate:    v,
		Logger:      logger,
		Orders:      service.NewOrderService(orders),
		Memberships: memberships,
	}, secret, passThrough)
	return &server{e: e, orders: orders}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, subject, role, "", "", 10)
	require.NoError(t, err)
	return tok.Token
}

func (s *server) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAnonymousPlaceOrderFlow(t *testing.T) {
	s := newServer(t)
	buyer := token(t, "anon-1", utils.RoleAnonymous)
	const base = "/v1/transactions/place-order"

	rec := s.do(t, http.MethodPost, base+"/start", buyer, map[string]any{"sellerId": "seller-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &tx)
	assert.Equal(t, string(model.TransactionStatusInProgress), tx.Status)

	rec = s.do(t, http.MethodPut, base+"/"+tx.ID+"/customer-contact", buyer, map[string]any{
		"givenName": "Taro", "familyName": "Yamada", "email": "taro@example.com", "telephone": "03-1234-5678",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var contact model.CustomerContact
	decode(t, rec, &contact)
	assert.Equal(t, "+81312345678", contact.Telephone)

	rec = s.do(t, http.MethodPost, base+"/"+tx.ID+"/actions/authorize/seat-reservation", buyer, map[string]any{
		"eventIdentifier": "ev-1",
		"offers":          []map[string]any{{"seatSection": "0", "seatNumber": "A-1", "ticketInfo": map[string]any{"ticketCode": "10"}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/"+tx.ID+"/actions/authorize/credit-card", buyer, map[string]any{
		"orderId": "118-" + tx.ID[:8], "amount": 1800, "token": "tok_visa",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/"+tx.ID+"/confirm", buyer, map[string]any{"sendEmailMessage": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result struct {
		Order struct {
			OrderNumber string `json:"orderNumber"`
			Price       int    `json:"price"`
		} `json:"order"`
	}
	decode(t, rec, &result)
	assert.Equal(t, "118-261018-000001", result.Order.OrderNumber)
	assert.Equal(t, 1800, result.Order.Price)

	// a transaction confirms once
	rec = s.do(t, http.MethodPost, base+"/"+tx.ID+"/confirm", buyer, map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionBelongsToBearer(t *testing.T) {
	s := newServer(t)
	owner := token(t, "anon-1", utils.RoleAnonymous)
	other := token(t, "anon-2", utils.RoleAnonymous)

	rec := s.do(t, http.MethodPost, "/v1/transactions/place-order/start", owner, map[string]any{"sellerId": "seller-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tx struct {
		ID string `json:"id"`
	}
	decode(t, rec, &tx)

	rec = s.do(t, http.MethodPost, "/v1/transactions/place-order/"+tx.ID+"/confirm", other, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlaceOrderRequiresToken(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/v1/transactions/place-order/start", "", map[string]any{"sellerId": "seller-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidationErrorsListFields(t *testing.T) {
	s := newServer(t)
	buyer := token(t, "anon-1", utils.RoleAnonymous)

	rec := s.do(t, http.MethodPost, "/v1/transactions/place-order/start", buyer, map[string]any{"sellerId": "seller-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tx struct {
		ID string `json:"id"`
	}
	decode(t, rec, &tx)

	rec = s.do(t, http.MethodPost, "/v1/transactions/place-order/"+tx.ID+"/actions/authorize/seat-reservation", buyer, map[string]any{
		"offers": []map[string]any{{"seatSection": "0"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error  string `json:"error"`
		Errors []struct {
			Entity string `json:"entity"`
		} `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, string(apperr.KindArgument), body.Error)
	var entities []string
	for _, item := range body.Errors {
		entities = append(entities, item.Entity)
	}
	assert.ElementsMatch(t, []string{"eventIdentifier", "offers[0].seatNumber", "offers[0].ticketInfo.ticketCode"}, entities)

	rec = s.do(t, http.MethodPost, "/v1/transactions/place-order/"+tx.ID+"/actions/authorize/credit-card", buyer, map[string]any{
		"orderId": "118-1", "amount": 1800,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a card token or a registered card is required")
}

func TestIssuePassportQuota(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/v1/passports", "", map[string]any{"scope": passport.Scope("MovieTheater-118")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got struct {
		Token string `json:"token"`
	}
	decode(t, rec, &got)
	assert.NotEmpty(t, got.Token)

	rec = s.do(t, http.MethodPost, "/v1/passports", "", map[string]any{"scope": passport.Scope("MovieTheater-118")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/passports", "", map[string]any{"scope": "returnOrder.MovieTheater-118"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderLookupHidesOtherCustomers(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.orders.Save(context.Background(), model.Order{
		OrderNumber: "118-261018-000009",
		Customer:    model.Customer{ID: "anon-1", TypeOf: model.PartyTypePerson},
	}))

	rec := s.do(t, http.MethodGet, "/v1/orders/118-261018-000009", token(t, "anon-1", utils.RoleAnonymous), nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/orders/118-261018-000009", token(t, "anon-2", utils.RoleAnonymous), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnregisterNeedsMember(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodDelete, "/v1/me/program-memberships/pm-1", token(t, "anon-1", utils.RoleAnonymous), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTicketOffersAnonymousTier(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/v1/events/ev-1/ticket-offers", token(t, "anon-1", utils.RoleAnonymous), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Member  bool              `json:"member"`
		Tickets []json.RawMessage `json:"tickets"`
	}
	decode(t, rec, &body)
	assert.False(t, body.Member)
	assert.Len(t, body.Tickets, 1)

	rec = s.do(t, http.MethodGet, "/v1/events/nowhere/ticket-offers", token(t, "anon-1", utils.RoleAnonymous), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
