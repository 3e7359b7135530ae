package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
	"github.com/iliyamo/cinema-ticket-order/internal/service/servicetest"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	member = model.Party{
		ID:       "member-1",
		TypeOf:   model.PartyTypePerson,
		Name:     "Taro Yamada",
		MemberOf: &model.MemberOf{MembershipNumber: "MB0001", ProgramName: "CinemaPointMembership"},
	}
	anonymous = model.Party{ID: "anon-1", TypeOf: model.PartyTypePerson}
	contact   = model.CustomerContact{GivenName: "Taro", FamilyName: "Yamada", Email: "taro@example.com", Telephone: "03-1234-5678"}
)

type env struct {
	clock  *clock
	logger *logrus.Logger

	catalog      *servicetest.Catalog
	transactions *servicetest.Transactions
	actions      *servicetest.Actions
	tasks        *servicetest.Tasks
	orders       *servicetest.Orders
	ownerships   *servicetest.Ownerships
	seatGW       *servicetest.SeatGateway
	paymentGW    *servicetest.PaymentGateway
	ledger       *servicetest.PointLedger
	voucherGW    *servicetest.VoucherGateway
	publisher    *servicetest.Publisher
	locks        *servicetest.Locks
	verifier     servicetest.Verifier

	txs         *service.TransactionService
	seats       *service.SeatReservationService
	cards       *service.CreditCardService
	vouchers    *service.MvtkService
	accounts    *service.AccountService
	programs    *service.ProgramMembershipService
	awards      *service.PointAwardService
	taskRunner  *service.TaskService
	memberships *service.MembershipService
	orderLookup *service.OrderService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	e := &env{
		clock:        &clock{t: time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)},
		logger:       logger,
		catalog:      servicetest.NewCatalog(),
		transactions: servicetest.NewTransactions(),
		actions:      servicetest.NewActions(),
		tasks:        servicetest.NewTasks(),
		orders:       servicetest.NewOrders(),
		ownerships:   servicetest.NewOwnerships(),
		seatGW: &servicetest.SeatGateway{
			Tickets: []gateway.SalesTicket{
				{TicketCode: "10", TicketName: "General", StdPrice: 1800, SalePrice: 1800, AddPriceGlasses: 100},
				{TicketCode: "20", TicketName: "Member", StdPrice: 1000, SalePrice: 1000},
				{TicketCode: "30", TicketName: "Pair", StdPrice: 1500, SalePrice: 1500, LimitUnit: gateway.LimitUnitPerGroup, LimitCount: 2},
				{TicketCode: "40", TicketName: "Point", UsePoint: 10},
			},
			Vouchers: map[string]gateway.MvtkTicketcodeResult{
				"01": {TicketCode: "MV1", TicketName: "Voucher adult"},
			},
		},
		paymentGW: &servicetest.PaymentGateway{},
		ledger:    &servicetest.PointLedger{},
		voucherGW: &servicetest.VoucherGateway{},
		publisher: &servicetest.Publisher{},
		locks:     servicetest.NewLocks(),
		verifier: servicetest.Verifier{
			Passports: map[string]model.Passport{},
			Err:       apperr.Argument("passport", "invalid passport"),
		},
	}
	now := e.clock.Now

	e.catalog.Sellers["seller-1"] = &model.Seller{
		ID:                 "seller-1",
		Identifier:         "MovieTheater-118",
		Name:               "Cinema Sunshine Ikebukuro",
		BranchCode:         "118",
		Telephone:          "0312345678",
		GMO:                model.GMOShop{SiteID: "site-1", ShopID: "shop-1", ShopPass: "shop-pass"},
		PointAccountNumber: "SELLER-POINT",
	}
	e.catalog.Events["ev-1"] = &model.ScreeningEvent{
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
	e.catalog.Programs["pm-1"] = &model.ProgramMembership{
		ID:                    "pm-1",
		ProgramName:           "CinemaPointMembership",
		HostingOrganizationID: "seller-1",
		Offers:                []model.ProgramMembershipOffer{{Identifier: "monthly", Price: 500, EligibleDuration: 30 * 24 * 3600}},
	}

	deps := service.AuthorizeDeps{
		Logger:                logger,
		TransactionRepository: e.transactions,
		ActionRepository:      e.actions,
		Now:                   now,
	}
	e.txs = service.NewTransactionService(service.TransactionServiceProperty{
		Logger:                logger,
		TransactionRepository: e.transactions,
		ActionRepository:      e.actions,
		TaskRepository:        e.tasks,
		SellerRepository:      servicetest.Sellers{C: e.catalog},
		EventRepository:       servicetest.Events{C: e.catalog},
		OrderNumberRepository: &servicetest.OrderNumbers{},
		PassportVerifier:      e.verifier,
		Config: config.TransactionConfig{
			Expires:         15 * time.Minute,
			EmailSender:     "noreply@example.com",
			EmailSenderName: "Cinema Tickets",
			OrderURLBase:    "https://tickets.example.com",
		},
		MaxTries: 3,
		Now:      now,
	})
	e.seats = service.NewSeatReservationService(service.SeatReservationServiceProperty{
		AuthorizeDeps:           deps,
		EventRepository:         servicetest.Events{C: e.catalog},
		OwnershipInfoRepository: e.ownerships,
		SeatReservationGateway:  e.seatGW,
	})
	e.cards = service.NewCreditCardService(service.CreditCardServiceProperty{
		AuthorizeDeps:    deps,
		SellerRepository: servicetest.Sellers{C: e.catalog},
		PaymentGateway:   e.paymentGW,
	})
	e.vouchers = service.NewMvtkService(deps)
	accounts, err := service.NewAccountService(service.AccountServiceProperty{
		AuthorizeDeps:           deps,
		SellerRepository:        servicetest.Sellers{C: e.catalog},
		OwnershipInfoRepository: e.ownerships,
		PointLedgerGateway:      e.ledger,
		PointBackend:            config.PointBackendWithdraw,
	})
	require.NoError(t, err)
	e.accounts = accounts
	e.programs = service.NewProgramMembershipService(service.ProgramMembershipServiceProperty{
		AuthorizeDeps:               deps,
		ProgramMembershipRepository: servicetest.Programs{C: e.catalog},
	})
	e.awards = service.NewPointAwardService(service.PointAwardServiceProperty{
		AuthorizeDeps:           deps,
		OwnershipInfoRepository: e.ownerships,
		PointLedgerGateway:      e.ledger,
	})
	e.memberships = service.NewMembershipService(service.MembershipServiceProperty{
		Logger:                      logger,
		LockRepository:              e.locks,
		TaskRepository:              e.tasks,
		OwnershipInfoRepository:     e.ownerships,
		ProgramMembershipRepository: servicetest.Programs{C: e.catalog},
		TransactionService:          e.txs,
		ProgramMembershipService:    e.programs,
		CreditCardService:           e.cards,
		MaxTries:                    3,
		Now:                         now,
	})
	e.taskRunner = service.NewTaskService(service.TaskServiceProperty{
		Logger:         logger,
		TaskRepository: e.tasks,
		Publisher:      e.publisher,
		Now:            now,
	})
	service.NewTaskHandlers(service.TaskHandlersProperty{
		Logger:                  logger,
		TransactionRepository:   e.transactions,
		ActionRepository:        e.actions,
		TaskRepository:          e.tasks,
		SellerRepository:        servicetest.Sellers{C: e.catalog},
		OrderRepository:         e.orders,
		OwnershipInfoRepository: e.ownerships,
		SeatReservationGateway:  e.seatGW,
		PaymentGateway:          e.paymentGW,
		PointLedgerGateway:      e.ledger,
		VoucherGateway:          e.voucherGW,
		Publisher:               e.publisher,
		MembershipService:       e.memberships,
		MaxTries:                3,
		Now:                     now,
	}).Register(e.taskRunner)
	e.orderLookup = service.NewOrderService(e.orders)
	return e
}

// activateMembership gives the member an ownership of pm-1 around now.
func (e *env) activateMembership() {
	now := e.clock.Now()
	_ = e.ownerships.Save(context.Background(), []model.OwnershipInfo{{
		ID:           "own-pm-1",
		Identifier:   "ProgramMembership-seed",
		OwnedBy:      member,
		OwnedFrom:    now.Add(-24 * time.Hour),
		OwnedThrough: now.Add(24 * time.Hour),
		TypeOfGood:   model.ItemOffered{ProgramMembership: &model.ProgramMembership{ID: "pm-1", ProgramName: "CinemaPointMembership"}},
	}})
}

func (e *env) start(t *testing.T, agent model.Party) *model.Transaction {
	t.Helper()
	tx, err := e.txs.Start(context.Background(), service.StartParams{Agent: agent, SellerID: "seller-1"})
	require.NoError(t, err)
	return tx
}

func offer(seat, ticketCode string) model.SeatReservationOffer {
	return model.SeatReservationOffer{SeatSection: "0", SeatNumber: seat, TicketInfo: model.TicketInfo{TicketCode: ticketCode}}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}
