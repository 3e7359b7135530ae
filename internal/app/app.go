// Package app builds the object graph shared by the API server and the
// worker.
package app

import (
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
	"github.com/iliyamo/cinema-ticket-order/internal/passport"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
	"github.com/iliyamo/cinema-ticket-order/internal/repository"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

// App holds the repositories and services of one process.
type App struct {
	Members   *repository.MemberRepo
	Tokens    *repository.TokenRepo
	Passports *passport.Service
	Publisher *queue.Publisher

	Transactions       *service.TransactionService
	SeatReservations   *service.SeatReservationService
	CreditCards        *service.CreditCardService
	Mvtk               *service.MvtkService
	Accounts           *service.AccountService
	ProgramMemberships *service.ProgramMembershipService
	PointAwards        *service.PointAwardService
	Memberships        *service.MembershipService
	Orders             *service.OrderService
	Tasks              *service.TaskService
}

// New wires every service against MySQL, Redis, RabbitMQ and the HTTP
// gateways named in cfg.
func New(cfg config.Config, logger *logrus.Logger, db *sql.DB, rdb *redis.Client, m *metrics.Metrics) (*App, error) {
	hc := &http.Client{Timeout: cfg.Gateways.Timeout}

	transactionRepo := repository.NewTransactionRepo(db)
	actionRepo := repository.NewActionRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	sellerRepo := repository.NewSellerRepo(db)
	eventRepo := repository.NewEventRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	ownershipRepo := repository.NewOwnershipRepo(db)
	programRepo := repository.NewProgramMembershipRepo(db)

	seatGW := gateway.NewSeatReservationClient(cfg.Gateways.SeatReservationURL, logger, hc)
	paymentGW := gateway.NewPaymentClient(cfg.Gateways.PaymentURL, logger, hc)
	ledgerGW := gateway.NewPointLedgerClient(cfg.Gateways.PointLedgerURL, cfg.Gateways.PointLedgerToken, logger, hc)
	voucherGW := gateway.NewVoucherClient(cfg.Gateways.VoucherURL, logger, hc)
	publisher := queue.NewPublisher(cfg.RabbitMQURL, logger)

	passports := passport.New(cfg.Passport, repository.NewPassportCounterRepo(rdb))

	deps := service.AuthorizeDeps{
		Logger:                logger,
		TransactionRepository: transactionRepo,
		ActionRepository:      actionRepo,
		Metrics:               m,
	}
	a := &App{
		Members:   repository.NewMemberRepo(db),
		Tokens:    repository.NewTokenRepo(db),
		Passports: passports,
		Publisher: publisher,
	}
	a.Transactions = service.NewTransactionService(service.TransactionServiceProperty{
		Logger:                logger,
		TransactionRepository: transactionRepo,
		ActionRepository:      actionRepo,
		TaskRepository:        taskRepo,
		SellerRepository:      sellerRepo,
		EventRepository:       eventRepo,
		OrderNumberRepository: repository.NewOrderNumberRepo(rdb),
		PassportVerifier:      passports,
		Metrics:               m,
		Config:                cfg.Transaction,
		MaxTries:              cfg.Tasks.MaxTries,
	})
	a.SeatReservations = service.NewSeatReservationService(service.SeatReservationServiceProperty{
		AuthorizeDeps:           deps,
		EventRepository:         eventRepo,
		OwnershipInfoRepository: ownershipRepo,
		SeatReservationGateway:  seatGW,
	})
	a.CreditCards = service.NewCreditCardService(service.CreditCardServiceProperty{
		AuthorizeDeps:    deps,
		SellerRepository: sellerRepo,
		PaymentGateway:   paymentGW,
	})
	a.Mvtk = service.NewMvtkService(deps)
	accounts, err := service.NewAccountService(service.AccountServiceProperty{
		AuthorizeDeps:           deps,
		SellerRepository:        sellerRepo,
		OwnershipInfoRepository: ownershipRepo,
		PointLedgerGateway:      ledgerGW,
		PointBackend:            cfg.Gateways.PointBackend,
	})
	if err != nil {
		return nil, err
	}
	a.Accounts = accounts
	a.ProgramMemberships = service.NewProgramMembershipService(service.ProgramMembershipServiceProperty{
		AuthorizeDeps:               deps,
		ProgramMembershipRepository: programRepo,
	})
	a.PointAwards = service.NewPointAwardService(service.PointAwardServiceProperty{
		AuthorizeDeps:           deps,
		OwnershipInfoRepository: ownershipRepo,
		PointLedgerGateway:      ledgerGW,
	})
	a.Memberships = service.NewMembershipService(service.MembershipServiceProperty{
		Logger:                      logger,
		LockRepository:              repository.NewLockRepo(rdb),
		TaskRepository:              taskRepo,
		OwnershipInfoRepository:     ownershipRepo,
		ProgramMembershipRepository: programRepo,
		TransactionService:          a.Transactions,
		ProgramMembershipService:    a.ProgramMemberships,
		CreditCardService:           a.CreditCards,
		MaxTries:                    cfg.Tasks.MaxTries,
	})
	a.Orders = service.NewOrderService(orderRepo)
	a.Tasks = service.NewTaskService(service.TaskServiceProperty{
		Logger:         logger,
		TaskRepository: taskRepo,
		Publisher:      publisher,
		Metrics:        m,
	})
	service.NewTaskHandlers(service.TaskHandlersProperty{
		Logger:                  logger,
		TransactionRepository:   transactionRepo,
		ActionRepository:        actionRepo,
		TaskRepository:          taskRepo,
		SellerRepository:        sellerRepo,
		OrderRepository:         orderRepo,
		OwnershipInfoRepository: ownershipRepo,
		SeatReservationGateway:  seatGW,
		PaymentGateway:          paymentGW,
		PointLedgerGateway:      ledgerGW,
		VoucherGateway:          voucherGW,
		Publisher:               publisher,
		MembershipService:       a.Memberships,
		MaxTries:                cfg.Tasks.MaxTries,
	}).Register(a.Tasks)
	return a, nil
}
