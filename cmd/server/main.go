package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/cinema-ticket-order/internal/app"
	"github.com/iliyamo/cinema-ticket-order/internal/applogger"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/database"
	"github.com/iliyamo/cinema-ticket-order/internal/handler"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
	"github.com/iliyamo/cinema-ticket-order/internal/middleware"
	"github.com/iliyamo/cinema-ticket-order/internal/router"
)

func main() {
	cfg := config.Load()
	logger := applogger.New(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		logger.WithError(err).Fatal("mysql: open failed")
	}
	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		// the limiter and cache pass through; order numbers fail until Redis is back
		logger.WithError(err).Error("redis: ping failed")
	}

	m := metrics.New("api", prometheus.DefaultRegisterer)
	a, err := app.New(cfg, logger, db, rdb, m)
	if err != nil {
		logger.WithError(err).Fatal("wiring failed")
	}

	validate := handler.NewValidator()
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, logger)
	cache := middleware.NewRedisCache(cfg.Cache, rdb, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(logger, m, http.StatusInternalServerError))

	router.RegisterRoutes(e, handler.Ready(map[string]handler.Pinger{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}), metrics.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, a.Members, a.Tokens, validate, logger), cfg.JWTSecret, limit)
	router.RegisterPlaceOrder(e, &handler.PlaceOrderHandler{
		ProgramName:        cfg.ProgramName,
		Validate:           validate,
		Logger:             logger,
		Passports:          a.Passports,
		Transactions:       a.Transactions,
		SeatReservations:   a.SeatReservations,
		CreditCards:        a.CreditCards,
		Mvtk:               a.Mvtk,
		Accounts:           a.Accounts,
		ProgramMemberships: a.ProgramMemberships,
		PointAwards:        a.PointAwards,
	}, cfg.JWTSecret, limit)
	router.RegisterCatalog(e, &handler.CatalogHandler{
		ProgramName:      cfg.ProgramName,
		Logger:           logger,
		SeatReservations: a.SeatReservations,
	}, cfg.JWTSecret, cache)
	router.RegisterOrders(e, &handler.OrderHandler{
		Validate:    validate,
		Logger:      logger,
		Orders:      a.Orders,
		Memberships: a.Memberships,
	}, cfg.JWTSecret, limit)

	go func() {
		logger.WithField("port", cfg.Port).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	<-sigterm

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
	_ = rdb.Close()
	_ = db.Close()
}
