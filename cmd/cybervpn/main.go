package main

import (
	"context"
	"os"

	authservice "github.com/Beep206/CyberVPN-sub003/internal/application/auth"
	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/walletservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/withdrawalservice"
	"github.com/Beep206/CyberVPN-sub003/internal/infrastructure/database"
	"github.com/Beep206/CyberVPN-sub003/internal/infrastructure/redisclient"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/paymentrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/webhookrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/withdrawalrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/server"
	"github.com/Beep206/CyberVPN-sub003/internal/server/websocket"
	"github.com/Beep206/CyberVPN-sub003/internal/taskqueue"
	"github.com/Beep206/CyberVPN-sub003/internal/tasks"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
	"github.com/Beep206/CyberVPN-sub003/pkg/logger"
)

func main() {
	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	rdb, err := redisclient.New(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	walletRepo := walletrepo.New(db.Pool, logger)
	paymentRepo := paymentrepo.New(db.Pool, logger)
	withdrawalRepo := withdrawalrepo.New(db.Pool, logger)
	webhookRepo := webhookrepo.New(db.Pool, logger)

	wsHub := websocket.NewWsHub(logger)
	go wsHub.Run()

	walletSvc := walletservice.New(walletRepo, wsHub, cfg.Wallet.Currency, logger)
	paymentSvc := paymentservice.New(paymentRepo, walletRepo, cfg.Referral.CommissionPercent, cfg.Wallet.Currency, logger)
	withdrawalSvc := withdrawalservice.New(withdrawalRepo, walletRepo, wsHub, cfg.Withdrawal, cfg.Wallet.Currency, logger)
	authSvc := authservice.NewAuthService(cfg, logger)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "cybervpn-worker"
	}

	broker := taskqueue.NewBroker(rdb, cfg.Queue, hostname, logger)
	registry := taskqueue.NewPolicyRegistry(cfg.Queue.RetryPolicies)
	broker.SetErrorHook(taskqueue.NewRetryMiddleware(registry, broker, logger))

	reconciler := tasks.NewReconciler(walletRepo, paymentRepo, webhookRepo, paymentSvc, cfg.Reconcile, logger)
	tasks.Register(broker, reconciler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := broker.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Task broker failed to start")
		}
	}()

	scheduler := tasks.NewScheduler(broker, cfg.Reconcile, logger)
	go scheduler.Run(ctx)

	srv := server.New(cfg, walletSvc, withdrawalSvc, paymentSvc, authSvc, webhookRepo, broker, logger, wsHub)
	srv.Start()
}
