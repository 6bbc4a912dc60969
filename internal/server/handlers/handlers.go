package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authservice "github.com/Beep206/CyberVPN-sub003/internal/application/auth"
	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/walletservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/withdrawalservice"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/webhookrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/server/middleware"
	"github.com/Beep206/CyberVPN-sub003/internal/server/websocket"
	"github.com/Beep206/CyberVPN-sub003/internal/taskqueue"
	"github.com/Beep206/CyberVPN-sub003/internal/tasks"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

type Handlers struct {
	WalletSvc     walletservice.IWalletService
	WithdrawalSvc withdrawalservice.IWithdrawalService
	PaymentSvc    paymentservice.IPaymentService
	AuthSvc       authservice.IAuthService
	WebhookRepo   webhookrepo.IWebhookRepository
	Broker        *taskqueue.Broker
	WsHub         *websocket.WsHub
	Logger        zerolog.Logger
	Config        *config.Config
}

func New(
	walletSvc walletservice.IWalletService,
	withdrawalSvc withdrawalservice.IWithdrawalService,
	paymentSvc paymentservice.IPaymentService,
	authSvc authservice.IAuthService,
	webhookRepo webhookrepo.IWebhookRepository,
	broker *taskqueue.Broker,
	wsHub *websocket.WsHub,
	logger zerolog.Logger,
	config *config.Config,
) *Handlers {
	return &Handlers{
		WalletSvc:     walletSvc,
		WithdrawalSvc: withdrawalSvc,
		PaymentSvc:    paymentSvc,
		AuthSvc:       authSvc,
		WebhookRepo:   webhookRepo,
		Broker:        broker,
		WsHub:         wsHub,
		Logger:        logger,
		Config:        config,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.AuthSvc, h.Logger)
	mw.SetupMiddleware(router)

	producer := tasks.NewProducer(h.Broker)
	walletHandler := NewWalletHandler(h.WalletSvc, h.Logger)
	withdrawalHandler := NewWithdrawalHandler(h.WithdrawalSvc, h.Config, h.Logger)
	paymentHandler := NewPaymentHandler(h.PaymentSvc, producer, h.Logger)
	webhookHandler := NewWebhookHandler(h.WebhookRepo, producer, h.Config, h.Logger)
	wsHandler := NewWebSocketHandler(h.WsHub, h.Logger)
	healthHandler := NewHealthHandler()

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint for balance and withdrawal events
	router.GET("/events", mw.AuthMiddleware(), wsHandler.HandleConnection)

	// Gateway callbacks carry their own HMAC signatures
	router.POST("/webhooks/:gateway", webhookHandler.HandleGatewayWebhook)

	v1 := router.Group("/v1")
	{
		wallet := v1.Group("/wallet", mw.AuthMiddleware())
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/transactions", walletHandler.GetTransactions)
		}

		withdrawals := v1.Group("/withdrawals", mw.AuthMiddleware())
		{
			withdrawals.POST("/", withdrawalHandler.Create)
			withdrawals.GET("/", withdrawalHandler.ListByUser)
			withdrawals.GET("/:id", withdrawalHandler.Get)
		}

		// Service-to-service API for the shop backend
		internalAPI := v1.Group("/internal", mw.APIKeyMiddleware())
		{
			internalAPI.GET("/payments/:id", paymentHandler.Get)
			internalAPI.POST("/payments/:id/complete", paymentHandler.Complete)
		}

		admin := v1.Group("/admin", mw.AuthMiddleware(), mw.AdminMiddleware())
		{
			admin.POST("/wallet/:user_id/credit", walletHandler.AdminCredit)
			admin.GET("/withdrawals/pending", withdrawalHandler.ListPending)
			admin.PUT("/withdrawals/:id/approve", withdrawalHandler.Approve)
			admin.PUT("/withdrawals/:id/reject", withdrawalHandler.Reject)
		}
	}
}
