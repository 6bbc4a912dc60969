package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authservice "github.com/Beep206/CyberVPN-sub003/internal/application/auth"
	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/walletservice"
	"github.com/Beep206/CyberVPN-sub003/internal/application/withdrawalservice"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/webhookrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/server/handlers"
	"github.com/Beep206/CyberVPN-sub003/internal/server/websocket"
	"github.com/Beep206/CyberVPN-sub003/internal/taskqueue"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

type Server struct {
	WalletSvc     walletservice.IWalletService
	WithdrawalSvc withdrawalservice.IWithdrawalService
	PaymentSvc    paymentservice.IPaymentService
	AuthSvc       authservice.IAuthService
	WebhookRepo   webhookrepo.IWebhookRepository
	Broker        *taskqueue.Broker
	Cfg           *config.Config
	Logger        zerolog.Logger
	Router        *gin.Engine
	httpServer    *http.Server
	WsHub         *websocket.WsHub
}

func New(
	cfg *config.Config,
	walletSvc walletservice.IWalletService,
	withdrawalSvc withdrawalservice.IWithdrawalService,
	paymentSvc paymentservice.IPaymentService,
	authSvc authservice.IAuthService,
	webhookRepo webhookrepo.IWebhookRepository,
	broker *taskqueue.Broker,
	logger zerolog.Logger,
	wsHub *websocket.WsHub,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		Cfg:           cfg,
		WalletSvc:     walletSvc,
		WithdrawalSvc: withdrawalSvc,
		PaymentSvc:    paymentSvc,
		AuthSvc:       authSvc,
		WebhookRepo:   webhookRepo,
		Broker:        broker,
		Logger:        logger,
		Router:        router,
		WsHub:         wsHub,
	}
}

func (s *Server) SetupRouter() {
	handler := handlers.New(
		s.WalletSvc,
		s.WithdrawalSvc,
		s.PaymentSvc,
		s.AuthSvc,
		s.WebhookRepo,
		s.Broker,
		s.WsHub,
		s.Logger,
		s.Cfg,
	)
	handler.SetupHandlers(s.Router)
}

func (s *Server) Start() {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-stopChan
	s.Logger.Info().Msg("Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	s.Logger.Info().Msg("Server exited gracefully")
}
