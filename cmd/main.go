package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"openmates/payhub/internal/config"
	"openmates/payhub/internal/handler"
	"openmates/payhub/internal/model"
	"openmates/payhub/internal/payment"
	"openmates/payhub/internal/repository"
	"openmates/payhub/internal/service"
	jwtpkg "openmates/payhub/pkg/jwt"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		stateStore = repository.NewRedisStateStore(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize repositories
	userRepo := repository.NewPGUserRepository(db)
	identityRepo := repository.NewPGIdentityRepository(db)
	orderRepo := repository.NewPGOrderRepository(db)

	// 7. Initialize JWT manager
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.SigningKey,
		cfg.JWT.Issuer,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.IDTokenTTL,
	)

	// 8. Initialize services
	var mailSender service.MailSender
	if cfg.SMTP.Host != "" {
		mailSender, err = service.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.Fatal("failed to init smtp sender", zap.Error(err))
		}
	} else if cfg.TwoFA.Enabled {
		logger.Warn("2fa enabled without smtp configured, codes will not be delivered")
	}

	authService := service.NewAuthService(
		userRepo, identityRepo, stateStore,
		jwtManager, mailSender, cfg.TwoFA,
	)
	identityService := service.NewIdentityService(identityRepo, userRepo)

	// WebAuthn service
	var webAuthnService service.WebAuthnService
	if cfg.WebAuthn.RPID != "" {
		webAuthnService, err = service.NewWebAuthnService(cfg.WebAuthn, userRepo, identityRepo, stateStore, authService)
		if err != nil {
			logger.Fatal("failed to init webauthn service", zap.Error(err))
		}
		logger.Info("WebAuthn service initialized", zap.String("rp_id", cfg.WebAuthn.RPID))
	}

	// Payment provider client + order-status poller
	providerClient := payment.NewHTTPClient(
		cfg.Payment.ProviderBaseURL,
		cfg.Payment.APIKey,
		cfg.Payment.RequestTimeout,
	)
	poller := payment.NewPoller(providerClient, cfg.Payment.PollInterval, cfg.Payment.PollTimeout, logger)
	paymentService := service.NewPaymentService(providerClient, poller, orderRepo, stateStore, logger)
	logger.Info("payment provider configured", zap.String("base_url", cfg.Payment.ProviderBaseURL))

	// 9. Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	identityHandler := handler.NewIdentityHandler(identityService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	var webAuthnHandler *handler.WebAuthnHandler
	if webAuthnService != nil {
		webAuthnHandler = handler.NewWebAuthnHandler(webAuthnService)
	}

	// 10. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, authHandler, identityHandler, webAuthnHandler, paymentHandler)

	// 11. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 12. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	// Stop live poll sessions so no timers outlive the server.
	paymentService.Close()

	logger.Info("server exited gracefully")
}
