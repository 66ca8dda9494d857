package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"openmates/payhub/internal/config"
	"openmates/payhub/internal/handler/middleware"
	jwtpkg "openmates/payhub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	authHandler *AuthHandler,
	identityHandler *IdentityHandler,
	webAuthnHandler *WebAuthnHandler,
	paymentHandler *PaymentHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public auth routes
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/2fa/verify", authHandler.VerifyTwoFactor)
		auth.POST("/refresh", authHandler.Refresh)

		// Passkey login (public)
		if webAuthnHandler != nil {
			auth.POST("/passkey/login/begin", webAuthnHandler.BeginLogin)
			auth.POST("/passkey/login/finish", webAuthnHandler.FinishLogin)
		}
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		// Identity management
		protected.POST("/identities/bind", identityHandler.Bind)
		protected.DELETE("/identities/:id", identityHandler.Unbind)
		protected.GET("/identities", identityHandler.List)

		// Passkey registration (requires auth)
		if webAuthnHandler != nil {
			protected.POST("/auth/passkey/register/begin", webAuthnHandler.BeginRegistration)
			protected.POST("/auth/passkey/register/finish", webAuthnHandler.FinishRegistration)
		}

		// Payment orders
		protected.POST("/payments/orders", paymentHandler.Create)
		protected.GET("/payments/orders", paymentHandler.List)
		protected.GET("/payments/orders/:id", paymentHandler.Get)
		protected.POST("/payments/orders/:id/cancel", paymentHandler.Cancel)
	}

	return r
}
