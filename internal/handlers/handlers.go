package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kapacity/api/internal/config"
	"kapacity/api/internal/middleware"
	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
	"kapacity/api/internal/service"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Services struct {
	Signup     *service.SignupService
	Passwords  *service.PasswordResetService
	Auth       *service.AuthService
	Moderation *service.ModerationService
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	errs     response.Writer
	svc      Services
	resolver gin.HandlerFunc
	checks   map[string]HealthCheck
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	svc Services,
	tokens middleware.TokenParser,
	accounts middleware.AccountFinder,
	checks map[string]HealthCheck,
) HandlerSet {
	errs := response.NewWriter(log, cfg.Security.ExposeErrors)
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		errs:     errs,
		svc:      svc,
		resolver: middleware.Resolver(tokens, accounts, errs),
		checks:   checks,
	}
}

// Register mounts every route. The role and kind segments share one
// wildcard name because gin keys wildcards by position.
func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/:kind/signup", h.BeginSignup)
		auth.POST("/:kind/signup/verify", h.CompleteSignup)
		auth.POST("/:kind/signup/resend", h.ResendCode)
		auth.POST("/:kind/activation", h.RequestActivation)
		auth.POST("/:kind/activation/verify", h.CompleteActivation)
		auth.POST("/:kind/password/forgot", h.ForgotPassword)
		auth.POST("/:kind/password/reset", h.ResetPassword)
		auth.POST("/:kind/signin", h.SignIn)

		auth.POST("/signout", h.resolver, h.SignOut)
		v1.GET("/me", h.resolver, h.Me)
	}

	admin := v1.Group("/admin")
	admin.Use(
		h.resolver,
		middleware.RequireRoles(models.RoleAdmin),
	)
	admin.POST("/accounts/:kind/:id/block", h.Block)
	admin.POST("/accounts/:kind/:id/unblock", h.Unblock)
	admin.POST("/accounts/:kind/:id/ban", h.Ban)
	admin.POST("/accounts/:kind/:id/unban", h.Unban)
	admin.DELETE("/accounts/:kind/:id", h.DeleteAccount)
	admin.GET("/stats", h.Stats)
}
