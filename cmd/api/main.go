package main

import (
	"context"
	"os/signal"
	"syscall"

	"kapacity/api/internal/cache"
	"kapacity/api/internal/config"
	"kapacity/api/internal/database"
	"kapacity/api/internal/events"
	"kapacity/api/internal/handlers"
	"kapacity/api/internal/jobs"
	"kapacity/api/internal/log"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/security"
	"kapacity/api/internal/server"
	"kapacity/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	accounts := repository.NewAccountRepository(dbPool)
	ledger := repository.NewLedgerStore(dbPool)
	stats := repository.NewStatsRepository(dbPool)
	publisher := events.NewPublisher(redisClient, cfg.Worker.Stream)

	tokens := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL)
	passwords := security.NewPasswordHasher(security.DefaultParams)

	deps := service.Deps{
		Accounts: accounts,
		Ledger:   ledger,
		Notifier: notify.NewFromConfig(cfg.Notify, cfg.IsProduction(), logger),
		Events:   publisher,
		Limiter: service.NewThrottle(redisClient,
			cfg.Security.OTPMaxAttempts,
			cfg.Security.OTPTTL,
			cfg.Security.OTPResendCooldown,
			logger),
		Tokens:    tokens,
		Codes:     security.NewCodeHasher(cfg.Security.OTPSecret),
		Passwords: passwords,
		CodeTTL:   cfg.Security.OTPTTL,
		Region:    cfg.Notify.DefaultRegion,
		Log:       logger,
	}

	services := handlers.Services{
		Signup:     service.NewSignupService(deps),
		Passwords:  service.NewPasswordResetService(deps),
		Auth:       service.NewAuthService(accounts, tokens, passwords, cfg.Notify.DefaultRegion, logger),
		Moderation: service.NewModerationService(accounts, stats, passwords, cfg.Notify.DefaultRegion, logger),
	}
	checks := map[string]handlers.HealthCheck{
		"postgres": dbPool.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, services, tokens, accounts, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(publisher, cfg.Jobs.OTPSweepSpec, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := httpServer.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	scheduler.Stop()
	dbPool.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}
	logger.Info().Msg("server exited cleanly")
}
