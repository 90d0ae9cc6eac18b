package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"kapacity/api/internal/config"
	"kapacity/api/internal/database"
	"kapacity/api/internal/log"
	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/security"
	"kapacity/api/internal/service"
	"kapacity/api/internal/tasks"
)

// Backend is what the operator commands act on.
type Backend interface {
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int64, error)
	CreateStaff(ctx context.Context, in service.StaffInput) (*models.Staff, error)
	SweepCodes(ctx context.Context) (int64, error)
	Close()
}

// Opener connects a Backend on first use so that --help never dials.
type Opener func(ctx context.Context) (Backend, error)

type postgresBackend struct {
	pool       *pgxpool.Pool
	moderation *service.ModerationService
	processor  *tasks.Processor
}

func openPostgres(ctx context.Context) (Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("component", "kapacityctl").Logger()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newPostgresBackend(pool, cfg, logger), nil
}

func newPostgresBackend(pool *pgxpool.Pool, cfg *config.AppConfig, logger zerolog.Logger) *postgresBackend {
	accounts := repository.NewAccountRepository(pool)
	stats := repository.NewStatsRepository(pool)
	passwords := security.NewPasswordHasher(security.DefaultParams)

	return &postgresBackend{
		pool:       pool,
		moderation: service.NewModerationService(accounts, stats, passwords, cfg.Notify.DefaultRegion, logger),
		processor:  tasks.NewProcessor(repository.NewOTPRepository(pool), stats, logger),
	}
}

func (b *postgresBackend) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, b.pool)
}

func (b *postgresBackend) MigrationVersion(ctx context.Context) (int64, error) {
	return database.MigrationVersion(ctx, b.pool)
}

func (b *postgresBackend) CreateStaff(ctx context.Context, in service.StaffInput) (*models.Staff, error) {
	return b.moderation.CreateStaff(ctx, in)
}

func (b *postgresBackend) SweepCodes(ctx context.Context) (int64, error) {
	return b.processor.SweepCodes(ctx)
}

func (b *postgresBackend) Close() {
	b.pool.Close()
}
