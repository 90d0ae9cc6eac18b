package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"kapacity/api/internal/models"
)

type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) Increment(ctx context.Context, kind models.AccountKind, delta int64) error {
	const query = `
		INSERT INTO account_stats (kind, total, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (kind)
		DO UPDATE SET total = account_stats.total + EXCLUDED.total, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, kind, delta)
	return err
}

func (r *StatsRepository) List(ctx context.Context) ([]models.AccountStat, error) {
	rows, err := r.pool.Query(ctx, `SELECT kind, total, updated_at FROM account_stats ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.AccountStat{}
	for rows.Next() {
		var s models.AccountStat
		if err := rows.Scan(&s.Kind, &s.Total, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
