package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kapacity/api/internal/events"
	"kapacity/api/internal/models"
)

type CodeSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type StatsCounter interface {
	Increment(ctx context.Context, kind models.AccountKind, delta int64) error
}

type Processor struct {
	codes  CodeSweeper
	stats  StatsCounter
	logger zerolog.Logger
	now    func() time.Time
}

func NewProcessor(codes CodeSweeper, stats StatsCounter, logger zerolog.Logger) *Processor {
	return &Processor{
		codes:  codes,
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var task events.Task
	if err := decodePayload(msg.Values, &task); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case events.TypeOTPSweep:
		_, err := p.SweepCodes(ctx)
		return err
	case events.TypeAccountCreated:
		return p.handleAccountCreated(ctx, task)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *events.Task) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// SweepCodes removes expired ledger records.
func (p *Processor) SweepCodes(ctx context.Context) (int64, error) {
	removed, err := p.codes.DeleteExpired(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired codes: %w", err)
	}
	if removed > 0 {
		p.logger.Info().Int64("removed", removed).Msg("expired codes swept")
	}
	return removed, nil
}

func (p *Processor) handleAccountCreated(ctx context.Context, task events.Task) error {
	kind := models.AccountKind(task.Kind)
	if !kind.Valid() {
		p.logger.Warn().Str("kind", task.Kind).Str("account_id", task.AccountID).Msg("account_created with unknown kind")
		return nil
	}
	if err := p.stats.Increment(ctx, kind, 1); err != nil {
		return fmt.Errorf("increment %s counter: %w", kind, err)
	}
	p.logger.Debug().Str("kind", task.Kind).Str("account_id", task.AccountID).Msg("account counted")
	return nil
}
