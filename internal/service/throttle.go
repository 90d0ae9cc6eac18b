package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/cache"
	"kapacity/api/internal/models"
)

var (
	errTooManyAttempts = apperr.New(apperr.KindTooManyRequests, "Too many attempts, request a new code")
	errCooldown        = apperr.New(apperr.KindTooManyRequests, "Please wait before requesting another code")
)

// Throttle counts code guesses per ledger key and spaces out code sends per
// destination. Redis failures are logged and let the request through.
type Throttle struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
	cooldown    time.Duration
	log         zerolog.Logger
}

// NewThrottle allows maxAttempts guesses per window. Zero disables the
// corresponding limit.
func NewThrottle(client redis.Cmdable, maxAttempts int, window, cooldown time.Duration, log zerolog.Logger) *Throttle {
	return &Throttle{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		cooldown:    cooldown,
		log:         log,
	}
}

func attemptsKey(key models.OTPKey) string {
	return cache.Key("otp", "attempts", string(key.OwnerKind), string(key.Purpose), key.OwnerRef)
}

func cooldownKey(purpose models.OTPPurpose, destination string) string {
	return cache.Key("otp", "cooldown", string(purpose), destination)
}

func (t *Throttle) Attempt(ctx context.Context, key models.OTPKey) error {
	if t.maxAttempts <= 0 {
		return nil
	}
	k := attemptsKey(key)
	n, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		t.log.Warn().Err(err).Msg("attempt counter unavailable")
		return nil
	}
	if n == 1 && t.window > 0 {
		if err := t.client.Expire(ctx, k, t.window).Err(); err != nil {
			t.log.Warn().Err(err).Msg("attempt counter expiry failed")
		}
	}
	if n > int64(t.maxAttempts) {
		return errTooManyAttempts
	}
	return nil
}

func (t *Throttle) ResetAttempts(ctx context.Context, key models.OTPKey) {
	if t.maxAttempts <= 0 {
		return
	}
	if err := t.client.Del(ctx, attemptsKey(key)).Err(); err != nil {
		t.log.Warn().Err(err).Msg("attempt counter reset failed")
	}
}

func (t *Throttle) Cooldown(ctx context.Context, purpose models.OTPPurpose, destination string) error {
	if t.cooldown <= 0 {
		return nil
	}
	ok, err := t.client.SetNX(ctx, cooldownKey(purpose, destination), 1, t.cooldown).Result()
	if err != nil {
		t.log.Warn().Err(err).Msg("send cooldown unavailable")
		return nil
	}
	if !ok {
		return errCooldown
	}
	return nil
}

func (t *Throttle) ReleaseCooldown(ctx context.Context, purpose models.OTPPurpose, destination string) {
	if t.cooldown <= 0 {
		return
	}
	if err := t.client.Del(ctx, cooldownKey(purpose, destination)).Err(); err != nil {
		t.log.Warn().Err(err).Msg("send cooldown release failed")
	}
}
