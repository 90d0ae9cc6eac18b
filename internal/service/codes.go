package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/ids"
	"kapacity/api/internal/models"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/security"
)

// codeIssuer is shared by every flow that sends a one-time code.
type codeIssuer struct {
	Deps
	now     func() time.Time
	newCode func() (string, error)
	newID   func() string
}

func newCodeIssuer(deps Deps) codeIssuer {
	if deps.CodeTTL <= 0 {
		deps.CodeTTL = 15 * time.Minute
	}
	if deps.Passwords == nil {
		deps.Passwords = security.NewPasswordHasher(security.DefaultParams)
	}
	return codeIssuer{
		Deps:    deps,
		now:     time.Now,
		newCode: security.GenerateCode,
		newID:   ids.New,
	}
}

func (c *codeIssuer) hash(key models.OTPKey, code string) string {
	return c.Codes.Hash(key.OwnerRef, string(key.OwnerKind), string(key.Purpose), code)
}

// issue replaces any live code for key with a fresh one and sends it. When
// delivery fails the record is removed again.
func (c *codeIssuer) issue(ctx context.Context, key models.OTPKey, to notify.Recipient, requested models.Channel, payload []byte) (PendingCode, error) {
	return c.send(ctx, key, to, requested, payload, nil)
}

// reissue sends a fresh code in place of prev. When delivery fails prev is
// put back, so the code sent earlier keeps working.
func (c *codeIssuer) reissue(ctx context.Context, prev models.OTPRecord, to notify.Recipient, requested models.Channel) (PendingCode, error) {
	return c.send(ctx, prev.OTPKey, to, requested, prev.Payload, &prev)
}

func (c *codeIssuer) send(ctx context.Context, key models.OTPKey, to notify.Recipient, requested models.Channel, payload []byte, prev *models.OTPRecord) (PendingCode, error) {
	channel, destination, err := c.Notifier.Resolve(requested, to)
	if err != nil {
		return PendingCode{}, apperr.Wrap(apperr.KindBadRequest, "No address to send the code to", err)
	}
	if err := c.Limiter.Cooldown(ctx, key.Purpose, destination); err != nil {
		return PendingCode{}, err
	}

	code, err := c.newCode()
	if err != nil {
		c.Limiter.ReleaseCooldown(ctx, key.Purpose, destination)
		return PendingCode{}, apperr.Internal(err)
	}

	expiresAt := c.now().Add(c.CodeTTL)
	rec := models.OTPRecord{
		OTPKey:      key,
		CodeHash:    c.hash(key, code),
		Channel:     channel,
		Destination: destination,
		Payload:     payload,
		ExpiresAt:   expiresAt,
	}
	if err := c.Ledger.Put(ctx, rec); err != nil {
		c.Limiter.ReleaseCooldown(ctx, key.Purpose, destination)
		return PendingCode{}, apperr.Internal(err)
	}

	if err := c.Notifier.Deliver(ctx, channel, destination, notify.CodeMessage(key.Purpose, code, c.CodeTTL)); err != nil {
		c.rollback(ctx, key, prev)
		c.Limiter.ReleaseCooldown(ctx, key.Purpose, destination)
		return PendingCode{}, apperr.Internal(err)
	}
	c.Limiter.ResetAttempts(ctx, key)

	c.logKey(c.Log.Info(), key).Str("channel", string(channel)).Msg("code sent")
	return PendingCode{
		OwnerReference: key.OwnerRef,
		OwnerKind:      key.OwnerKind,
		Channel:        channel,
		ExpiresAt:      expiresAt,
	}, nil
}

func (c *codeIssuer) rollback(ctx context.Context, key models.OTPKey, prev *models.OTPRecord) {
	if prev != nil {
		if err := c.Ledger.Put(ctx, *prev); err != nil {
			c.logKey(c.Log.Error(), key).Err(err).Msg("restore previous code failed")
		}
		return
	}
	if err := c.Ledger.Delete(ctx, key); err != nil {
		c.logKey(c.Log.Error(), key).Err(err).Msg("remove undelivered code failed")
	}
}

// spent maps a failed consumption onto the caller-visible error. A miss of
// any kind reads as an invalid or expired code.
func (c *codeIssuer) spent(key models.OTPKey, err error) error {
	switch {
	case errors.Is(err, repository.ErrCodeNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, errNoStagedSignup):
		return apperr.ErrInvalidOrExpiredCode
	case errors.Is(err, repository.ErrDuplicateAccount):
		return apperr.New(apperr.KindConflict, "Account with this email or phone number already exists")
	}
	c.logKey(c.Log.Error(), key).Err(err).Msg("consume code failed")
	return apperr.Internal(err)
}

func (c *codeIssuer) logKey(e *zerolog.Event, key models.OTPKey) *zerolog.Event {
	return e.Str("owner_ref", key.OwnerRef).Str("kind", string(key.OwnerKind)).Str("purpose", string(key.Purpose))
}

func selfServiceKind(kind models.AccountKind) error {
	if !kind.SelfService() {
		return apperr.New(apperr.KindBadRequest, "Invalid account kind")
	}
	return nil
}

func codeKey(ownerRef string, kind models.AccountKind, purpose models.OTPPurpose, code string) (models.OTPKey, error) {
	if err := selfServiceKind(kind); err != nil {
		return models.OTPKey{}, err
	}
	if ownerRef == "" || code == "" {
		return models.OTPKey{}, apperr.New(apperr.KindBadRequest, "ownerReference and code are required")
	}
	return models.OTPKey{OwnerRef: ownerRef, OwnerKind: kind, Purpose: purpose}, nil
}
