package service

import (
	"context"
	"errors"
	"strings"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/validate"
)

type PasswordResetService struct {
	codeIssuer
}

func NewPasswordResetService(deps Deps) *PasswordResetService {
	return &PasswordResetService{codeIssuer: newCodeIssuer(deps)}
}

// RequestPasswordReset answers the same way whether or not the identifier
// belongs to an account. Unknown identifiers get a reference that no code
// will ever match. Cooldown, address and delivery failures on a real account
// are logged and never reach the caller.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, kind models.AccountKind, identifier string, channel models.Channel) (PendingCode, error) {
	if err := selfServiceKind(kind); err != nil {
		return PendingCode{}, err
	}
	email, phone, err := validate.Identifier(identifier, s.Region)
	if err != nil {
		return PendingCode{}, apperr.Wrap(apperr.KindBadRequest, "Invalid email or phone number", err)
	}

	account, err := s.Accounts.FindByEmailOrPhone(ctx, kind, email, phone)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return s.acknowledge(s.newID(), kind, channel, email), nil
	case err != nil:
		s.Log.Error().Err(err).Str("kind", string(kind)).Msg("reset lookup failed")
		return PendingCode{}, apperr.Internal(err)
	case account.Base().IsDeleted:
		return s.acknowledge(s.newID(), kind, channel, email), nil
	}

	key := models.OTPKey{OwnerRef: account.AccountID(), OwnerKind: kind, Purpose: models.OTPPurposeResetPassword}
	ack := s.acknowledge(key.OwnerRef, kind, channel, email)
	if _, err := s.issue(ctx, key, recipientOf(account), channel, nil); err != nil {
		s.logKey(s.Log.Warn(), key).Err(err).Msg("reset code not sent")
	}
	return ack, nil
}

// acknowledge builds the reply from the request alone so that it reads the
// same for every identifier.
func (s *PasswordResetService) acknowledge(ref string, kind models.AccountKind, channel models.Channel, email string) PendingCode {
	if !channel.Valid() {
		channel = models.ChannelEmail
	}
	if email == "" && channel == models.ChannelEmail {
		channel = models.ChannelSMS
	}
	return PendingCode{
		OwnerReference: ref,
		OwnerKind:      kind,
		Channel:        channel,
		ExpiresAt:      s.now().Add(s.CodeTTL),
	}
}

// ResetPassword spends a reset code and replaces the password.
func (s *PasswordResetService) ResetPassword(ctx context.Context, ownerRef string, kind models.AccountKind, code, newPassword string) error {
	code = strings.TrimSpace(code)
	key, err := codeKey(strings.TrimSpace(ownerRef), kind, models.OTPPurposeResetPassword, code)
	if err != nil {
		return err
	}
	if err := validate.Password(newPassword); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	if err := s.Limiter.Attempt(ctx, key); err != nil {
		return err
	}

	hash, err := s.Passwords.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.Ledger.ConsumeAndSetPassword(ctx, key, s.hash(key, code), s.now(), hash); err != nil {
		return s.spent(key, err)
	}
	s.Limiter.ResetAttempts(ctx, key)
	s.logKey(s.Log.Info(), key).Msg("password reset")
	return nil
}
