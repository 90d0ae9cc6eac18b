package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/security"
	"kapacity/api/internal/validate"
)

var errInvalidCredentials = apperr.New(apperr.KindInvalidCredential, "Invalid credentials")

type AuthService struct {
	accounts  AccountStore
	tokens    *security.TokenIssuer
	passwords *security.PasswordHasher
	region    string
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	accounts AccountStore,
	tokens *security.TokenIssuer,
	passwords *security.PasswordHasher,
	region string,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		region:    region,
		log:       log,
		now:       time.Now,
	}
}

// SignIn looks the identifier up in the table implied by role only.
func (s *AuthService) SignIn(ctx context.Context, role models.Role, identifier, password string) (Session, error) {
	kind, ok := models.KindForRole(role)
	if !ok {
		return Session{}, apperr.New(apperr.KindBadRequest, "Invalid role")
	}
	email, phone, err := validate.Identifier(identifier, s.region)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindBadRequest, "Invalid email or phone number", err)
	}
	if password == "" {
		return Session{}, apperr.New(apperr.KindBadRequest, "Password is required")
	}

	account, err := s.accounts.FindByEmailOrPhone(ctx, kind, email, phone)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.passwords.VerifyDummy(password)
			return Session{}, errInvalidCredentials
		}
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("sign-in lookup failed")
		return Session{}, apperr.Internal(err)
	}

	ok, err = s.passwords.Verify(password, account.Base().PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.AccountID()).Msg("stored password hash unreadable")
		return Session{}, errInvalidCredentials
	}
	if !ok {
		return Session{}, errInvalidCredentials
	}

	if err := CheckStanding(account); err != nil {
		return Session{}, err
	}
	if !account.Base().IsVerified {
		return Session{}, apperr.New(apperr.KindForbidden, "Account not verified")
	}

	now := s.now()
	if err := s.accounts.SetPresence(ctx, kind, account.AccountID(), true, now); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.AccountID()).Msg("mark online failed")
	} else {
		account.Base().IsOnline = true
		account.Base().LastSeenAt = &now
	}

	session, err := issueSession(s.tokens, account)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", account.AccountID()).Msg("sign session token failed")
		return Session{}, apperr.Internal(err)
	}
	return session, nil
}

// SignOut marks the caller offline. Tokens are stateless and stay valid
// until they expire.
func (s *AuthService) SignOut(ctx context.Context, principal models.Principal) error {
	if err := s.accounts.SetPresence(ctx, principal.AccountKind, principal.ID, false, s.now()); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperr.New(apperr.KindNotFound, "Account not found")
		}
		return apperr.Internal(err)
	}
	return nil
}
