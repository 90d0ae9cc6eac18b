package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/ids"
	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/security"
	"kapacity/api/internal/validate"
)

type ModerationService struct {
	accounts  AccountStore
	stats     StatsReader
	passwords *security.PasswordHasher
	region    string
	log       zerolog.Logger
}

func NewModerationService(accounts AccountStore, stats StatsReader, passwords *security.PasswordHasher, region string, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		accounts:  accounts,
		stats:     stats,
		passwords: passwords,
		region:    region,
		log:       log,
	}
}

func (s *ModerationService) Block(ctx context.Context, kind models.AccountKind, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errReasonRequired
	}
	return s.apply(ctx, kind, id, "block", models.FlagPatch{IsBlocked: ptr(true), BlockReason: &reason})
}

func (s *ModerationService) Unblock(ctx context.Context, kind models.AccountKind, id string) error {
	return s.apply(ctx, kind, id, "unblock", models.FlagPatch{IsBlocked: ptr(false), BlockReason: ptr("")})
}

func (s *ModerationService) Ban(ctx context.Context, kind models.AccountKind, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errReasonRequired
	}
	return s.apply(ctx, kind, id, "ban", models.FlagPatch{IsBanned: ptr(true), BanReason: &reason})
}

func (s *ModerationService) Unban(ctx context.Context, kind models.AccountKind, id string) error {
	return s.apply(ctx, kind, id, "unban", models.FlagPatch{IsBanned: ptr(false), BanReason: ptr("")})
}

// Delete is the soft delete: the row stays and the resolver rejects it.
func (s *ModerationService) Delete(ctx context.Context, kind models.AccountKind, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errReasonRequired
	}
	return s.apply(ctx, kind, id, "delete", models.FlagPatch{IsDeleted: ptr(true), DeleteReason: &reason})
}

// Purge removes the account row for good.
func (s *ModerationService) Purge(ctx context.Context, kind models.AccountKind, id string) error {
	if !kind.Valid() {
		return errInvalidKind
	}
	if err := s.accounts.Purge(ctx, kind, id); err != nil {
		return s.translate(err)
	}
	s.log.Info().Str("kind", string(kind)).Str("account_id", id).Msg("account purged")
	return nil
}

func (s *ModerationService) Stats(ctx context.Context) ([]models.AccountStat, error) {
	stats, err := s.stats.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}

type StaffInput struct {
	FirstName   string
	LastName    string
	Position    string
	Email       string
	PhoneNumber string
	Password    string
}

// CreateStaff provisions a verified staff account. Staff cannot sign up.
func (s *ModerationService) CreateStaff(ctx context.Context, in StaffInput) (*models.Staff, error) {
	if err := validate.Password(in.Password); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	if err := required(map[string]string{
		"firstName": strings.TrimSpace(in.FirstName),
		"lastName":  strings.TrimSpace(in.LastName),
	}); err != nil {
		return nil, err
	}

	staff := &models.Staff{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Position:  strings.TrimSpace(in.Position),
	}
	if in.Email == "" && in.PhoneNumber == "" {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Email or phone number is required", validate.ErrMissingIdentity)
	}
	if in.Email != "" {
		email, err := validate.NormalizeEmail(in.Email)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, "Invalid email address", err)
		}
		staff.Email = email
	}
	if in.PhoneNumber != "" {
		phone, err := validate.NormalizePhone(in.PhoneNumber, s.region)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, "Invalid phone number", err)
		}
		staff.PhoneNumber = phone
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	staff.ID = ids.New()
	staff.PasswordHash = hash
	staff.IsVerified = true
	now := time.Now()
	staff.CreatedAt, staff.UpdatedAt = now, now

	if err := s.accounts.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			return nil, apperr.New(apperr.KindConflict, "Account with this email or phone number already exists")
		}
		return nil, apperr.Internal(err)
	}
	s.log.Info().Str("account_id", staff.ID).Msg("staff account created")
	return staff, nil
}

var (
	errReasonRequired = apperr.New(apperr.KindBadRequest, "reason is required")
	errInvalidKind    = apperr.New(apperr.KindBadRequest, "Invalid account kind")
)

func (s *ModerationService) apply(ctx context.Context, kind models.AccountKind, id, action string, patch models.FlagPatch) error {
	if !kind.Valid() {
		return errInvalidKind
	}
	if err := s.accounts.UpdateFlags(ctx, kind, id, patch); err != nil {
		return s.translate(err)
	}
	s.log.Info().Str("kind", string(kind)).Str("account_id", id).Str("action", action).Msg("account moderated")
	return nil
}

func (s *ModerationService) translate(err error) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return apperr.New(apperr.KindNotFound, "Account not found")
	}
	s.log.Error().Err(err).Msg("moderation failed")
	return apperr.Internal(err)
}

func ptr[T any](v T) *T {
	return &v
}
