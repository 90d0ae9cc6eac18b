package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/validate"
)

var errNoStagedSignup = errors.New("record carries no staged signup")

type SignupInput struct {
	Kind         models.AccountKind
	Individual   *models.IndividualForm
	Organization *models.OrganizationForm
	Password     string
	Channel      models.Channel
}

// SignupService runs deferred signup: the form is staged in the code ledger
// and the account only exists once the code comes back.
type SignupService struct {
	codeIssuer
}

func NewSignupService(deps Deps) *SignupService {
	return &SignupService{codeIssuer: newCodeIssuer(deps)}
}

func (s *SignupService) BeginSignup(ctx context.Context, in SignupInput) (PendingCode, error) {
	if err := selfServiceKind(in.Kind); err != nil {
		return PendingCode{}, err
	}

	staged, err := s.stage(in)
	if err != nil {
		return PendingCode{}, err
	}
	email, phone := staged.contact()

	if err := s.ensureAvailable(ctx, in.Kind, email, phone); err != nil {
		return PendingCode{}, err
	}

	staged.PasswordHash, err = s.Passwords.Hash(in.Password)
	if err != nil {
		return PendingCode{}, apperr.Internal(err)
	}
	staged.StagedAt = s.now().UTC()

	payload, err := json.Marshal(staged.StagedSignup)
	if err != nil {
		return PendingCode{}, apperr.Internal(err)
	}

	key := models.OTPKey{
		OwnerRef:  s.newID(),
		OwnerKind: in.Kind,
		Purpose:   models.OTPPurposeVerifyAccount,
	}
	return s.issue(ctx, key, notify.Recipient{Email: email, Phone: phone}, in.Channel, payload)
}

// CompleteSignup spends the code and creates the staged account under the
// owner reference. A wrong code and an expired one fail the same way.
func (s *SignupService) CompleteSignup(ctx context.Context, ownerRef string, kind models.AccountKind, code string) (Session, error) {
	key, err := codeKey(strings.TrimSpace(ownerRef), kind, models.OTPPurposeVerifyAccount, strings.TrimSpace(code))
	if err != nil {
		return Session{}, err
	}
	if err := s.Limiter.Attempt(ctx, key); err != nil {
		return Session{}, err
	}

	now := s.now()
	account, err := s.Ledger.ConsumeAndCreate(ctx, key, s.hash(key, strings.TrimSpace(code)), now, func(rec models.OTPRecord) (models.Account, error) {
		return materialize(rec)
	})
	if err != nil {
		return Session{}, s.spent(key, err)
	}
	s.Limiter.ResetAttempts(ctx, key)

	if err := s.Events.AccountCreated(ctx, account); err != nil {
		s.logKey(s.Log.Warn(), key).Err(err).Msg("publish account_created failed")
	}

	session, err := issueSession(s.Tokens, account)
	if err != nil {
		s.logKey(s.Log.Error(), key).Err(err).Msg("sign session token failed")
		return Session{}, apperr.Internal(err)
	}
	s.logKey(s.Log.Info(), key).Msg("signup completed")
	return session, nil
}

// ResendCode issues a fresh code for a pending verification, keeping the
// staged payload. The previous code stops working.
func (s *SignupService) ResendCode(ctx context.Context, ownerRef string, kind models.AccountKind, channel models.Channel) (PendingCode, error) {
	if err := selfServiceKind(kind); err != nil {
		return PendingCode{}, err
	}
	key := models.OTPKey{OwnerRef: strings.TrimSpace(ownerRef), OwnerKind: kind, Purpose: models.OTPPurposeVerifyAccount}
	if key.OwnerRef == "" {
		return PendingCode{}, apperr.New(apperr.KindBadRequest, "ownerReference is required")
	}

	rec, err := s.Ledger.Find(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return PendingCode{}, apperr.ErrInvalidOrExpiredCode
		}
		return PendingCode{}, apperr.Internal(err)
	}
	if rec.Expired(s.now()) {
		return PendingCode{}, apperr.ErrInvalidOrExpiredCode
	}

	var to notify.Recipient
	if len(rec.Payload) > 0 {
		staged, err := decodeStaged(rec)
		if err != nil {
			return PendingCode{}, apperr.ErrInvalidOrExpiredCode
		}
		to.Email, to.Phone = staged.contact()
	} else {
		account, err := s.Accounts.FindByID(ctx, kind, key.OwnerRef)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return PendingCode{}, apperr.ErrInvalidOrExpiredCode
			}
			return PendingCode{}, apperr.Internal(err)
		}
		to = recipientOf(account)
	}

	if !channel.Valid() {
		channel = rec.Channel
	}
	return s.reissue(ctx, rec, to, channel)
}

// RequestActivation sends a verification code to an existing account that
// has not been verified yet.
func (s *SignupService) RequestActivation(ctx context.Context, kind models.AccountKind, identifier string, channel models.Channel) (PendingCode, error) {
	if err := selfServiceKind(kind); err != nil {
		return PendingCode{}, err
	}
	email, phone, err := validate.Identifier(identifier, s.Region)
	if err != nil {
		return PendingCode{}, apperr.Wrap(apperr.KindBadRequest, "Invalid email or phone number", err)
	}

	account, err := s.Accounts.FindByEmailOrPhone(ctx, kind, email, phone)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return PendingCode{}, apperr.New(apperr.KindNotFound, "Account not found")
		}
		return PendingCode{}, apperr.Internal(err)
	}
	if err := CheckStanding(account); err != nil {
		return PendingCode{}, err
	}
	if account.Base().IsVerified {
		return PendingCode{}, apperr.New(apperr.KindBadRequest, "Account is already verified")
	}

	key := models.OTPKey{OwnerRef: account.AccountID(), OwnerKind: kind, Purpose: models.OTPPurposeVerifyAccount}
	return s.issue(ctx, key, recipientOf(account), channel, nil)
}

func (s *SignupService) CompleteActivation(ctx context.Context, ownerRef string, kind models.AccountKind, code string) (Session, error) {
	key, err := codeKey(strings.TrimSpace(ownerRef), kind, models.OTPPurposeVerifyAccount, strings.TrimSpace(code))
	if err != nil {
		return Session{}, err
	}
	if err := s.Limiter.Attempt(ctx, key); err != nil {
		return Session{}, err
	}

	// A refused account keeps its code and stays unverified.
	current, err := s.Accounts.FindByID(ctx, kind, key.OwnerRef)
	if err != nil {
		return Session{}, s.spent(key, err)
	}
	if err := CheckStanding(current); err != nil {
		return Session{}, err
	}

	now := s.now()
	account, err := s.Ledger.ConsumeAndVerify(ctx, key, s.hash(key, strings.TrimSpace(code)), now)
	if err != nil {
		return Session{}, s.spent(key, err)
	}
	s.Limiter.ResetAttempts(ctx, key)

	session, err := issueSession(s.Tokens, account)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}
	s.logKey(s.Log.Info(), key).Msg("account activated")
	return session, nil
}

func (s *SignupService) ensureAvailable(ctx context.Context, kind models.AccountKind, email, phone string) error {
	_, err := s.Accounts.FindByEmailOrPhone(ctx, kind, email, phone)
	switch {
	case err == nil:
		return apperr.New(apperr.KindConflict, "Account with this email or phone number already exists")
	case errors.Is(err, repository.ErrAccountNotFound):
		return nil
	default:
		s.Log.Error().Err(err).Str("kind", string(kind)).Msg("availability check failed")
		return apperr.Internal(err)
	}
}

type stagedForm struct {
	models.StagedSignup
}

func (f stagedForm) contact() (email, phone string) {
	switch {
	case f.Individual != nil:
		return f.Individual.Email, f.Individual.PhoneNumber
	case f.Organization != nil:
		return f.Organization.Email, f.Organization.PhoneNumber
	}
	return "", ""
}

// stage validates and normalises the form for the requested kind.
func (s *SignupService) stage(in SignupInput) (stagedForm, error) {
	if err := validate.Password(in.Password); err != nil {
		return stagedForm{}, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}

	staged := stagedForm{StagedSignup: models.StagedSignup{Kind: in.Kind}}
	switch in.Kind {
	case models.AccountKindIndividual:
		if in.Individual == nil {
			return stagedForm{}, apperr.New(apperr.KindBadRequest, "Signup form is required")
		}
		f := *in.Individual
		f.FirstName = strings.TrimSpace(f.FirstName)
		f.LastName = strings.TrimSpace(f.LastName)
		f.Country = strings.TrimSpace(f.Country)
		f.Gender = strings.TrimSpace(f.Gender)
		if err := required(map[string]string{"firstName": f.FirstName, "lastName": f.LastName}); err != nil {
			return stagedForm{}, err
		}
		var err error
		if f.Email, f.PhoneNumber, err = s.contact(f.Email, f.PhoneNumber); err != nil {
			return stagedForm{}, err
		}
		staged.Individual = &f
	case models.AccountKindOrganization:
		if in.Organization == nil {
			return stagedForm{}, apperr.New(apperr.KindBadRequest, "Signup form is required")
		}
		f := *in.Organization
		f.Name = strings.TrimSpace(f.Name)
		f.RegistrationNumber = strings.TrimSpace(f.RegistrationNumber)
		f.Industry = strings.TrimSpace(f.Industry)
		f.Country = strings.TrimSpace(f.Country)
		f.Website = strings.TrimSpace(f.Website)
		if err := required(map[string]string{
			"name":               f.Name,
			"registrationNumber": f.RegistrationNumber,
			"industry":           f.Industry,
		}); err != nil {
			return stagedForm{}, err
		}
		var err error
		if f.Email, f.PhoneNumber, err = s.contact(f.Email, f.PhoneNumber); err != nil {
			return stagedForm{}, err
		}
		staged.Organization = &f
	}
	return staged, nil
}

func (s *SignupService) contact(rawEmail, rawPhone string) (string, string, error) {
	email, err := validate.NormalizeEmail(rawEmail)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindBadRequest, "Invalid email address", err)
	}
	phone, err := validate.NormalizePhone(rawPhone, s.Region)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindBadRequest, "Invalid phone number", err)
	}
	return email, phone, nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperr.New(apperr.KindBadRequest, fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
}

func decodeStaged(rec models.OTPRecord) (stagedForm, error) {
	var staged models.StagedSignup
	if len(rec.Payload) == 0 {
		return stagedForm{}, errNoStagedSignup
	}
	if err := json.Unmarshal(rec.Payload, &staged); err != nil {
		return stagedForm{}, fmt.Errorf("%w: %v", errNoStagedSignup, err)
	}
	return stagedForm{StagedSignup: staged}, nil
}

func materialize(rec models.OTPRecord) (models.Account, error) {
	staged, err := decodeStaged(rec)
	if err != nil {
		return nil, err
	}
	if staged.Kind != rec.OwnerKind {
		return nil, errNoStagedSignup
	}
	account, ok := staged.Materialize(rec.OwnerRef)
	if !ok {
		return nil, errNoStagedSignup
	}
	return account, nil
}

func recipientOf(account models.Account) notify.Recipient {
	b := account.Base()
	return notify.Recipient{Email: b.Email, Phone: b.PhoneNumber}
}
