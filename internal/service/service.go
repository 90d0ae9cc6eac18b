package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kapacity/api/internal/models"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/security"
)

// AccountStore is the credential store. Every call names the kind, so a
// lookup never crosses into another kind's table.
type AccountStore interface {
	FindByID(ctx context.Context, kind models.AccountKind, id string) (models.Account, error)
	FindByEmailOrPhone(ctx context.Context, kind models.AccountKind, email, phone string) (models.Account, error)
	Create(ctx context.Context, account models.Account) error
	UpdateFlags(ctx context.Context, kind models.AccountKind, id string, patch models.FlagPatch) error
	SetPresence(ctx context.Context, kind models.AccountKind, id string, online bool, at time.Time) error
	UpdatePassword(ctx context.Context, kind models.AccountKind, id string, hash []byte) error
	Purge(ctx context.Context, kind models.AccountKind, id string) error
}

// CodeLedger stores one-time codes. The Consume* methods spend a code and
// apply their effect atomically; a wrong, expired or spent code yields
// repository.ErrCodeNotFound and changes nothing.
type CodeLedger interface {
	Put(ctx context.Context, rec models.OTPRecord) error
	Find(ctx context.Context, key models.OTPKey) (models.OTPRecord, error)
	Delete(ctx context.Context, key models.OTPKey) error
	ConsumeAndCreate(ctx context.Context, key models.OTPKey, codeHash string, now time.Time, build func(models.OTPRecord) (models.Account, error)) (models.Account, error)
	ConsumeAndVerify(ctx context.Context, key models.OTPKey, codeHash string, now time.Time) (models.Account, error)
	ConsumeAndSetPassword(ctx context.Context, key models.OTPKey, codeHash string, now time.Time, passwordHash []byte) error
}

type Notifier interface {
	Resolve(requested models.Channel, r notify.Recipient) (models.Channel, string, error)
	Deliver(ctx context.Context, channel models.Channel, to string, msg notify.Message) error
}

type EventPublisher interface {
	AccountCreated(ctx context.Context, account models.Account) error
}

type Limiter interface {
	Attempt(ctx context.Context, key models.OTPKey) error
	ResetAttempts(ctx context.Context, key models.OTPKey)
	Cooldown(ctx context.Context, purpose models.OTPPurpose, destination string) error
	ReleaseCooldown(ctx context.Context, purpose models.OTPPurpose, destination string)
}

type StatsReader interface {
	List(ctx context.Context) ([]models.AccountStat, error)
}

// Deps are the collaborators shared by the code-driven flows.
type Deps struct {
	Accounts  AccountStore
	Ledger    CodeLedger
	Notifier  Notifier
	Events    EventPublisher
	Limiter   Limiter
	Tokens    *security.TokenIssuer
	Codes     *security.CodeHasher
	Passwords *security.PasswordHasher
	CodeTTL   time.Duration
	Region    string
	Log       zerolog.Logger
}

// PendingCode acknowledges that a code was sent. It never carries the code.
type PendingCode struct {
	OwnerReference string
	OwnerKind      models.AccountKind
	Channel        models.Channel
	ExpiresAt      time.Time
}

// Session is an authenticated account plus its bearer token.
type Session struct {
	Account   models.Account
	Token     string
	ExpiresAt time.Time
}

func issueSession(tokens *security.TokenIssuer, account models.Account) (Session, error) {
	base := account.Base()
	token, expiresAt, err := tokens.Issue(base.ID, string(account.Kind()), base.Email, base.PhoneNumber)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
