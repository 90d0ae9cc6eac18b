package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kapacity/api/internal/models"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/security"
	"kapacity/api/internal/testutil"
)

const (
	testEmail    = "ada@example.com"
	testPhone    = "+2348031234567"
	testPassword = "correct-horse"
)

var cheapParams = security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

type recordedEvents struct {
	mu       sync.Mutex
	accounts []models.Account
	err      error
}

func (r *recordedEvents) AccountCreated(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, account)
	return r.err
}

type harness struct {
	store     *testutil.Store
	inbox     *testutil.Inbox
	redis     *miniredis.Miniredis
	events    *recordedEvents
	tokens    *security.TokenIssuer
	passwords *security.PasswordHasher
	signup    *SignupService
	reset     *PasswordResetService
	auth      *AuthService
}

type harnessOption func(*Deps)

func withCooldown(d time.Duration) harnessOption {
	return func(deps *Deps) {
		throttle := deps.Limiter.(*Throttle)
		throttle.cooldown = d
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := testutil.NewStore()
	inbox := &testutil.Inbox{}
	dispatcher := notify.NewDispatcher(zerolog.Nop(), models.ChannelEmail, map[models.Channel]notify.Sender{
		models.ChannelEmail:    inbox,
		models.ChannelSMS:      inbox,
		models.ChannelWhatsApp: inbox,
	})
	events := &recordedEvents{}
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	passwords := security.NewPasswordHasher(cheapParams)

	deps := Deps{
		Accounts:  store,
		Ledger:    store,
		Notifier:  dispatcher,
		Events:    events,
		Limiter:   NewThrottle(client, 5, 15*time.Minute, 45*time.Second, zerolog.Nop()),
		Tokens:    tokens,
		Codes:     security.NewCodeHasher("pepper"),
		Passwords: passwords,
		CodeTTL:   15 * time.Minute,
		Region:    "NG",
		Log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{
		store:     store,
		inbox:     inbox,
		redis:     mr,
		events:    events,
		tokens:    tokens,
		passwords: passwords,
		signup:    NewSignupService(deps),
		reset:     NewPasswordResetService(deps),
		auth:      NewAuthService(store, tokens, passwords, "NG", zerolog.Nop()),
	}
}

func individualSignup() SignupInput {
	return SignupInput{
		Kind: models.AccountKindIndividual,
		Individual: &models.IndividualForm{
			FirstName:   "Ada",
			LastName:    "Obi",
			Email:       "  Ada@Example.com ",
			PhoneNumber: "08031234567",
			Country:     "NG",
			Gender:      "female",
		},
		Password: testPassword,
		Channel:  models.ChannelEmail,
	}
}

func organizationSignup() SignupInput {
	return SignupInput{
		Kind: models.AccountKindOrganization,
		Organization: &models.OrganizationForm{
			Name:               "Acme Ltd",
			RegistrationNumber: "RC-12345",
			Industry:           "Logistics",
			Email:              "hr@acme.example.com",
			PhoneNumber:        "+2348031234568",
			Website:            "https://acme.example.com",
		},
		Password: testPassword,
		Channel:  models.ChannelSMS,
	}
}

func (h *harness) seedIndividual(t *testing.T, id string, verified bool) *models.Individual {
	t.Helper()
	hash, err := h.passwords.Hash(testPassword)
	require.NoError(t, err)
	acc := &models.Individual{
		AccountBase: models.AccountBase{
			ID:           id,
			Email:        testEmail,
			PhoneNumber:  testPhone,
			PasswordHash: hash,
			IsVerified:   verified,
		},
		FirstName: "Ada",
		LastName:  "Obi",
	}
	h.store.Seed(acc)
	return acc
}
