package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
)

func wrongCode(code string) string {
	if code == "999999" {
		return "100000"
	}
	return "999999"
}

func TestSignupRoundTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	assert.NotEmpty(t, pending.OwnerReference)
	assert.Equal(t, models.ChannelEmail, pending.Channel)
	assert.Equal(t, models.AccountKindIndividual, pending.OwnerKind)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), pending.ExpiresAt, 5*time.Second)

	assert.Empty(t, h.store.Accounts(models.AccountKindIndividual), "no account before the code comes back")

	codes := h.store.Codes()
	require.Len(t, codes, 1)
	assert.Equal(t, models.OTPPurposeVerifyAccount, codes[0].Purpose)
	assert.NotContains(t, string(codes[0].Payload), testPassword)

	code := h.inbox.LastCode(testEmail)
	require.Len(t, code, 6)
	assert.NotEqual(t, code, codes[0].CodeHash)

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, wrongCode(code))
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
	assert.Equal(t, "Invalid or expired OTP", err.Error())

	session, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code)
	require.NoError(t, err)

	acc, ok := session.Account.(*models.Individual)
	require.True(t, ok)
	assert.Equal(t, pending.OwnerReference, acc.ID)
	assert.Equal(t, "Ada", acc.FirstName)
	assert.Equal(t, "Obi", acc.LastName)
	assert.Equal(t, "NG", acc.Country)
	assert.Equal(t, "female", acc.Gender)
	assert.Equal(t, testEmail, acc.Email)
	assert.Equal(t, testPhone, acc.PhoneNumber)
	assert.True(t, acc.IsVerified)

	ok, err = h.passwords.Verify(testPassword, acc.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := h.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.Subject)
	assert.Equal(t, "individual", claims.Kind)

	assert.Empty(t, h.store.Codes(), "code is spent")
	assert.Len(t, h.events.accounts, 1)

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code)
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
	assert.Len(t, h.store.Accounts(models.AccountKindIndividual), 1)
}

func TestOrganizationSignupOverSMS(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, organizationSignup())
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, pending.Channel)

	code := h.inbox.LastCode("+2348031234568")
	require.NotEmpty(t, code)

	session, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindOrganization, code)
	require.NoError(t, err)

	org, ok := session.Account.(*models.Organization)
	require.True(t, ok)
	assert.Equal(t, "Acme Ltd", org.Name)
	assert.Equal(t, "RC-12345", org.RegistrationNumber)
	assert.Equal(t, "Logistics", org.Industry)
	assert.Equal(t, "https://acme.example.com", org.Website)
}

func TestCompleteSignupWrongKind(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	code := h.inbox.LastCode(testEmail)

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindOrganization, code)
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code)
	assert.NoError(t, err)
}

func TestCompleteSignupExpired(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	code := h.inbox.LastCode(testEmail)

	h.store.ExpireAll()

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code)
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
	assert.Empty(t, h.store.Accounts(models.AccountKindIndividual))
}

func TestBeginSignupConflict(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedIndividual(t, "existing", true)

	_, err := h.signup.BeginSignup(context.Background(), individualSignup())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Empty(t, h.inbox.Deliveries())
}

func TestBeginSignupSameContactOtherKindIsAllowed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedIndividual(t, "existing", true)

	in := organizationSignup()
	in.Organization.Email = testEmail
	in.Organization.PhoneNumber = testPhone
	_, err := h.signup.BeginSignup(context.Background(), in)
	assert.NoError(t, err)
}

func TestBeginSignupValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*SignupInput)
	}{
		{"staff cannot sign up", func(in *SignupInput) { in.Kind = models.AccountKindStaff }},
		{"unknown kind", func(in *SignupInput) { in.Kind = "robot" }},
		{"missing form", func(in *SignupInput) { in.Individual = nil }},
		{"missing first name", func(in *SignupInput) { in.Individual.FirstName = "  " }},
		{"bad email", func(in *SignupInput) { in.Individual.Email = "ada.example.com" }},
		{"missing email", func(in *SignupInput) { in.Individual.Email = "" }},
		{"bad phone", func(in *SignupInput) { in.Individual.PhoneNumber = "12" }},
		{"missing phone", func(in *SignupInput) { in.Individual.PhoneNumber = "" }},
		{"short password", func(in *SignupInput) { in.Password = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := individualSignup()
			tt.mutate(&in)

			_, err := h.signup.BeginSignup(context.Background(), in)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
			assert.Empty(t, h.store.Codes())
		})
	}
}

func TestBeginSignupOrganizationMissingFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	in := organizationSignup()
	in.Organization.RegistrationNumber = ""
	in.Organization.Industry = ""

	_, err := h.signup.BeginSignup(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, "Missing required fields: industry, registrationNumber", err.Error())
}

func TestBeginSignupUnknownChannelFallsBackToEmail(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	in := individualSignup()
	in.Channel = "carrier-pigeon"
	pending, err := h.signup.BeginSignup(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelEmail, pending.Channel)
	assert.NotEmpty(t, h.inbox.LastCode(testEmail))
}

func TestBeginSignupDeliveryFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.inbox.Err = errors.New("smtp down")

	_, err := h.signup.BeginSignup(context.Background(), individualSignup())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, h.store.Codes(), "undelivered code is removed")

	h.inbox.Err = nil
	_, err = h.signup.BeginSignup(context.Background(), individualSignup())
	assert.NoError(t, err, "cooldown is released after a failed send")
}

func TestBeginSignupStoreFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.store.FailNext = errors.New("connection reset")

	_, err := h.signup.BeginSignup(context.Background(), individualSignup())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestConcurrentSignupsSameEmail(t *testing.T) {
	t.Parallel()
	h := newHarness(t, withCooldown(0))
	ctx := context.Background()

	first, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	firstCode := h.inbox.LastCode(testEmail)

	second, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	secondCode := h.inbox.LastCode(testEmail)
	require.NotEqual(t, first.OwnerReference, second.OwnerReference)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, p := range []struct{ ref, code string }{
		{first.OwnerReference, firstCode},
		{second.OwnerReference, secondCode},
	} {
		wg.Add(1)
		go func(i int, ref, code string) {
			defer wg.Done()
			_, errs[i] = h.signup.CompleteSignup(ctx, ref, models.AccountKindIndividual, code)
		}(i, p.ref, p.code)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.store.Accounts(models.AccountKindIndividual), 1)
}

func TestConcurrentCompleteSameCode(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	code := h.inbox.LastCode(testEmail)

	const callers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.store.Accounts(models.AccountKindIndividual), 1)
}

func TestCompleteSignupAttemptLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	code := h.inbox.LastCode(testEmail)

	for i := 0; i < 5; i++ {
		_, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, wrongCode(code))
		assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
	}

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, code)
	assert.Equal(t, apperr.KindTooManyRequests, apperr.KindOf(err))
}

func TestCompleteSignupMissingInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.signup.CompleteSignup(context.Background(), "", models.AccountKindIndividual, "123456")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = h.signup.CompleteSignup(context.Background(), "ref", models.AccountKindStaff, "123456")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCompleteSignupEventFailureKeepsAccount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.events.err = errors.New("stream unavailable")
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)

	_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, h.inbox.LastCode(testEmail))
	require.NoError(t, err)
	assert.Len(t, h.store.Accounts(models.AccountKindIndividual), 1)
}

func TestResendCode(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	oldCode := h.inbox.LastCode(testEmail)

	_, err = h.signup.ResendCode(ctx, pending.OwnerReference, models.AccountKindIndividual, models.ChannelWhatsApp)
	require.NoError(t, err, "whatsapp destination has no cooldown yet")

	newCode := h.inbox.LastCode(testPhone)
	require.NotEmpty(t, newCode)

	if newCode != oldCode {
		_, err = h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, oldCode)
		assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
	}

	session, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, newCode)
	require.NoError(t, err)
	assert.Equal(t, "Ada", session.Account.(*models.Individual).FirstName)
}

func TestResendCodeCooldown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)

	_, err = h.signup.ResendCode(ctx, pending.OwnerReference, models.AccountKindIndividual, models.ChannelEmail)
	assert.Equal(t, apperr.KindTooManyRequests, apperr.KindOf(err))

	h.redis.FastForward(46 * time.Second)
	_, err = h.signup.ResendCode(ctx, pending.OwnerReference, models.AccountKindIndividual, models.ChannelEmail)
	assert.NoError(t, err)
}

func TestResendCodeUnknownReference(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.signup.ResendCode(context.Background(), "nope", models.AccountKindIndividual, models.ChannelEmail)
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err))
}

func TestResendCodeDeliveryFailureKeepsPendingSignup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.signup.BeginSignup(ctx, individualSignup())
	require.NoError(t, err)
	oldCode := h.inbox.LastCode(testEmail)
	require.NotEmpty(t, oldCode)

	h.inbox.Err = errors.New("sms gateway down")
	_, err = h.signup.ResendCode(ctx, pending.OwnerReference, models.AccountKindIndividual, models.ChannelSMS)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	require.Len(t, h.store.Codes(), 1)
	assert.NotEmpty(t, h.store.Codes()[0].Payload)

	h.inbox.Err = nil
	session, err := h.signup.CompleteSignup(ctx, pending.OwnerReference, models.AccountKindIndividual, oldCode)
	require.NoError(t, err)
	assert.Equal(t, testEmail, session.Account.Base().Email)
}

func TestActivation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.seedIndividual(t, "acc-1", false)

	pending, err := h.signup.RequestActivation(ctx, models.AccountKindIndividual, "08031234567", models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", pending.OwnerReference)
	assert.Equal(t, models.ChannelSMS, pending.Channel)

	code := h.inbox.LastCode(testPhone)
	_, err = h.signup.CompleteSignup(ctx, "acc-1", models.AccountKindIndividual, code)
	assert.Equal(t, apperr.KindInvalidOrExpiredCode, apperr.KindOf(err), "activation codes cannot create accounts")

	session, err := h.signup.CompleteActivation(ctx, "acc-1", models.AccountKindIndividual, code)
	require.NoError(t, err)
	assert.True(t, session.Account.Base().IsVerified)
	assert.NotEmpty(t, session.Token)

	_, err = h.signup.RequestActivation(ctx, models.AccountKindIndividual, testEmail, models.ChannelEmail)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestActivationUnknownAccount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.signup.RequestActivation(context.Background(), models.AccountKindIndividual, testEmail, models.ChannelEmail)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestActivationBannedAccount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	acc := h.seedIndividual(t, "acc-1", false)
	acc.IsBanned, acc.BanReason = true, "fraud"
	h.store.Seed(acc)

	_, err := h.signup.RequestActivation(context.Background(), models.AccountKindIndividual, testEmail, models.ChannelEmail)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Account has been banned: fraud", err.Error())
}

func TestActivationBlockedAfterCodeSent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.seedIndividual(t, "acc-1", false)

	_, err := h.signup.RequestActivation(ctx, models.AccountKindIndividual, testEmail, models.ChannelEmail)
	require.NoError(t, err)
	code := h.inbox.LastCode(testEmail)

	blocked, reason := true, "chargeback"
	require.NoError(t, h.store.UpdateFlags(ctx, models.AccountKindIndividual, "acc-1",
		models.FlagPatch{IsBlocked: &blocked, BlockReason: &reason}))

	_, err = h.signup.CompleteActivation(ctx, "acc-1", models.AccountKindIndividual, code)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Account has been blocked: chargeback", err.Error())

	accounts := h.store.Accounts(models.AccountKindIndividual)
	require.Len(t, accounts, 1)
	assert.False(t, accounts[0].Base().IsVerified)
	assert.Len(t, h.store.Codes(), 1, "code is not spent")
}
