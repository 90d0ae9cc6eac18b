package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapacity/api/internal/config"
	"kapacity/api/internal/events"
	"kapacity/api/internal/models"
	"kapacity/api/internal/notify"
	"kapacity/api/internal/security"
	"kapacity/api/internal/service"
	"kapacity/api/internal/testutil"
)

const stream = "kapacity:tasks"

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	router    *gin.Engine
	store     *testutil.Store
	inbox     *testutil.Inbox
	redis     *miniredis.Miniredis
	tokens    *security.TokenIssuer
	passwords *security.PasswordHasher
}

func newAPI(t *testing.T, checks map[string]HealthCheck) *api {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := testutil.NewStore()
	inbox := &testutil.Inbox{}
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	passwords := security.NewPasswordHasher(security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	log := zerolog.Nop()

	deps := service.Deps{
		Accounts: store,
		Ledger:   store,
		Notifier: notify.NewDispatcher(log, models.ChannelEmail, map[models.Channel]notify.Sender{
			models.ChannelEmail: inbox,
			models.ChannelSMS:   inbox,
		}),
		Events:    events.NewPublisher(client, stream),
		Limiter:   service.NewThrottle(client, 5, 15*time.Minute, 0, log),
		Tokens:    tokens,
		Codes:     security.NewCodeHasher("pepper"),
		Passwords: passwords,
		CodeTTL:   15 * time.Minute,
		Region:    "NG",
		Log:       log,
	}
	svc := Services{
		Signup:     service.NewSignupService(deps),
		Passwords:  service.NewPasswordResetService(deps),
		Auth:       service.NewAuthService(store, tokens, passwords, "NG", log),
		Moderation: service.NewModerationService(store, store, passwords, "NG", log),
	}

	cfg := &config.AppConfig{Environment: "test"}
	router := gin.New()
	NewHandlerSet(log, cfg, svc, tokens, store, checks).Register(router.Group("/api"))

	return &api{
		router:    router,
		store:     store,
		inbox:     inbox,
		redis:     mr,
		tokens:    tokens,
		passwords: passwords,
	}
}

func (a *api) call(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (a *api) seedStaff(t *testing.T) string {
	t.Helper()
	a.store.Seed(&models.Staff{
		AccountBase: models.AccountBase{ID: "staff-1", Email: "root@kapacity.test", IsVerified: true},
		FirstName:   "Root",
		Position:    "ops",
	})
	token, _, err := a.tokens.Issue("staff-1", string(models.AccountKindStaff), "", "")
	require.NoError(t, err)
	return token
}

func signupBody() map[string]any {
	return map[string]any{
		"firstName":   "Ada",
		"lastName":    "Obi",
		"email":       "ada@example.com",
		"phoneNumber": "+2348031234567",
		"password":    "correct-horse",
		"channel":     "email",
	}
}

func TestSignupFlow(t *testing.T) {
	a := newAPI(t, nil)

	code, body := a.call(t, http.MethodPost, "/api/v1/auth/individual/signup", signupBody(), nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "email", body["channel"])
	ref, _ := body["ownerReference"].(string)
	require.NotEmpty(t, ref)
	assert.Empty(t, a.store.Accounts(models.AccountKindIndividual))

	otp := a.inbox.LastCode("ada@example.com")
	require.Len(t, otp, 6)
	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}

	code, body = a.call(t, http.MethodPost, "/api/v1/auth/individual/signup/verify",
		map[string]any{"ownerReference": ref, "code": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid or expired OTP", body["msg"])

	code, body = a.call(t, http.MethodPost, "/api/v1/auth/individual/signup/verify",
		map[string]any{"ownerReference": ref, "code": otp}, nil)
	require.Equal(t, http.StatusOK, code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	account, _ := body["account"].(map[string]any)
	require.NotNil(t, account)
	assert.Equal(t, ref, account["id"])
	assert.Equal(t, true, account["isVerified"])
	assert.NotContains(t, account, "passwordHash")

	entries, err := a.redis.Stream(stream)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	code, body = a.call(t, http.MethodPost, "/api/v1/auth/individual/signup/verify",
		map[string]any{"ownerReference": ref, "code": otp}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid or expired OTP", body["msg"])

	code, body = a.call(t, http.MethodGet, "/api/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
		"role":          "user",
	})
	require.Equal(t, http.StatusOK, code, body)
	me, _ := body["account"].(map[string]any)
	assert.Equal(t, "Ada", me["firstName"])
	assert.Equal(t, "user", body["role"])
}

func TestSignupMissingFields(t *testing.T) {
	a := newAPI(t, nil)

	code, body := a.call(t, http.MethodPost, "/api/v1/auth/organization/signup", map[string]any{
		"email":    "ops@acme.example.com",
		"password": "correct-horse",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["msg"], "Missing required fields")
	assert.Empty(t, a.inbox.Deliveries())
}

func TestSignupRejectsUnknownKind(t *testing.T) {
	a := newAPI(t, nil)

	code, body := a.call(t, http.MethodPost, "/api/v1/auth/robot/signup", signupBody(), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid account kind", body["msg"])

	code, _ = a.call(t, http.MethodPost, "/api/v1/auth/admin/signup", signupBody(), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSignupMalformedBody(t *testing.T) {
	a := newAPI(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/individual/signup", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")
}

func TestSignInAndSignOut(t *testing.T) {
	a := newAPI(t, nil)
	hash, err := a.passwords.Hash("correct-horse")
	require.NoError(t, err)
	a.store.Seed(&models.Organization{
		AccountBase: models.AccountBase{
			ID:           "org-1",
			Email:        "ops@acme.example.com",
			PasswordHash: hash,
			IsVerified:   true,
		},
		Name: "Acme",
	})

	code, body := a.call(t, http.MethodPost, "/api/v1/auth/user/signin",
		map[string]any{"identifier": "ops@acme.example.com", "password": "correct-horse"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["msg"])

	code, body = a.call(t, http.MethodPost, "/api/v1/auth/organization/signin",
		map[string]any{"identifier": "ops@acme.example.com", "password": "correct-horse"}, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "organization", body["role"])
	token, _ := body["token"].(string)

	headers := map[string]string{"x-access-token": token, "role": "organization"}
	code, _ = a.call(t, http.MethodPost, "/api/v1/auth/signout", nil, headers)
	require.Equal(t, http.StatusOK, code)

	acc := a.store.Accounts(models.AccountKindOrganization)[0]
	assert.False(t, acc.Base().IsOnline)
}

func TestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	a := newAPI(t, nil)

	code, body := a.call(t, http.MethodPost, "/api/v1/auth/individual/password/forgot",
		map[string]any{"identifier": "ghost@example.com"}, nil)

	assert.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["ownerReference"])
	assert.Empty(t, a.inbox.Deliveries())
}

func TestAdminRoutes(t *testing.T) {
	a := newAPI(t, nil)
	staffToken := a.seedStaff(t)
	a.store.Seed(&models.Individual{
		AccountBase: models.AccountBase{ID: "ind-1", Email: "ada@example.com", IsVerified: true},
		FirstName:   "Ada",
	})
	userToken, _, err := a.tokens.Issue("ind-1", string(models.AccountKindIndividual), "", "")
	require.NoError(t, err)

	admin := map[string]string{"Authorization": "Bearer " + staffToken, "role": "admin"}
	user := map[string]string{"Authorization": "Bearer " + userToken, "role": "user"}

	code, _ := a.call(t, http.MethodPost, "/api/v1/admin/accounts/individual/ind-1/block",
		map[string]any{"reason": "spam"}, user)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := a.call(t, http.MethodPost, "/api/v1/admin/accounts/individual/ind-1/block", nil, admin)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "reason is required", body["msg"])

	code, _ = a.call(t, http.MethodPost, "/api/v1/admin/accounts/individual/ind-1/block",
		map[string]any{"reason": "spam"}, admin)
	require.Equal(t, http.StatusOK, code)

	code, body = a.call(t, http.MethodGet, "/api/v1/me", nil, user)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Account has been blocked: spam", body["msg"])

	code, _ = a.call(t, http.MethodPost, "/api/v1/admin/accounts/user/ind-1/unblock", nil, admin)
	require.Equal(t, http.StatusOK, code)

	code, _ = a.call(t, http.MethodGet, "/api/v1/me", nil, user)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.call(t, http.MethodDelete, "/api/v1/admin/accounts/individual/ind-1?hard=true", nil, admin)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, a.store.Accounts(models.AccountKindIndividual))

	code, body = a.call(t, http.MethodGet, "/api/v1/admin/stats", nil, admin)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "stats")
}

func TestHealth(t *testing.T) {
	a := newAPI(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})
	code, body := a.call(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "ok"}, body["dependencies"])

	a = newAPI(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	code, body = a.call(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body["status"])
}
