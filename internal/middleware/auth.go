package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/apperr"
	"kapacity/api/internal/models"
	"kapacity/api/internal/repository"
	"kapacity/api/internal/response"
	"kapacity/api/internal/security"
	"kapacity/api/internal/service"
)

const principalKey = "principal"

type TokenParser interface {
	Parse(token string) (*security.SessionClaims, error)
}

type AccountFinder interface {
	FindByID(ctx context.Context, kind models.AccountKind, id string) (models.Account, error)
}

// Resolver authenticates the request. The role header is a claim: the token
// subject is looked up only in the table that role implies, so a wrong role
// fails the lookup instead of widening access.
func Resolver(tokens TokenParser, accounts AccountFinder, errs response.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := security.ExtractToken(c.Request)
		if token == "" {
			errs.Fail(c, apperr.New(apperr.KindUnauthenticated, "No token provided."))
			return
		}

		rawRole := c.GetHeader(security.HeaderRole)
		if strings.TrimSpace(rawRole) == "" {
			errs.Fail(c, apperr.New(apperr.KindUnauthenticated, "role header must be set."))
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				errs.Fail(c, apperr.New(apperr.KindCredentialExpired, "Token expired."))
				return
			}
			errs.Fail(c, apperr.New(apperr.KindInvalidCredential, "Invalid token."))
			return
		}

		role, ok := models.ParseRole(rawRole)
		if !ok {
			errs.Fail(c, apperr.New(apperr.KindBadRequest, "Invalid role header."))
			return
		}
		kind, _ := models.KindForRole(role)

		if claims.Kind != "" && claims.Kind != string(kind) {
			errs.Fail(c, notFound(role))
			return
		}

		account, err := accounts.FindByID(c.Request.Context(), kind, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				errs.Fail(c, notFound(role))
				return
			}
			errs.Fail(c, apperr.Internal(err))
			return
		}

		if err := service.CheckStanding(account); err != nil {
			errs.Fail(c, err)
			return
		}

		principal := models.NewPrincipal(account, role)
		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(models.ContextWithPrincipal(c.Request.Context(), principal))

		c.Next()
	}
}

func notFound(role models.Role) error {
	switch role {
	case models.RoleOrganization:
		return apperr.New(apperr.KindUnauthenticated, "Organization not found")
	case models.RoleAdmin:
		return apperr.New(apperr.KindUnauthenticated, "Admin not found")
	default:
		return apperr.New(apperr.KindUnauthenticated, "User not found")
	}
}

// PrincipalFrom returns the principal the resolver attached.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
