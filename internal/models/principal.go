package models

import "context"

// Principal is the request-scoped view of the caller. It is built by the
// resolver for every request and never cached.
type Principal struct {
	ID          string
	AccountKind AccountKind
	RoleClaim   Role
	Email       string
	PhoneNumber string
	Flags       StatusFlags
	Account     Account
}

func NewPrincipal(account Account, role Role) Principal {
	base := account.Base()
	return Principal{
		ID:          base.ID,
		AccountKind: account.Kind(),
		RoleClaim:   role,
		Email:       base.Email,
		PhoneNumber: base.PhoneNumber,
		Flags:       base.Flags(),
		Account:     account,
	}
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
