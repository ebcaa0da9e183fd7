package identity

import (
	"context"

	"roombook/pkg/sanitizer"
)

// Principal is the authenticated caller of a request. It is built once per
// request from the bearer token and never carries credentials.
type Principal struct {
	Email string
	Roles RoleSet
}

func NewPrincipal(email string, roles RoleSet) Principal {
	if roles == nil {
		roles = RoleSet{}
	}
	return Principal{Email: NormalizeEmail(email), Roles: roles}
}

func (p Principal) IsAdmin() bool {
	return p.Roles.Has(RoleAdmin)
}

// CanBook reports whether the caller may create reservations.
func (p Principal) CanBook() bool {
	return p.Roles.Has(RoleAdmin) || p.Roles.Has(RoleRequester)
}

// CanMutate reports whether the caller may update or delete a reservation
// owned by ownerEmail: administrators always, everyone else only their own.
func (p Principal) CanMutate(ownerEmail string) bool {
	if p.IsAdmin() {
		return true
	}
	email := NormalizeEmail(p.Email)
	return email != "" && email == NormalizeEmail(ownerEmail)
}

func NormalizeEmail(email string) string {
	return sanitizer.NormalizeEmail(email)
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}
