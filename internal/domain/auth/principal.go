// Package auth models the authenticated actor behind a request.
package auth

import (
	"context"
	"errors"
	"strings"
)

var ErrPrincipalMissing = errors.New("auth: principal missing")

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Principal is the identity the identity provider vouched for.
type Principal struct {
	ID    string
	Roles []Role
}

func (p Principal) HasRole(role Role) bool {
	want := Role(strings.ToLower(strings.TrimSpace(string(role))))
	if want == "" {
		return false
	}
	for _, r := range p.Roles {
		if Role(strings.ToLower(string(r))) == want || r == RoleAdmin {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
