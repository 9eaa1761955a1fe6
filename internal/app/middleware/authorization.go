package middleware

import (
	"context"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/queries"
	"staysettle/internal/domain/auth"
	"staysettle/internal/domain/shared/fault"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

// RoleRestricted is implemented by messages only some roles may send.
type RoleRestricted interface {
	RequiredRole() auth.Role
}

// RoleAuthorizer checks RoleRestricted messages against the principal in ctx.
// Messages without a role requirement pass; ownership is checked by services.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok || restricted.RequiredRole() == "" {
		return nil
	}
	p, ok := auth.FromContext(ctx)
	if !ok {
		return fault.Forbidden("auth_required", "authentication required")
	}
	if !p.HasRole(restricted.RequiredRole()) {
		return fault.Forbidden("role_required", "requires role "+string(restricted.RequiredRole()))
	}
	return nil
}
