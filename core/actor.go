package core

import "context"

type (
	// Role is the coarse permission class of an authenticated actor.
	Role string

	// Actor is the identity behind a request or a connection.
	Actor struct {
		ID    string `json:"id"`
		Role  Role   `json:"role"`
		Login string `json:"login,omitempty"`
		Name  string `json:"name,omitempty"`
	}

	// TokenValidator verifies a bearer credential and yields the actor it was issued to.
	TokenValidator interface {
		Validate(token string) (*Actor, error)
	}
)

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the actor belongs to the back office.
func (a *Actor) IsStaff() bool {
	return a != nil && (a.Role == RoleStaff || a.Role == RoleAdmin)
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, if any.
func ActorFrom(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*Actor)
	return actor, ok && actor != nil
}
