package domain

import (
	"context"

	"charterly/internal/models"
)

// Actor is the caller identity taken from a verified session token.
// The zero value is an anonymous caller.
type Actor struct {
	UserID        string
	Role          models.Role
	EmailVerified bool
	PhoneVerified bool
}

func (a Actor) Authenticated() bool { return a.UserID != "" }

func (a Actor) IsAdmin() bool { return a.Authenticated() && a.Role == models.RoleAdmin }

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
