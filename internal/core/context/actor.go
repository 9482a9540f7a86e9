// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"club19/internal/core/id"
)

// Role names resolved by the identity layer.
const (
	RoleAdmin   = "admin"
	RoleOps     = "ops"
	RoleFinance = "finance"
	RoleShopper = "shopper"
)

// Actor contains the authenticated caller's identity.
// Identity and role resolution happen outside the core; the core only asks
// whether the actor owns a sale and whether the actor holds a privileged role.
type Actor struct {
	UserID    string
	Email     string
	Role      string
	ShopperID id.ID // set when the actor is a shopper
}

// IsPrivileged reports whether the actor may operate on any sale.
func (a *Actor) IsPrivileged() bool {
	switch a.Role {
	case RoleAdmin, RoleOps, RoleFinance:
		return true
	}
	return false
}

// System returns the synthetic actor used by batch sweeps.
func System() *Actor {
	return &Actor{UserID: "system", Role: RoleOps}
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context, or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the actor's user ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
