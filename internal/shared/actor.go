package shared

import (
	"context"
	"fmt"
)

// Role identifies the permission class of a request actor.
type Role string

const (
	// RoleAdmin may perform every operation.
	RoleAdmin Role = "admin"
	// RoleEVMStaff is manufacturer-side staff.
	RoleEVMStaff Role = "evm_staff"
	// RoleDealerManager manages a dealership.
	RoleDealerManager Role = "dealer_manager"
	// RoleDealerStaff is dealership sales staff.
	RoleDealerStaff Role = "dealer_staff"
	// RoleCustomer is the unauthenticated public customer flow.
	RoleCustomer Role = "customer"
)

// ParseRole validates a role string against the canonical set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleEVMStaff, RoleDealerManager, RoleDealerStaff, RoleCustomer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor carries the identity and role of the caller through every
// workflow command. It replaces ambient per-request globals.
type Actor struct {
	ID   int64
	Role Role
}

// Anonymous returns the public customer actor.
func Anonymous() Actor {
	return Actor{Role: RoleCustomer}
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. Requests that carry
// no actor resolve to the anonymous public customer.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok {
		return Anonymous()
	}
	return actor
}
