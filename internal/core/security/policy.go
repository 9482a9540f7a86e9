// Package security centralizes capability checks for sale operations.
// Role rules live here rather than scattered per handler, so the rule set
// is independently testable.
package security

import (
	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
)

// Policy answers the two questions the core asks about an actor:
// may it transition this sale, and may it change the sale's invoice set.
type Policy interface {
	// CanTransition checks whether actor may move the sale (owned by
	// ownerShopper) to targetStatus.
	CanTransition(actor *appctx.Actor, ownerShopper id.ID, targetStatus string) error

	// CanLink checks whether actor may link/unlink/relink invoices on the
	// sale owned by ownerShopper.
	CanLink(actor *appctx.Actor, ownerShopper id.ID) error
}

// Statuses whose entry is restricted to privileged roles.
var privilegedTargets = map[string]bool{
	"locked":          true,
	"commission_paid": true,
	"voided":          true,
}

// RolePolicy implements Policy with the standard role rules:
// privileged roles (admin/ops/finance) act on any sale, shoppers only on
// sales they own and never on commission or void transitions.
type RolePolicy struct{}

// NewRolePolicy creates the standard policy.
func NewRolePolicy() *RolePolicy {
	return &RolePolicy{}
}

func (p *RolePolicy) CanTransition(actor *appctx.Actor, ownerShopper id.ID, targetStatus string) error {
	if actor == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	if actor.IsPrivileged() {
		return nil
	}
	if actor.Role != appctx.RoleShopper {
		return apperror.NewForbidden("role may not transition sales").
			WithDetail("role", actor.Role)
	}
	if err := p.requireOwnership(actor, ownerShopper); err != nil {
		return err
	}
	if privilegedTargets[targetStatus] {
		return apperror.NewForbidden("shoppers may not perform commission transitions").
			WithDetail("target_status", targetStatus)
	}
	return nil
}

func (p *RolePolicy) CanLink(actor *appctx.Actor, ownerShopper id.ID) error {
	if actor == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	if actor.IsPrivileged() {
		return nil
	}
	if actor.Role != appctx.RoleShopper {
		return apperror.NewForbidden("role may not modify invoice links").
			WithDetail("role", actor.Role)
	}
	return p.requireOwnership(actor, ownerShopper)
}

func (p *RolePolicy) requireOwnership(actor *appctx.Actor, ownerShopper id.ID) error {
	if id.IsNil(actor.ShopperID) || actor.ShopperID != ownerShopper {
		return apperror.NewForbidden("shoppers may only operate on their own sales")
	}
	return nil
}

// OpenPolicy allows all operations (for development/testing).
type OpenPolicy struct{}

func (OpenPolicy) CanTransition(*appctx.Actor, id.ID, string) error { return nil }
func (OpenPolicy) CanLink(*appctx.Actor, id.ID) error               { return nil }
