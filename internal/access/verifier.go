// Package access decides whether the caller may perform an action on an
// entity. The decision pipeline is fixed: entity catalog, tenant, session,
// tenant membership, then the role's permission grants.
package access

import (
	"context"
	"errors"
	"fmt"

	"ilkys.app/internal/audit"
	"ilkys.app/internal/auth"
	"ilkys.app/internal/entity"
	"ilkys.app/internal/obs"
	"ilkys.app/internal/tenant"
)

// Actions accepted by the verifier, matching the CRUD verbs.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var (
	ErrNoSession    = errors.New("access: authentication required")
	ErrNoMembership = errors.New("access: no tenant access")
	ErrDenied       = errors.New("access: permission denied")
)

// Roles that bypass the permission lookup entirely.
var bypassRoles = map[string]struct{}{
	"admin":       {},
	"super_admin": {},
}

// Directory answers the two membership questions the verifier asks.
// RoleForUser returns ErrNoMembership when the user has no row for the tenant.
type Directory interface {
	RoleForUser(ctx context.Context, tenantID, userID string) (string, error)
	RolePermissions(ctx context.Context, tenantID, role string) ([]string, error)
}

// Auditor receives the denial events the verifier emits.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

// Decision is the positive outcome of verification. It carries everything the
// CRUD handlers need downstream.
type Decision struct {
	TenantID           string
	UserID             string
	Role               string
	Entity             entity.Entity
	Table              entity.TableRef
	RequiredPermission string
}

// Verifier checks entity access for the current request context.
type Verifier struct {
	dir     Directory
	auditor Auditor
}

func NewVerifier(dir Directory, auditor Auditor) *Verifier {
	return &Verifier{dir: dir, auditor: auditor}
}

// Verify runs the full pipeline. Failures before a tenant/role context is
// established (unknown entity, no tenant, no session) are not audited;
// permission denials are, with the required permission in the metadata.
func (v *Verifier) Verify(ctx context.Context, entityName, action string) (Decision, error) {
	e, err := entity.Lookup(entityName)
	if err != nil {
		return Decision{}, err
	}

	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return Decision{}, tenant.ErrNoTenant
	}

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return Decision{}, ErrNoSession
	}

	role, err := v.dir.RoleForUser(ctx, tc.ID, userID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return Decision{}, ErrNoMembership
		}
		return Decision{}, fmt.Errorf("resolve role: %w", err)
	}

	decision := Decision{
		TenantID:           tc.ID,
		UserID:             userID,
		Role:               role,
		Entity:             e,
		Table:              e.Table(tc),
		RequiredPermission: e.Permission(action),
	}

	if _, bypass := bypassRoles[role]; bypass {
		return decision, nil
	}

	granted, err := v.dir.RolePermissions(ctx, tc.ID, role)
	if err != nil {
		return Decision{}, fmt.Errorf("load role permissions: %w", err)
	}
	if !Matches(granted, decision.RequiredPermission) {
		obs.ObserveAccessDenial(e.Name, action)
		if v.auditor != nil {
			v.auditor.Record(ctx, audit.Event{
				TenantID:     tc.ID,
				ActorID:      userID,
				Action:       audit.ActionAPIError,
				ResourceType: e.Name,
				Description:  "permission denied",
				Metadata: map[string]any{
					"required_permission": decision.RequiredPermission,
					"role":                role,
				},
			})
		}
		return Decision{}, ErrDenied
	}
	return decision, nil
}
