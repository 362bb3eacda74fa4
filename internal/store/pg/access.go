package pg

import (
	"context"
	"database/sql"
	"errors"

	"ilkys.app/internal/access"
)

var _ access.Directory = (*Store)(nil)

// RoleForUser looks up the caller's role for the tenant. Membership rows live
// in the shared management schema, keyed by tenant and user.
func (s *Store) RoleForUser(ctx context.Context, tenantID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		select role from management.tenant_users
		where tenant_id = $1 and user_id = $2
	`, tenantID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", access.ErrNoMembership
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// RolePermissions returns every permission string granted to the role within
// the tenant.
func (s *Store) RolePermissions(ctx context.Context, tenantID, role string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select permission from management.role_permissions
		where tenant_id = $1 and role = $2
	`, tenantID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}
