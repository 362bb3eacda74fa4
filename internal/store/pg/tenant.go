package pg

import (
	"context"
	"fmt"

	"ilkys.app/internal/entity"
	"ilkys.app/internal/tenant"
)

// Base shape shared by every entity table. Tenant-specific columns are added
// by per-entity migrations; the generic CRUD surface only relies on these.
const entityTableDDL = `
	create table if not exists %s (
		id text primary key,
		tenant_id text not null,
		created_by text not null,
		updated_by text not null,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now(),
		details jsonb not null default '{}'::jsonb
	)`

// EnsureManagement creates the shared management schema and tables.
func (s *Store) EnsureManagement(ctx context.Context) error {
	statements := []string{
		`create schema if not exists management`,
		`create table if not exists management.tenant_users (
			tenant_id text not null,
			user_id text not null,
			role text not null,
			created_at timestamptz not null default now(),
			primary key (tenant_id, user_id)
		)`,
		`create table if not exists management.role_permissions (
			tenant_id text not null,
			role text not null,
			permission text not null,
			primary key (tenant_id, role, permission)
		)`,
		`create table if not exists management.audit_logs (
			id text primary key,
			tenant_id text not null,
			actor_id text,
			action text not null,
			resource_type text,
			resource_id text,
			description text,
			previous_state jsonb,
			new_state jsonb,
			metadata jsonb,
			created_at timestamptz not null
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure management schema: %w", err)
		}
	}
	return nil
}

// EnsureTenant provisions the tenant schema and one table per catalog entity.
func (s *Store) EnsureTenant(ctx context.Context, tc tenant.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`create schema if not exists %q`, tc.Schema())); err != nil {
		return fmt.Errorf("create schema %s: %w", tc.Schema(), err)
	}
	for _, name := range entity.Names() {
		e, err := entity.Lookup(name)
		if err != nil {
			return err
		}
		ddl := fmt.Sprintf(entityTableDDL, e.Table(tc))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", e.Table(tc), err)
		}
	}
	return nil
}

// AddTenantUser registers or updates a user's role within a tenant.
func (s *Store) AddTenantUser(ctx context.Context, tenantID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into management.tenant_users (tenant_id, user_id, role)
		values ($1, $2, $3)
		on conflict (tenant_id, user_id) do update set role = excluded.role
	`, tenantID, userID, role)
	return err
}

// GrantPermission adds one permission string to a role within a tenant.
func (s *Store) GrantPermission(ctx context.Context, tenantID, role, permission string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into management.role_permissions (tenant_id, role, permission)
		values ($1, $2, $3)
		on conflict do nothing
	`, tenantID, role, permission)
	return err
}
