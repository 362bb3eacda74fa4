package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"ilkys.app/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Append writes one audit entry. The trail is append-only; nothing in this
// codebase reads it back.
func (s *Store) Append(ctx context.Context, ev *audit.Event) error {
	previous, err := marshalState(ev.Previous)
	if err != nil {
		return fmt.Errorf("marshal previous state: %w", err)
	}
	next, err := marshalState(ev.New)
	if err != nil {
		return fmt.Errorf("marshal new state: %w", err)
	}
	metadata, err := marshalState(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		insert into management.audit_logs
			(id, tenant_id, actor_id, action, resource_type, resource_id,
			 description, previous_state, new_state, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.ID, ev.TenantID, ev.ActorID, ev.Action, ev.ResourceType, ev.ResourceID,
		ev.Description, previous, next, metadata, ev.At)
	return err
}

func marshalState(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
