package pg

import (
	"context"
	"fmt"
	"strings"

	"ilkys.app/internal/entity"
	"ilkys.app/internal/query"
	"ilkys.app/internal/tenant"
)

// List runs the page query and its exact-count companion, then resolves any
// requested expansions. Returns the page of rows and the exact filtered count.
func (s *Store) List(ctx context.Context, tc tenant.Context, e entity.Entity, opts query.ListOptions) ([]map[string]any, int64, error) {
	table := e.Table(tc)

	sqlText, args := query.SelectSQL(table, opts)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, 0, err
	}
	result, err := func() ([]map[string]any, error) {
		defer rows.Close()
		return scanRows(rows)
	}()
	if err != nil {
		return nil, 0, err
	}

	countText, countArgs := query.CountSQL(table, opts.Filters)
	var total int64
	if err := s.db.QueryRowContext(ctx, countText, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	for _, rel := range opts.Expand {
		if err := s.expand(ctx, tc, result, rel); err != nil {
			return nil, 0, err
		}
	}
	return result, total, nil
}

// expand embeds related rows under the relation's resource name. The foreign
// key column is "<resource>_id" on the listed rows; rows without it are left
// untouched.
func (s *Store) expand(ctx context.Context, tc tenant.Context, rows []map[string]any, rel string) error {
	related, err := entity.Lookup(rel)
	if err != nil {
		return fmt.Errorf("%w: expand target %q is not an entity", query.ErrInvalid, rel)
	}
	fkColumn := related.Resource + "_id"

	seen := map[string]struct{}{}
	var keys []string
	for _, row := range rows {
		v, ok := row[fkColumn]
		if !ok || v == nil {
			continue
		}
		key := fmt.Sprintf("%v", v)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}

	holes := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		holes[i] = fmt.Sprintf("$%d", i+1)
		args[i] = k
	}
	relRows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"select * from %s where id in (%s)", related.Table(tc), strings.Join(holes, ","),
	), args...)
	if err != nil {
		return err
	}
	relMaps, err := func() ([]map[string]any, error) {
		defer relRows.Close()
		return scanRows(relRows)
	}()
	if err != nil {
		return err
	}

	byID := make(map[string]map[string]any, len(relMaps))
	for _, rm := range relMaps {
		if id, ok := rm["id"]; ok {
			byID[fmt.Sprintf("%v", id)] = rm
		}
	}
	for _, row := range rows {
		v, ok := row[fkColumn]
		if !ok || v == nil {
			continue
		}
		if rm, found := byID[fmt.Sprintf("%v", v)]; found {
			row[related.Resource] = rm
		}
	}
	return nil
}

// Insert stores one row and returns it as persisted.
func (s *Store) Insert(ctx context.Context, tc tenant.Context, e entity.Entity, row map[string]any) (map[string]any, error) {
	sqlText, args, err := query.InsertSQL(e.Table(tc), row)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	out, err := func() ([]map[string]any, error) {
		defer rows.Close()
		return scanRows(rows)
	}()
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return out[0], nil
}

// selectWhere fetches the full row set matching the filters, used for
// pre-image capture before batch mutations.
func (s *Store) selectWhere(ctx context.Context, table entity.TableRef, filters []query.Filter) ([]map[string]any, error) {
	where, args := query.WhereClause(filters, 1)
	sqlText := fmt.Sprintf("select * from %s", table)
	if where != "" {
		sqlText += " where " + where
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// UpdateWhere captures the pre-image, applies the batch update and returns
// both images. A pre-image failure aborts before any mutation.
func (s *Store) UpdateWhere(ctx context.Context, tc tenant.Context, e entity.Entity, set map[string]any, filters []query.Filter) (pre, post []map[string]any, err error) {
	table := e.Table(tc)
	pre, err = s.selectWhere(ctx, table, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pre-image: %w", err)
	}

	sqlText, args, err := query.UpdateSQL(table, set, filters)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, err
	}
	post, err = func() ([]map[string]any, error) {
		defer rows.Close()
		return scanRows(rows)
	}()
	if err != nil {
		return nil, nil, err
	}
	return pre, post, nil
}

// DeleteWhere captures the pre-image and deletes the matching rows.
func (s *Store) DeleteWhere(ctx context.Context, tc tenant.Context, e entity.Entity, filters []query.Filter) (pre []map[string]any, deleted int64, err error) {
	table := e.Table(tc)
	pre, err = s.selectWhere(ctx, table, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch pre-image: %w", err)
	}

	sqlText, args, err := query.DeleteSQL(table, filters)
	if err != nil {
		return nil, 0, err
	}
	res, err := s.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, 0, err
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return nil, 0, err
	}
	return pre, deleted, nil
}
