package query

import (
	"fmt"
	"sort"
	"strings"

	"ilkys.app/internal/entity"
)

var sqlOps = map[string]string{
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpGreaterThan:  ">",
	OpGreaterEqual: ">=",
	OpLessThan:     "<",
	OpLessEqual:    "<=",
	OpLike:         "like",
	OpILike:        "ilike",
}

// WhereClause renders filters as an AND conjunction with $n placeholders
// starting at argStart. Returns the clause without the "where" keyword.
func WhereClause(filters []Filter, argStart int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var (
		parts []string
		args  []any
		n     = argStart
	)
	for _, f := range filters {
		if f.Operator == OpIn {
			holes := make([]string, len(f.Values))
			for i, v := range f.Values {
				holes[i] = fmt.Sprintf("$%d", n)
				args = append(args, v)
				n++
			}
			parts = append(parts, fmt.Sprintf("%s in (%s)", f.Field, strings.Join(holes, ",")))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", f.Field, sqlOps[f.Operator], n))
		args = append(args, f.Value)
		n++
	}
	return strings.Join(parts, " and "), args
}

// SelectSQL renders the page query for a list request.
func SelectSQL(table entity.TableRef, opts ListOptions) (string, []any) {
	where, args := WhereClause(opts.Filters, 1)
	var b strings.Builder
	fmt.Fprintf(&b, "select * from %s", table)
	if where != "" {
		b.WriteString(" where " + where)
	}
	// OrderBy/OrderDir passed validation in ParseListOptions.
	fmt.Fprintf(&b, " order by %s %s", opts.OrderBy, opts.OrderDir)
	fmt.Fprintf(&b, " limit $%d offset $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)
	return b.String(), args
}

// CountSQL renders the exact-count companion of SelectSQL.
func CountSQL(table entity.TableRef, filters []Filter) (string, []any) {
	where, args := WhereClause(filters, 1)
	sql := fmt.Sprintf("select count(*) from %s", table)
	if where != "" {
		sql += " where " + where
	}
	return sql, args
}

// InsertSQL renders a single-row insert returning the stored row. Columns are
// ordered deterministically so tests can assert on the statement.
func InsertSQL(table entity.TableRef, row map[string]any) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("%w: empty insert payload", ErrInvalid)
	}
	cols := make([]string, 0, len(row))
	for col := range row {
		if !identPattern.MatchString(col) {
			return "", nil, fmt.Errorf("%w: column %q is not valid", ErrInvalid, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	holes := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		holes[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}
	sql := fmt.Sprintf("insert into %s (%s) values (%s) returning *",
		table, strings.Join(cols, ", "), strings.Join(holes, ", "))
	return sql, args, nil
}

// UpdateSQL renders a filtered batch update returning the post-image rows.
func UpdateSQL(table entity.TableRef, set map[string]any, filters []Filter) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, fmt.Errorf("%w: empty update payload", ErrInvalid)
	}
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("%w: update requires a filter", ErrInvalid)
	}
	cols := make([]string, 0, len(set))
	for col := range set {
		if !identPattern.MatchString(col) {
			return "", nil, fmt.Errorf("%w: column %q is not valid", ErrInvalid, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	assigns := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		assigns[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, set[col])
	}
	where, whereArgs := WhereClause(filters, len(args)+1)
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("update %s set %s where %s returning *",
		table, strings.Join(assigns, ", "), where)
	return sql, args, nil
}

// DeleteSQL renders a filtered batch delete.
func DeleteSQL(table entity.TableRef, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("%w: delete requires a filter", ErrInvalid)
	}
	where, args := WhereClause(filters, 1)
	return fmt.Sprintf("delete from %s where %s", table, where), args, nil
}
