// Package query translates list-endpoint query strings into validated filter,
// pagination and ordering options, and renders them as parameterized SQL.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid wraps every malformed query-string condition. Handlers map it to
// a 400 response. Unknown filter operators are rejected rather than silently
// skipped: a dropped predicate widens the result set on malformed input.
var ErrInvalid = errors.New("query: invalid parameter")

const (
	defaultLimit    = 50
	defaultOrderBy  = "created_at"
	defaultOrderDir = "desc"
)

// Operators accepted in bracket position, e.g. age[gte]=18.
const (
	OpEqual        = "eq"
	OpNotEqual     = "neq"
	OpGreaterThan  = "gt"
	OpGreaterEqual = "gte"
	OpLessThan     = "lt"
	OpLessEqual    = "lte"
	OpLike         = "like"
	OpILike        = "ilike"
	OpIn           = "in"
)

var reservedKeys = map[string]struct{}{
	"limit":    {},
	"offset":   {},
	"orderBy":  {},
	"orderDir": {},
	"expand":   {},
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Filter is one predicate parsed from the query string or a mutation body.
// Filters always combine as a conjunction.
type Filter struct {
	Field    string
	Operator string
	Value    any      // single-value operators
	Values   []string // OpIn
}

// ListOptions is the full translation of a list request's query string.
type ListOptions struct {
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string
	Expand   []string
	Filters  []Filter
}

// ParseListOptions translates url values into ListOptions. Any key outside
// the reserved set becomes a filter; a bare key means equality.
func ParseListOptions(values url.Values) (ListOptions, error) {
	opts := ListOptions{
		Limit:    defaultLimit,
		OrderBy:  defaultOrderBy,
		OrderDir: defaultOrderDir,
	}

	var err error
	if opts.Limit, err = parseBound(values.Get("limit"), defaultLimit); err != nil {
		return ListOptions{}, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalid)
	}
	if opts.Offset, err = parseBound(values.Get("offset"), 0); err != nil {
		return ListOptions{}, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalid)
	}

	if v := strings.TrimSpace(values.Get("orderBy")); v != "" {
		if !identPattern.MatchString(v) {
			return ListOptions{}, fmt.Errorf("%w: orderBy %q is not a valid column", ErrInvalid, v)
		}
		opts.OrderBy = v
	}
	if v := strings.ToLower(strings.TrimSpace(values.Get("orderDir"))); v != "" {
		if v != "asc" && v != "desc" {
			return ListOptions{}, fmt.Errorf("%w: orderDir must be asc or desc", ErrInvalid)
		}
		opts.OrderDir = v
	}

	if v := strings.TrimSpace(values.Get("expand")); v != "" {
		for _, rel := range strings.Split(v, ",") {
			rel = strings.TrimSpace(rel)
			if rel == "" {
				continue
			}
			if !identPattern.MatchString(rel) {
				return ListOptions{}, fmt.Errorf("%w: expand target %q is not valid", ErrInvalid, rel)
			}
			opts.Expand = append(opts.Expand, rel)
		}
	}

	// Filters apply in a stable order so repeated queries render identical SQL.
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, err := parseFilter(key, values.Get(key))
		if err != nil {
			return ListOptions{}, err
		}
		opts.Filters = append(opts.Filters, f)
	}
	return opts, nil
}

func parseBound(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalid
	}
	return n, nil
}

func parseFilter(key, value string) (Filter, error) {
	field := key
	op := OpEqual
	if i := strings.IndexByte(key, '['); i >= 0 {
		if !strings.HasSuffix(key, "]") {
			return Filter{}, fmt.Errorf("%w: malformed filter key %q", ErrInvalid, key)
		}
		field = key[:i]
		op = key[i+1 : len(key)-1]
	}
	if !identPattern.MatchString(field) {
		return Filter{}, fmt.Errorf("%w: filter field %q is not a valid column", ErrInvalid, field)
	}

	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		return Filter{Field: field, Operator: op, Value: value}, nil
	case OpLike, OpILike:
		return Filter{Field: field, Operator: op, Value: "%" + value + "%"}, nil
	case OpIn:
		parts := strings.Split(value, ",")
		vals := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				vals = append(vals, p)
			}
		}
		if len(vals) == 0 {
			return Filter{}, fmt.Errorf("%w: in filter on %q needs at least one value", ErrInvalid, field)
		}
		return Filter{Field: field, Operator: OpIn, Values: vals}, nil
	default:
		return Filter{}, fmt.Errorf("%w: unknown filter operator %q", ErrInvalid, op)
	}
}

// EqualityFilters converts a mutation body filter object into equality
// predicates. An empty map is rejected; batch mutations must be scoped.
func EqualityFilters(raw map[string]any) ([]Filter, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: filter must not be empty", ErrInvalid)
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		if !identPattern.MatchString(key) {
			return nil, fmt.Errorf("%w: filter field %q is not a valid column", ErrInvalid, key)
		}
		filters = append(filters, Filter{Field: key, Operator: OpEqual, Value: raw[key]})
	}
	return filters, nil
}

// ValidColumn reports whether name is usable in identifier position.
func ValidColumn(name string) bool {
	return identPattern.MatchString(name)
}
