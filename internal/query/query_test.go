package query

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseListOptionsDefaults(t *testing.T) {
	opts, err := ParseListOptions(url.Values{})
	if err != nil {
		t.Fatalf("ParseListOptions: %v", err)
	}
	if opts.Limit != 50 || opts.Offset != 0 {
		t.Fatalf("unexpected pagination defaults: %+v", opts)
	}
	if opts.OrderBy != "created_at" || opts.OrderDir != "desc" {
		t.Fatalf("unexpected ordering defaults: %+v", opts)
	}
	if len(opts.Filters) != 0 {
		t.Fatalf("expected no filters, got %v", opts.Filters)
	}
}

func TestParseListOptionsFilters(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "10")
	values.Set("offset", "20")
	values.Set("orderBy", "name")
	values.Set("orderDir", "ASC")
	values.Set("expand", "students, classes")
	values.Set("status", "active")
	values.Set("age[gte]", "12")
	values.Set("name[ilike]", "ali")
	values.Set("grade[in]", "a,b, c")

	opts, err := ParseListOptions(values)
	if err != nil {
		t.Fatalf("ParseListOptions: %v", err)
	}
	if opts.Limit != 10 || opts.Offset != 20 {
		t.Fatalf("pagination not applied: %+v", opts)
	}
	if opts.OrderBy != "name" || opts.OrderDir != "asc" {
		t.Fatalf("ordering not applied: %+v", opts)
	}
	if len(opts.Expand) != 2 || opts.Expand[0] != "students" || opts.Expand[1] != "classes" {
		t.Fatalf("expand not parsed: %v", opts.Expand)
	}

	// Filters come out sorted by key for deterministic SQL.
	if len(opts.Filters) != 4 {
		t.Fatalf("expected 4 filters, got %v", opts.Filters)
	}
	byField := map[string]Filter{}
	for _, f := range opts.Filters {
		byField[f.Field] = f
	}
	if f := byField["status"]; f.Operator != OpEqual || f.Value != "active" {
		t.Fatalf("bare key should be equality: %+v", f)
	}
	if f := byField["age"]; f.Operator != OpGreaterEqual || f.Value != "12" {
		t.Fatalf("bracket operator not parsed: %+v", f)
	}
	if f := byField["name"]; f.Operator != OpILike || f.Value != "%ali%" {
		t.Fatalf("ilike value not wrapped: %+v", f)
	}
	f := byField["grade"]
	if f.Operator != OpIn || len(f.Values) != 3 || f.Values[2] != "c" {
		t.Fatalf("in filter not split: %+v", f)
	}
}

func TestParseListOptionsRejectsBadInput(t *testing.T) {
	cases := []url.Values{
		{"limit": {"abc"}},
		{"limit": {"-1"}},
		{"orderBy": {"name; drop table students"}},
		{"orderDir": {"sideways"}},
		{"age[between]": {"1,2"}},
		{"bad field[eq]": {"x"}},
		{"age[gte": {"12"}},
		{"grade[in]": {" , "}},
		{"expand": {"class rooms"}},
	}
	for _, values := range cases {
		if _, err := ParseListOptions(values); !errors.Is(err, ErrInvalid) {
			t.Fatalf("values %v: expected ErrInvalid, got %v", values, err)
		}
	}
}

func TestEqualityFilters(t *testing.T) {
	filters, err := EqualityFilters(map[string]any{"class_id": "c1", "status": "active"})
	if err != nil {
		t.Fatalf("EqualityFilters: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %v", filters)
	}
	if filters[0].Field != "class_id" || filters[1].Field != "status" {
		t.Fatalf("filters not sorted: %v", filters)
	}

	if _, err := EqualityFilters(nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty filter, got %v", err)
	}
	if _, err := EqualityFilters(map[string]any{"no good": 1}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad field, got %v", err)
	}
}
