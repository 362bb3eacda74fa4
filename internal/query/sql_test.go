package query

import (
	"net/url"
	"reflect"
	"testing"

	"ilkys.app/internal/entity"
	"ilkys.app/internal/tenant"
)

func gradesTable(t *testing.T) entity.TableRef {
	t.Helper()
	e, err := entity.Lookup("grades")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	tc, err := tenant.Parse("t1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return e.Table(tc)
}

func TestSelectSQL(t *testing.T) {
	values := url.Values{}
	values.Set("status", "final")
	values.Set("score[gte]", "50")
	values.Set("term[in]", "1,2")
	opts, err := ParseListOptions(values)
	if err != nil {
		t.Fatalf("ParseListOptions: %v", err)
	}

	sql, args := SelectSQL(gradesTable(t), opts)
	want := `select * from "tenant_t1"."grades" where score >= $1 and status = $2 and term in ($3,$4) order by created_at desc limit $5 offset $6`
	if sql != want {
		t.Fatalf("sql mismatch:\n got %s\nwant %s", sql, want)
	}
	wantArgs := []any{"50", "final", "1", "2", 50, 0}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args mismatch: %v", args)
	}
}

func TestCountSQLNoFilters(t *testing.T) {
	sql, args := CountSQL(gradesTable(t), nil)
	if sql != `select count(*) from "tenant_t1"."grades"` {
		t.Fatalf("unexpected sql %q", sql)
	}
	if len(args) != 0 {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestInsertSQL(t *testing.T) {
	sql, args, err := InsertSQL(gradesTable(t), map[string]any{
		"id":        "01J",
		"score":     90,
		"tenant_id": "t1",
	})
	if err != nil {
		t.Fatalf("InsertSQL: %v", err)
	}
	want := `insert into "tenant_t1"."grades" (id, score, tenant_id) values ($1, $2, $3) returning *`
	if sql != want {
		t.Fatalf("sql mismatch:\n got %s\nwant %s", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"01J", 90, "t1"}) {
		t.Fatalf("args mismatch: %v", args)
	}

	if _, _, err := InsertSQL(gradesTable(t), map[string]any{"bad col": 1}); err == nil {
		t.Fatal("expected error for invalid column")
	}
}

func TestUpdateSQL(t *testing.T) {
	filters, err := EqualityFilters(map[string]any{"class_id": "c1"})
	if err != nil {
		t.Fatalf("EqualityFilters: %v", err)
	}
	sql, args, err := UpdateSQL(gradesTable(t), map[string]any{"score": 75, "updated_by": "u1"}, filters)
	if err != nil {
		t.Fatalf("UpdateSQL: %v", err)
	}
	want := `update "tenant_t1"."grades" set score = $1, updated_by = $2 where class_id = $3 returning *`
	if sql != want {
		t.Fatalf("sql mismatch:\n got %s\nwant %s", sql, want)
	}
	if !reflect.DeepEqual(args, []any{75, "u1", "c1"}) {
		t.Fatalf("args mismatch: %v", args)
	}

	if _, _, err := UpdateSQL(gradesTable(t), map[string]any{"score": 1}, nil); err == nil {
		t.Fatal("expected error for missing filter")
	}
}

func TestDeleteSQL(t *testing.T) {
	filters, err := EqualityFilters(map[string]any{"id": "01J"})
	if err != nil {
		t.Fatalf("EqualityFilters: %v", err)
	}
	sql, args, err := DeleteSQL(gradesTable(t), filters)
	if err != nil {
		t.Fatalf("DeleteSQL: %v", err)
	}
	if sql != `delete from "tenant_t1"."grades" where id = $1` {
		t.Fatalf("unexpected sql %q", sql)
	}
	if !reflect.DeepEqual(args, []any{"01J"}) {
		t.Fatalf("args mismatch: %v", args)
	}

	if _, _, err := DeleteSQL(gradesTable(t), nil); err == nil {
		t.Fatal("expected error for missing filter")
	}
}
