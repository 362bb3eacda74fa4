// Package entity defines the fixed catalog of resources exposed through the
// generic CRUD route and maps each one to its tenant-scoped table.
package entity

import (
	"errors"
	"sort"

	"ilkys.app/internal/tenant"
)

// ErrUnknown is returned for entity names outside the catalog. Handlers must
// reject these before any database access.
var ErrUnknown = errors.New("entity: unknown entity")

// Entity describes one catalog member. Resource is the noun used in
// permission strings; it defaults to the entity name and is overridden where
// the permission vocabulary uses the singular form.
type Entity struct {
	Name     string
	Resource string
}

var catalog = map[string]Entity{
	"students":      {Name: "students", Resource: "student"},
	"teachers":      {Name: "teachers", Resource: "teacher"},
	"classes":       {Name: "classes", Resource: "class"},
	"courses":       {Name: "courses", Resource: "course"},
	"lessons":       {Name: "lessons", Resource: "lesson"},
	"attendance":    {Name: "attendance", Resource: "attendance"},
	"grades":        {Name: "grades", Resource: "grade"},
	"exams":         {Name: "exams", Resource: "exam"},
	"homework":      {Name: "homework", Resource: "homework"},
	"announcements": {Name: "announcements", Resource: "announcement"},
	"events":        {Name: "events", Resource: "event"},
	"documents":     {Name: "documents", Resource: "document"},
	"reports":       {Name: "reports", Resource: "report"},
}

// Lookup validates an entity name against the catalog.
func Lookup(name string) (Entity, error) {
	e, ok := catalog[name]
	if !ok {
		return Entity{}, ErrUnknown
	}
	return e, nil
}

// Names returns the catalog entity names in stable order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Permission builds the permission string required for an action on this
// entity, e.g. grades + read -> "grade.read".
func (e Entity) Permission(action string) string {
	return e.Resource + "." + action
}

// Table returns the tenant-scoped table reference for this entity.
func (e Entity) Table(tc tenant.Context) TableRef {
	return TableRef{Schema: tc.Schema(), Name: e.Name}
}

// TableRef is a schema-qualified table. Both parts come from validated
// vocabulary (tenant id pattern, entity catalog), never from raw input.
type TableRef struct {
	Schema string
	Name   string
}

// String renders the quoted identifier for SQL text.
func (t TableRef) String() string {
	return `"` + t.Schema + `"."` + t.Name + `"`
}
