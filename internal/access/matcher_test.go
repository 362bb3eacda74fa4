package access

import "testing"

func TestMatches(t *testing.T) {
	cases := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"exact", []string{"grade.read"}, "grade.read", true},
		{"exact other action", []string{"grade.read"}, "grade.create", false},
		{"resource wildcard", []string{"grade.*"}, "grade.create", true},
		{"resource wildcard other resource", []string{"grade.*"}, "student.read", false},
		{"global wildcard", []string{"*"}, "anything.delete", true},
		{"union of grants", []string{"student.read", "grade.*"}, "grade.update", true},
		{"no grants", nil, "grade.read", false},
		{"empty required", []string{"*"}, "", false},
		{"wildcard is not a prefix match", []string{"grade.*"}, "grades.read", false},
		{"blank grants skipped", []string{"", "  "}, "grade.read", false},
	}
	for _, tc := range cases {
		if got := Matches(tc.granted, tc.required); got != tc.want {
			t.Fatalf("%s: Matches(%v, %q)=%v, want %v", tc.name, tc.granted, tc.required, got, tc.want)
		}
	}
}
