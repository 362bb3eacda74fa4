package access

import "strings"

// Matches reports whether one of the granted permission strings satisfies the
// required "<resource>.<action>" permission. A grant matches exactly, as a
// resource wildcard ("grade.*"), or as the global wildcard ("*").
func Matches(granted []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return false
	}
	for _, g := range granted {
		g = strings.TrimSpace(g)
		switch {
		case g == "":
			continue
		case g == "*":
			return true
		case g == required:
			return true
		case strings.HasSuffix(g, ".*") && strings.HasPrefix(required, g[:len(g)-1]):
			return true
		}
	}
	return false
}
