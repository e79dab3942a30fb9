package store

import (
	"log/slog"
	"regexp"
	"strings"
)

// Predicate evaluates to true for rows that should be kept.
type Predicate func(Row) bool

var (
	eqPattern = regexp.MustCompile(`^\s*(\w+)\s*==\s*'([^']*)'\s*$`)
	inPattern = regexp.MustCompile(`^\s*(\w+)\s+in\s+\[([^\]]*)\]\s*$`)
)

// ParseFilter parses the minimal filter grammar: `field == 'lit'` and
// `field in ['a', 'b']`. An empty filter matches everything. An unparseable
// filter logs a warning and returns a predicate that matches everything,
// never an error — callers must never treat a bad filter as a hard failure.
func ParseFilter(filter string) Predicate {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return func(Row) bool { return true }
	}

	if m := eqPattern.FindStringSubmatch(filter); m != nil {
		field, lit := m[1], m[2]
		return func(r Row) bool { return fieldValue(r, field) == lit }
	}

	if m := inPattern.FindStringSubmatch(filter); m != nil {
		field := m[1]
		lits := splitQuotedList(m[2])
		set := make(map[string]struct{}, len(lits))
		for _, l := range lits {
			set[l] = struct{}{}
		}
		return func(r Row) bool {
			_, ok := set[fieldValue(r, field)]
			return ok
		}
	}

	slog.Warn("store: unparseable filter, returning unfiltered results", slog.String("filter", filter))
	return func(Row) bool { return true }
}

func fieldValue(r Row, field string) string {
	switch field {
	case "relativePath":
		return r.RelativePath
	case "fileExtension":
		return r.FileExtension
	case "id":
		return r.ID
	default:
		if v, ok := r.Metadata[field]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
}

func splitQuotedList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, "'")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
