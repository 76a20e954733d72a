package catalog

import (
	"strings"

	"github.com/xraph/vercel/event"
)

// Match reports whether an event type matches a subscription pattern.
//
//	"deployment.ready"  exact
//	"deployment.*"      any single trailing segment
//	"*"                 everything
func Match(pattern string, t event.Type) bool {
	if pattern == "*" || pattern == string(t) {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	typeParts := strings.Split(string(t), ".")
	if len(patternParts) != len(typeParts) {
		return false
	}
	for i, pp := range patternParts {
		if pp != "*" && pp != typeParts[i] {
			return false
		}
	}
	return true
}

// MatchAny reports whether t matches at least one pattern.
func MatchAny(patterns []string, t event.Type) bool {
	for _, p := range patterns {
		if Match(p, t) {
			return true
		}
	}
	return false
}

// Expand returns every recognised event type matched by the patterns, in
// declaration order.
func Expand(patterns ...string) []event.Type {
	var out []event.Type
	for _, t := range event.Types() {
		if MatchAny(patterns, t) {
			out = append(out, t)
		}
	}
	return out
}
