package lead

import (
	"fmt"
	"strings"
)

// SkipRule skips a lead whose Field value contains any keyword, case-insensitive.
type SkipRule struct {
	Field    string
	Keywords []string
}

// SkipRules are evaluated in order; the first match wins.
type SkipRules []SkipRule

// Match returns the reason of the first matching rule.
func (rs SkipRules) Match(l Lead) (string, bool) {
	for _, r := range rs {
		v := strings.ToLower(l.Values[r.Field])
		if v == "" {
			continue
		}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(v, kw) {
				return fmt.Sprintf("%s contains %q", r.Field, kw), true
			}
		}
	}
	return "", false
}
