package schema

import (
	"strings"
)

// Role captures how the pipeline uses a logical column.
type Role string

const (
	RoleInput    Role = "input"
	RoleState    Role = "state"
	RoleOutput   Role = "output"
	RoleOptional Role = "optional"
)

// Field is one logical column of a tabular lead source.
type Field struct {
	Name        string
	Role        Role
	Description string
}

// Required reports whether the field must resolve to a physical column.
func (f Field) Required() bool {
	return f.Role != RoleOptional
}

// Contract is the ordered set of logical columns a run needs.
type Contract struct {
	Fields []Field
}

// Lookup returns the field with the given logical name.
func (c Contract) Lookup(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the logical names in contract order.
func (c Contract) Names() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// NormalizeName folds a header for loose matching: lower-case with '_' and
// spaces removed, so "Prospect Name" and "prospect_name" compare equal.
func NormalizeName(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
