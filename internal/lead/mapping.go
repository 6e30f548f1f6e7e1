package lead

import (
	"fmt"
	"strings"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/schema"
)

// CreateColumn as a Mapping value asks Prepare to append a column named after the field.
const CreateColumn = "[Create]"

// Mapping maps a logical field to a physical header name, or to CreateColumn.
type Mapping map[string]string

// MappingError lists every problem found while resolving a mapping.
type MappingError struct {
	Problems []string
}

func (e *MappingError) Error() string {
	return "lead: invalid column mapping: " + strings.Join(e.Problems, "; ")
}

// Layout is a resolved mapping: logical field to zero-based column index.
type Layout struct {
	Header  []string
	columns map[string]int
}

// Col returns the column of a logical field.
func (l *Layout) Col(field string) (int, bool) {
	if l == nil {
		return 0, false
	}
	c, ok := l.columns[field]
	return c, ok
}

// Fields returns the mapped logical fields in contract order.
func (l *Layout) Fields() []string {
	var out []string
	for _, name := range Contract().Names() {
		if _, ok := l.Col(name); ok {
			out = append(out, name)
		}
	}
	return out
}

// plan is the outcome of resolving a mapping against a header: the physical name per
// logical field and the columns that still have to be appended.
type plan struct {
	names   map[string]string
	creates []string
}

// resolve applies explicit entries, then header auto-matching, then defaults. Inputs must
// resolve to an existing column; state and output fields default to being created.
func resolve(header []string, m Mapping, contract schema.Contract) (plan, []string) {
	var problems []string
	counts := make(map[string]int, len(header))
	byNorm := make(map[string][]string, len(header))
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		counts[h]++
		if counts[h] == 1 {
			n := schema.NormalizeName(h)
			byNorm[n] = append(byNorm[n], h)
		}
	}

	for field := range m {
		if _, ok := contract.Lookup(field); !ok {
			problems = append(problems, fmt.Sprintf("unknown logical field %q", field))
		}
	}

	p := plan{names: map[string]string{}}
	usedBy := map[string]string{}
	for _, f := range contract.Fields {
		target := strings.TrimSpace(m[f.Name])
		explicit := target != ""
		if !explicit {
			switch cands := byNorm[schema.NormalizeName(f.Name)]; {
			case len(cands) == 1:
				target = cands[0]
			case len(cands) > 1:
				problems = append(problems, fmt.Sprintf("%s: headers %q all match; map it explicitly", f.Name, cands))
				continue
			case f.Role == schema.RoleState || f.Role == schema.RoleOutput:
				target = CreateColumn
			case f.Role == schema.RoleOptional:
				continue
			default:
				problems = append(problems, fmt.Sprintf("%s: no matching column and no mapping", f.Name))
				continue
			}
		}

		if target == CreateColumn {
			if f.Role == schema.RoleInput {
				problems = append(problems, fmt.Sprintf("%s: input fields cannot be created", f.Name))
				continue
			}
			target = f.Name
			if counts[target] == 0 {
				p.creates = append(p.creates, target)
				counts[target] = 1
			}
		} else if counts[target] == 0 {
			problems = append(problems, fmt.Sprintf("%s: mapped column %q not found", f.Name, target))
			continue
		}

		if counts[target] > 1 {
			problems = append(problems, fmt.Sprintf("%s: column %q appears %d times", f.Name, target, counts[target]))
			continue
		}
		if other, ok := usedBy[target]; ok {
			problems = append(problems, fmt.Sprintf("%s and %s both map to column %q", other, f.Name, target))
			continue
		}
		usedBy[target] = f.Name
		p.names[f.Name] = target
	}
	return p, problems
}

// buildLayout locates every planned column in header; each must occur exactly once.
func buildLayout(header []string, names map[string]string) (*Layout, []string) {
	var problems []string
	pos := map[string][]int{}
	for i, h := range header {
		pos[strings.TrimSpace(h)] = append(pos[strings.TrimSpace(h)], i)
	}
	l := &Layout{Header: append([]string(nil), header...), columns: map[string]int{}}
	for field, name := range names {
		switch idx := pos[name]; len(idx) {
		case 1:
			l.columns[field] = idx[0]
		case 0:
			problems = append(problems, fmt.Sprintf("%s: column %q missing after header update", field, name))
		default:
			problems = append(problems, fmt.Sprintf("%s: column %q appears %d times", field, name, len(idx)))
		}
	}
	return l, problems
}
