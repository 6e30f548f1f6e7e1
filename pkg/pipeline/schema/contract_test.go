package schema_test

import (
	"testing"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/schema"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "snake", in: "Prospect_Name", want: "prospectname"},
		{name: "spaced", in: " Prospect Name ", want: "prospectname"},
		{name: "upper", in: "STATUS", want: "status"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schema.NormalizeName(tt.in); got != tt.want {
				t.Fatalf("NormalizeName(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContractLookup(t *testing.T) {
	c := schema.Contract{Fields: []schema.Field{
		{Name: "Status", Role: schema.RoleState},
		{Name: "Sources", Role: schema.RoleOptional},
	}}

	f, ok := c.Lookup("Sources")
	if !ok || f.Required() {
		t.Fatalf("Sources should exist and be optional: %#v ok=%t", f, ok)
	}
	if _, ok := c.Lookup("Missing"); ok {
		t.Fatalf("unexpected lookup hit")
	}
	if names := c.Names(); len(names) != 2 || names[0] != "Status" {
		t.Fatalf("unexpected names: %v", names)
	}
}
