package server

import "testing"

func TestParseTenantsYAML(t *testing.T) {
	m, err := parseTenantsYAML([]byte(`
version: 1
tenants:
  - id: t-1
    domain: one.example
    name: One
  - id: t-2
    domain: two.example
    name: Two
`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(m) != 2 {
		t.Fatalf("tenants=%d want=2", len(m))
	}
	if m["one.example"].ID != "t-1" {
		t.Fatalf("tenant=%+v", m["one.example"])
	}
}

func TestParseTenantsYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad version", "version: 2\ntenants:\n  - id: t\n    domain: d"},
		{"empty", "version: 1\ntenants: []"},
		{"missing domain", "version: 1\ntenants:\n  - id: t"},
		{"missing id", "version: 1\ntenants:\n  - domain: d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTenantsYAML([]byte(tt.in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
