package engine

import (
	"encoding/json"
	"testing"
)

func TestParseDeclaration(t *testing.T) {
	decl, err := ParseDeclaration([]byte(`{
		"schemaVersion": "1.0.0",
		"class": "Device",
		"Common": {
			"hostname": "bigip.example.com",
			"VLAN": {"zeta": {"tag": 10}, "alpha": {"tag": 20}},
			"Broken": "oops"
		}
	}`))
	if err != nil {
		t.Fatalf("ParseDeclaration() error = %v", err)
	}

	if len(decl) != 1 {
		t.Errorf("expected only the Common partition, got %d entries", len(decl))
	}

	vlans := decl.Instances("Common", "VLAN")
	if got := vlans.Names(); !equalStrings(got, []string{"zeta", "alpha"}) {
		t.Errorf("Names() = %v, want document order", got)
	}
	body, ok := vlans.Body("alpha")
	if !ok || string(body) != `{"tag": 20}` {
		t.Errorf("Body(alpha) = %s, %v", body, ok)
	}

	if n := decl.Instances("Common", "hostname").Len(); n != 0 {
		t.Errorf("scalar section should be empty, got %d", n)
	}
	if n := decl.Instances("Common", "Broken").Len(); n != 0 {
		t.Errorf("malformed section should be empty, got %d", n)
	}
	if decl.Instances("Missing", "VLAN").Has("zeta") {
		t.Error("missing partition should have no instances")
	}
}

func TestParseDeclaration_Invalid(t *testing.T) {
	for _, input := range []string{``, `[]`, `{"Common":`} {
		if _, err := ParseDeclaration([]byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestInstances_Set(t *testing.T) {
	s := NewInstances("b", "a")
	s.Set("c", json.RawMessage(`{"x":1}`))
	s.Set("a", json.RawMessage(`{"x":2}`))

	if got := s.Names(); !equalStrings(got, []string{"b", "a", "c"}) {
		t.Errorf("Names() = %v", got)
	}
	if body, _ := s.Body("a"); string(body) != `{"x":2}` {
		t.Errorf("Body(a) = %s", body)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"b":{},"a":{"x":2},"c":{"x":1}}` {
		t.Errorf("Marshal() = %s", data)
	}
}

func TestInstances_NilSafe(t *testing.T) {
	var s *Instances
	if s.Len() != 0 || s.Has("x") || s.Names() != nil {
		t.Error("nil instances should behave as empty")
	}
	if _, ok := s.Body("x"); ok {
		t.Error("nil instances should have no bodies")
	}
	var zero Instances
	zero.Set("x", nil)
	if !zero.Has("x") {
		t.Error("zero value should accept Set")
	}
}

func TestIsLocalOnly(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"localOnly":true}`, true},
		{`{"localOnly":false}`, false},
		{`{}`, false},
		{`{"localOnly":"yes"}`, false},
		{`null`, false},
		{``, false},
	}

	for _, tt := range tests {
		if got := isLocalOnly(json.RawMessage(tt.body)); got != tt.want {
			t.Errorf("isLocalOnly(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
