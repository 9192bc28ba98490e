package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestLoadFromFile_Rego(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep-mgmt.rego")
	if err := os.WriteFile(path, []byte(vlanPolicy), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := newTestLoader().loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}

	if p.Name != "keep-mgmt" {
		t.Errorf("Name = %s", p.Name)
	}
	if p.Severity != SeverityError || !p.Enabled || p.Builtin {
		t.Errorf("unexpected defaults %+v", p)
	}
	if p.Metadata["source"] != path {
		t.Errorf("source = %v", p.Metadata["source"])
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	def := Policy{
		Name:     "json-policy",
		Rego:     vlanPolicy,
		Severity: SeverityWarning,
		Enabled:  true,
		Builtin:  true,
	}
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := newTestLoader().loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}
	if p.Name != "json-policy" || p.Severity != SeverityWarning {
		t.Errorf("unexpected policy %+v", p)
	}
	if p.Builtin {
		t.Error("file policies can never be built-in")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"invalid.json":  "{",
		"nameless.json": `{"rego":"package x"}`,
		"policy.txt":    "hello",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	for name := range files {
		t.Run(name, func(t *testing.T) {
			if _, err := newTestLoader().loadFromFile(context.Background(), filepath.Join(dir, name)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(dir, "b.rego"):      vlanPolicy,
		filepath.Join(sub, "a.rego"):      vlanPolicy,
		filepath.Join(dir, "broken.json"): "{",
		filepath.Join(dir, "README.md"):   "ignored",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	policies, err := newTestLoader().LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].Name != "a" || policies[1].Name != "b" {
		t.Errorf("unexpected order %s, %s", policies[0].Name, policies[1].Name)
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	_, err := newTestLoader().LoadFromPaths(context.Background(), []string{"/nonexistent/policies"})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "leading comments", content: "# First line\n# second line\npackage x\n", want: "First line second line"},
		{name: "no comments", content: "package x\n", want: ""},
		{name: "stops at code", content: "# Top\npackage x\n# later\n", want: "Top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.want {
				t.Errorf("extractDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.rego")
	if err := os.WriteFile(path, []byte(vlanPolicy), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newTestLoader()
	if _, err := l.loadFromFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if len(l.cache) != 1 {
		t.Fatalf("expected 1 cached policy, got %d", len(l.cache))
	}

	l.ClearCache()
	if len(l.cache) != 0 {
		t.Errorf("expected empty cache, got %d", len(l.cache))
	}
}
