package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thomasrohde/pairlisp/pkg/config"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestLoadProjectFile(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ProjectFile), `{"maxSteps": 500, "timeMs": 20}`)

	c, path, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, config.ProjectFile) {
		t.Errorf("path = %q", path)
	}
	if c.MaxSteps == nil || *c.MaxSteps != 500 {
		t.Errorf("maxSteps = %v", c.MaxSteps)
	}
	if c.MaxDepth != nil {
		t.Errorf("maxDepth should be unset, got %d", *c.MaxDepth)
	}
	if c.TimeMs == nil || *c.TimeMs != 20 {
		t.Errorf("timeMs = %v", c.TimeMs)
	}
}

func TestLoadUserFileWhenNoProjectFile(t *testing.T) {
	home := isolateHome(t)
	writeFile(t, filepath.Join(home, ".pairlisp", "config.json"), `{"maxDepth": 64}`)

	c, path, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(".pairlisp", "config.json")) {
		t.Errorf("path = %q", path)
	}
	if c.MaxDepth == nil || *c.MaxDepth != 64 {
		t.Errorf("maxDepth = %v", c.MaxDepth)
	}
}

func TestLoadProjectBeatsUser(t *testing.T) {
	home := isolateHome(t)
	writeFile(t, filepath.Join(home, ".pairlisp", "config.json"), `{"maxSteps": 1}`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ProjectFile), `{"maxSteps": 2}`)

	c, _, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *c.MaxSteps != 2 {
		t.Errorf("maxSteps = %d, want 2", *c.MaxSteps)
	}
}

func TestLoadDefault(t *testing.T) {
	isolateHome(t)
	c, path, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if c.Budget() != (evaluator.Budget{}) {
		t.Errorf("expected zero budget, got %+v", c.Budget())
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	isolateHome(t)
	tests := []string{
		`{"maxSteps": `,
		`{"maxSteps": "ten"}`,
		`{"maxDepth": 0}`,
		`{"timeMs": -5}`,
	}
	for _, content := range tests {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, config.ProjectFile), content)
		if _, _, err := config.Load(dir); err == nil {
			t.Errorf("expected error for %s", content)
		}
	}
}

func TestOverride(t *testing.T) {
	base := &config.Config{MaxSteps: evaluator.Int64(10), TimeMs: evaluator.Int64(5)}
	got := base.Override(config.Config{MaxSteps: evaluator.Int64(99), MaxDepth: evaluator.Int64(7)})

	if *got.MaxSteps != 99 || *got.MaxDepth != 7 || *got.TimeMs != 5 {
		t.Errorf("unexpected override result: steps=%d depth=%d time=%d", *got.MaxSteps, *got.MaxDepth, *got.TimeMs)
	}
	if *base.MaxSteps != 10 {
		t.Error("Override must not modify the receiver")
	}

	var none *config.Config
	if b := none.Override(config.Config{}).Budget(); b != (evaluator.Budget{}) {
		t.Errorf("nil override = %+v", b)
	}
}
