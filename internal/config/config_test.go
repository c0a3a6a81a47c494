package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := NewLoader().WithSearchPaths(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Branches.Main != "main" || cfg.Branches.Develop != "develop" {
		t.Errorf("branches = %+v, want main/develop defaults", cfg.Branches)
	}
	if cfg.Branches.ReleasePrefix != "release/" {
		t.Errorf("release prefix = %q, want release/", cfg.Branches.ReleasePrefix)
	}
	if cfg.Changelog.File != "CHANGELOG.md" {
		t.Errorf("changelog file = %q, want CHANGELOG.md", cfg.Changelog.File)
	}
	if cfg.Resilience.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.Resilience.RetryAttempts)
	}
	if len(cfg.Environments) != 2 {
		t.Errorf("environments = %v, want staging and production", cfg.Environments)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "branchflow.yaml", `
branches:
  main: trunk
  develop: integration
tagging:
  prefix: v
lines:
  - id: "1.x"
    tier: lts
    base_version: "1.0.0"
    support_until: "2026-01-01"
    admit: [fix]
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Branches.Main != "trunk" || cfg.Branches.Develop != "integration" {
		t.Errorf("branches = %+v, want trunk/integration", cfg.Branches)
	}
	// Unset keys keep their defaults.
	if cfg.Branches.ReleasePrefix != "release/" {
		t.Errorf("release prefix = %q, want default", cfg.Branches.ReleasePrefix)
	}
	if len(cfg.Lines) != 1 || cfg.Lines[0].ID != "1.x" {
		t.Fatalf("lines = %+v, want one 1.x line", cfg.Lines)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "branchflow.toml", `
[branches]
main = "trunk"

[changelog]
file = "HISTORY.md"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Branches.Main != "trunk" {
		t.Errorf("main = %q, want trunk", cfg.Branches.Main)
	}
	if cfg.Changelog.File != "HISTORY.md" {
		t.Errorf("changelog file = %q, want HISTORY.md", cfg.Changelog.File)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "branchflow.yaml", `
branches:
  main: trunk
  develop: trunk
`)

	_, err := NewLoader().WithConfigPath(path).Load()
	if !errors.IsKind(err, errors.KindConfig) {
		t.Fatalf("Load = %v, want KindConfig", err)
	}
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name    string
		lines   []LineConfig
		wantErr bool
	}{
		{
			name: "valid lts and current",
			lines: []LineConfig{
				{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0", Admit: []string{"fix"}},
				{ID: "2.x", Tier: "current", BaseVersion: "2.0.0", Admit: []string{"fix", "feature"}},
			},
		},
		{
			name: "two current lines",
			lines: []LineConfig{
				{ID: "2.x", Tier: "current", BaseVersion: "2.0.0"},
				{ID: "3.x", Tier: "current", BaseVersion: "3.0.0"},
			},
			wantErr: true,
		},
		{
			name: "multiple lts lines allowed",
			lines: []LineConfig{
				{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0"},
				{ID: "2.x", Tier: "lts", BaseVersion: "2.0.0"},
			},
		},
		{
			name: "duplicate id",
			lines: []LineConfig{
				{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0"},
				{ID: "1.x", Tier: "lts", BaseVersion: "1.1.0"},
			},
			wantErr: true,
		},
		{
			name:    "bad tier",
			lines:   []LineConfig{{ID: "1.x", Tier: "legacy", BaseVersion: "1.0.0"}},
			wantErr: true,
		},
		{
			name:    "bad base version",
			lines:   []LineConfig{{ID: "1.x", Tier: "lts", BaseVersion: "one"}},
			wantErr: true,
		},
		{
			name:    "bad support date",
			lines:   []LineConfig{{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0", SupportUntil: "eventually"}},
			wantErr: true,
		},
		{
			name:    "bad admit class",
			lines:   []LineConfig{{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0", Admit: []string{"vibes"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLines(tt.lines)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateLines = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lines = []LineConfig{
		{ID: "1.x", Tier: "lts", BaseVersion: "1.0.0", SupportUntil: "2026-01-01", Admit: []string{"fix"}},
		{ID: "2.x", Tier: "current", BaseVersion: "2.0.0", Admit: []string{"fix", "feature"}},
	}

	registry, err := BuildRegistry(cfg)
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	line, err := registry.Get("1.x")
	if err != nil {
		t.Fatalf("Get(1.x): %v", err)
	}
	if !line.Admits(changes.ClassFix) {
		t.Error("lts line does not admit fixes")
	}
	if line.Admits(changes.ClassFeature) {
		t.Error("lts line admits features")
	}
	wantUntil := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !line.SupportUntil().Equal(wantUntil) {
		t.Errorf("support until = %v, want %v", line.SupportUntil(), wantUntil)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "branchflow.yaml")

	cfg := DefaultConfig()
	cfg.Branches.Main = "trunk"
	if err := Write(cfg, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Branches.Main != "trunk" {
		t.Errorf("round-tripped main = %q, want trunk", loaded.Branches.Main)
	}

	// Writing over an existing file conflicts.
	if err := Write(cfg, path); !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("second Write = %v, want KindConflict", err)
	}
}

func TestWriteTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "branchflow.toml")

	if err := Write(DefaultConfig(), path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[branches]") {
		t.Errorf("TOML output missing branches table:\n%s", data)
	}

	loaded, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Branches.Main != "main" {
		t.Errorf("round-tripped main = %q, want main", loaded.Branches.Main)
	}
}
