package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAgentFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileParsesFrontmatterAndBody(t *testing.T) {
	dir := t.TempDir()
	path := writeAgentFile(t, dir, "reviewer.md", `---
description: Reviews code changes
model: inherit
tools:
  mode: allowlist
  allow: [ReadFile, Bash]
---

You are a careful code reviewer.
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a parsed config, got nil")
	}
	if cfg.Name != "reviewer" {
		t.Fatalf("Name = %q, want derived from filename", cfg.Name)
	}
	if cfg.Description != "Reviews code changes" {
		t.Fatalf("Description = %q", cfg.Description)
	}
	if cfg.SystemPrompt != "You are a careful code reviewer." {
		t.Fatalf("SystemPrompt = %q", cfg.SystemPrompt)
	}
	if cfg.MaxTurns != DefaultMaxTurns {
		t.Fatalf("MaxTurns = %d, want default %d", cfg.MaxTurns, DefaultMaxTurns)
	}
	if cfg.PermissionMode != PermissionDefault {
		t.Fatalf("PermissionMode = %q, want default", cfg.PermissionMode)
	}
	if !cfg.Tools.Allows("ReadFile") || cfg.Tools.Allows("WriteFile") {
		t.Fatalf("Tools = %+v, allowlist not applied correctly", cfg.Tools)
	}
}

func TestLoadFileWithoutFrontmatterReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := writeAgentFile(t, dir, "notes.md", "just a plain markdown file\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for frontmatter-less file, got %+v", cfg)
	}
}

func TestLoadDirSkipsNonAgentFilesAndNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "a.md", "---\ndescription: A\n---\nbody a\n")
	writeAgentFile(t, dir, "b.md", "no frontmatter here\n")
	writeAgentFile(t, dir, "c.txt", "---\ndescription: ignored\n---\nbody\n")

	configs := LoadDir(dir)
	if len(configs) != 1 {
		t.Fatalf("LoadDir returned %d configs, want 1: %+v", len(configs), configs)
	}
	if configs[0].Name != "a" {
		t.Fatalf("Name = %q, want %q", configs[0].Name, "a")
	}
}

func TestLoadDirMissingDirReturnsNil(t *testing.T) {
	if configs := LoadDir(filepath.Join(t.TempDir(), "does-not-exist")); configs != nil {
		t.Fatalf("expected nil for missing dir, got %+v", configs)
	}
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"reviewer":     true,
		"code-review":  true,
		"code_review":  true,
		"1bad":         false,
		"":             false,
		"has space":    false,
	}
	for name, want := range cases {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}
