package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relaymux/relaymux/internal/state"
)

const testConfig = `{
	"providers": {
		"alpha": {"baseUrl": "https://alpha.example.com", "apiKey": "sk-a"},
		"beta": {"baseUrl": "https://beta.example.com", "apiKey": "sk-b"}
	},
	"backends": [
		{"provider": "alpha", "model": "model-a"},
		{"provider": "beta", "model": "model-b", "cooldownRule": "day"}
	]
}`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	cmd := validateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{writeTestConfig(t)})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Config is valid") {
		t.Errorf("output missing validity line: %q", got)
	}
	if !strings.Contains(got, "alpha:model-a -> beta:model-b") {
		t.Errorf("output missing dispatch order: %q", got)
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(path, []byte(`{"backends": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := validateCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for config without providers")
	}
}

func TestResolveConfigPathPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"providers.json", "providers.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("CONFIG_DIR", dir)

	path, err := resolveConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "providers.json" {
		t.Errorf("resolved %s, want providers.json", path)
	}
}

func TestResolveConfigPathMissing(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	if _, err := resolveConfigPath(); err == nil {
		t.Fatal("expected error for empty config dir")
	}
}

func TestOpenStateStoreUnknownBackend(t *testing.T) {
	t.Setenv("STATE_BACKEND", "etcd")
	if _, _, err := openStateStore(); err == nil {
		t.Fatal("expected error for unknown STATE_BACKEND")
	}
}

func TestOpenStateStoreDefaultsToFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("STATE_BACKEND", "")

	store, closeStore, err := openStateStore()
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()

	fs, ok := store.(*state.FileStore)
	if !ok {
		t.Fatalf("store type = %T, want *state.FileStore", store)
	}
	if fs.Path() != filepath.Join(dir, "backend-state.json") {
		t.Errorf("path = %s", fs.Path())
	}
}

func TestStateClearCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("STATE_BACKEND", "file")

	until := time.Now().Add(time.Hour).UTC()
	doc := state.State{
		"alpha:model-a": {UsedTokens: 100, UnblockAt: &until},
		"beta:model-b":  {UsedTokens: 5},
	}
	fs := state.NewFileStore(filepath.Join(dir, "backend-state.json"))
	if err := fs.Write(t.Context(), doc); err != nil {
		t.Fatal(err)
	}

	cmd := stateClearCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"alpha:model-a"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("state clear: %v", err)
	}
	if !strings.Contains(out.String(), "Cleared 1 record(s)") {
		t.Errorf("output = %q", out.String())
	}

	left, err := fs.Read(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := left["alpha:model-a"]; ok {
		t.Error("alpha:model-a still present after clear")
	}
	if _, ok := left["beta:model-b"]; !ok {
		t.Error("beta:model-b should survive a targeted clear")
	}
}
