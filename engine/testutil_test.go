package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeJSONFile writes v as a JSON file at path, creating parent
// directories as needed. It's shared by tests that need to seed a cache
// directory or a flushed-store directory by hand.
func writeJSONFile(t *testing.T, path string, v interface{}) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("error making directory for %q: %v", path, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("error marshaling %q: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("error writing %q: %v", path, err)
	}
}

// readJSONFileInto reads and parses the JSON file at path into out.
func readJSONFileInto(t *testing.T, path string, out interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading %q: %v", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("error parsing %q: %v", path, err)
	}
}
