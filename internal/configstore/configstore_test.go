package configstore

import (
	"os"
	"path/filepath"
	"testing"
)

func withRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CCS_HOME", dir)
	return dir
}

func TestWriteFileAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.json" {
		t.Fatalf("expected only file.json in dir, got %v", entries)
	}
}

func TestWriteFileAtomicPreservesOldFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.json")
	if err := os.WriteFile(path, []byte("original"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Make the directory read-only so the rename (and even the temp
	// write) cannot complete; the original file must survive untouched.
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Skip("cannot chmod in this environment")
	}
	defer os.Chmod(dir, 0o700)

	_ = WriteFileAtomic(path, []byte("new"), 0o600)

	os.Chmod(dir, 0o700)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("expected original file intact, got %q", data)
	}
}

func TestLegacyStoreRoundTrip(t *testing.T) {
	withRoot(t)
	store := NewLegacyStore()

	last := "2026-01-01T00:00:00Z"
	acc := AccountRecord{Created: "2025-01-01T00:00:00Z", LastUsed: &last, ContextMode: ContextIsolated}
	if err := store.SetRecord("work", acc); err != nil {
		t.Fatalf("SetRecord: %v", err)
	}

	rec, ok, err := store.GetRecord("work")
	if err != nil || !ok {
		t.Fatalf("GetRecord: ok=%v err=%v", ok, err)
	}
	got, ok := rec.(AccountRecord)
	if !ok {
		t.Fatalf("expected AccountRecord, got %T", rec)
	}
	if got.Created != acc.Created || got.ContextMode != ContextIsolated {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.SetDefault("work"); err != nil {
		t.Fatal(err)
	}
	name, ok, err := store.GetDefault()
	if err != nil || !ok || name != "work" {
		t.Fatalf("GetDefault: %q ok=%v err=%v", name, ok, err)
	}

	if err := store.DeleteRecord("work"); err != nil {
		t.Fatal(err)
	}
	newDefault, ok, err := store.GetDefault()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected default cleared after deleting only profile, got %q", newDefault)
	}
}

func TestUnifiedStorePreservesUnknownTopLevelKeys(t *testing.T) {
	dir := withRoot(t)
	initial := "version: \"1.0\"\npreferences:\n  theme: dark\n  custom_future_field: 42\naccounts:\n  existing:\n    created: \"2025-01-01T00:00:00Z\"\n    last_used: null\n    context_mode: isolated\n"
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(), []byte(initial), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewUnifiedStore()
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	last := "2026-02-02T00:00:00Z"
	if err := store.SetAccount("new", AccountRecord{Created: "2026-01-01T00:00:00Z", LastUsed: &last}); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !containsAll(s, "theme: dark", "custom_future_field: 42", "existing:", "new:") {
		t.Fatalf("expected unknown keys and both accounts to survive, got:\n%s", s)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(sub) == 0 || indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestDecodeRecordDiscriminatesByType(t *testing.T) {
	raw := []byte(`{"type":"composite","default_tier":"sonnet","tiers":{"sonnet":{"provider":"agy","model":"claude-sonnet-4-5-thinking"}},"port":8320,"settings":"~/.ccs/composite-x.settings.json"}`)
	rec, err := DecodeRecord(raw)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind() != KindCompositeVariant {
		t.Fatalf("expected composite, got %v", rec.Kind())
	}
}

func TestDecodeRecordToleratesNonStringContextGroup(t *testing.T) {
	raw := []byte(`{"created":"2025-01-01T00:00:00Z","last_used":null,"context_group":42}`)
	rec, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("expected a non-string context_group to fall back, not fail: %v", err)
	}
	acc, ok := rec.(AccountRecord)
	if !ok {
		t.Fatalf("expected AccountRecord, got %T", rec)
	}
	if acc.ContextGroup != "" {
		t.Fatalf("expected context_group to fall back to empty, got %q", acc.ContextGroup)
	}
	if acc.Created != "2025-01-01T00:00:00Z" {
		t.Fatalf("expected sibling fields to survive, got %+v", acc)
	}
}
