package instance

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ccs-cli/ccs/internal/configstore"
)

func TestEnsureInstanceIsolatedIsIdempotentAnd0700(t *testing.T) {
	t.Setenv("CCS_HOME", t.TempDir())

	path1, err := EnsureInstance("work", Policy{Mode: configstore.ContextIsolated})
	if err != nil {
		t.Fatal(err)
	}
	path2, err := EnsureInstance("work", Policy{Mode: configstore.ContextIsolated})
	if err != nil {
		t.Fatal(err)
	}
	if path1 != path2 {
		t.Fatalf("expected idempotent path, got %q vs %q", path1, path2)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path1)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o700 {
			t.Fatalf("expected mode 0700, got %v", info.Mode().Perm())
		}
	}
}

func TestEnsureInstanceSharedGroupsShareDirectory(t *testing.T) {
	t.Setenv("CCS_HOME", t.TempDir())

	a, err := EnsureInstance("backup1", Policy{Mode: configstore.ContextShared, Group: "sprint-a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := EnsureInstance("backup2", Policy{Mode: configstore.ContextShared, Group: "sprint-a"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected accounts in same group to share a directory: %q vs %q", a, b)
	}
	expected := filepath.Join(configstore.InstancesDir(), "shared", "sprint-a")
	if a != expected {
		t.Fatalf("expected %q, got %q", expected, a)
	}
}

func TestDeleteInstanceNoopForShared(t *testing.T) {
	t.Setenv("CCS_HOME", t.TempDir())
	dir, err := EnsureInstance("backup1", Policy{Mode: configstore.ContextShared, Group: "g"})
	if err != nil {
		t.Fatal(err)
	}
	if err := DeleteInstance("backup1", Policy{Mode: configstore.ContextShared, Group: "g"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected shared dir to survive deleteInstance, got %v", err)
	}
}

func TestDeleteInstanceRemovesIsolated(t *testing.T) {
	t.Setenv("CCS_HOME", t.TempDir())
	dir, err := EnsureInstance("work", Policy{Mode: configstore.ContextIsolated})
	if err != nil {
		t.Fatal(err)
	}
	if err := DeleteInstance("work", Policy{Mode: configstore.ContextIsolated}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected isolated dir removed, stat err=%v", err)
	}
}
