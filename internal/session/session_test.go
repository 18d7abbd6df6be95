package session

import (
	"os"
	"strings"
	"testing"

	"github.com/ccs-cli/ccs/internal/osproc"
)

func withRoot(t *testing.T) {
	t.Helper()
	t.Setenv("CCS_HOME", t.TempDir())
}

// fakeAdapter lets tests drive osproc.Default without touching real
// processes or ports.
type fakeAdapter struct {
	processName  func(port int) (int, string, bool)
	findListener func(port int) bool
	terminate    func(pid int, graceful bool) error
}

func (f fakeAdapter) IsAlive(pid int) bool { return false }

func (f fakeAdapter) FindListener(port int) bool {
	if f.findListener != nil {
		return f.findListener(port)
	}
	return false
}

func (f fakeAdapter) Terminate(pid int, graceful bool) error {
	if f.terminate != nil {
		return f.terminate(pid, graceful)
	}
	return nil
}

func (f fakeAdapter) ProcessName(port int) (int, string, bool) {
	if f.processName != nil {
		return f.processName(port)
	}
	return 0, "", false
}

func withFakeAdapter(t *testing.T, a osproc.Adapter) {
	t.Helper()
	prev := osproc.Default
	osproc.Default = a
	t.Cleanup(func() { osproc.Default = prev })
}

func TestRegisterSessionCreatesLockOnFirstUse(t *testing.T) {
	withRoot(t)

	id, err := RegisterSession(8318, os.Getpid(), "1.0", "original", "claude")
	if err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	if len(id) != 8 {
		t.Fatalf("expected 8-char session id, got %q", id)
	}

	status, err := GetProxyStatus(8318)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Running || status.SessionCount != 1 {
		t.Fatalf("expected running with 1 session, got %+v", status)
	}
}

func TestSessionRefcountRoundTrip(t *testing.T) {
	withRoot(t)
	port := 8319

	id1, err := RegisterSession(port, os.Getpid(), "", "", "claude")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := RegisterSession(port, os.Getpid(), "", "", "claude")
	if err != nil {
		t.Fatal(err)
	}

	status, err := GetProxyStatus(port)
	if err != nil {
		t.Fatal(err)
	}
	if status.SessionCount != 2 {
		t.Fatalf("expected 2 sessions, got %d", status.SessionCount)
	}

	last, err := UnregisterSession(id1, port)
	if err != nil {
		t.Fatal(err)
	}
	if last {
		t.Fatal("expected not-last after removing one of two sessions")
	}

	last, err = UnregisterSession(id2, port)
	if err != nil {
		t.Fatal(err)
	}
	if !last {
		t.Fatal("expected last after removing the final session")
	}

	if _, err := os.Stat(LockPath(port)); !os.IsNotExist(err) {
		t.Fatalf("expected lock file deleted, stat err=%v", err)
	}
}

func TestUnregisterMissingLockReturnsLast(t *testing.T) {
	withRoot(t)
	last, err := UnregisterSession("deadbeef", 9000)
	if err != nil {
		t.Fatal(err)
	}
	if !last {
		t.Fatal("expected unregister on missing lock to report last=true")
	}
}

func TestAggregateTargetGoesMixed(t *testing.T) {
	withRoot(t)
	port := 8320
	if _, err := RegisterSession(port, os.Getpid(), "", "", "claude"); err != nil {
		t.Fatal(err)
	}
	if _, err := RegisterSession(port, os.Getpid(), "", "", "droid"); err != nil {
		t.Fatal(err)
	}
	status, err := GetProxyStatus(port)
	if err != nil {
		t.Fatal(err)
	}
	if status.Target != "mixed" {
		t.Fatalf("expected mixed target, got %q", status.Target)
	}
}

func TestStopProxyDeletesLockOfDeadPID(t *testing.T) {
	withRoot(t)
	port := 8321
	// A pid that is certain to be dead: a very large number unlikely to
	// be a live process, combined with IsAlive's ESRCH semantics.
	if _, err := RegisterSession(port, 999999, "", "", "claude"); err != nil {
		t.Fatal(err)
	}

	result, err := StopProxy(port)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Stopped {
		t.Fatalf("expected stop to report stopped for a dead pid, got %+v", result)
	}
	if _, err := os.Stat(LockPath(port)); !os.IsNotExist(err) {
		t.Fatalf("expected lock removed, stat err=%v", err)
	}
}

func TestCleanupOrphanedSessionsRemovesDeadLock(t *testing.T) {
	withRoot(t)
	port := 8322
	if _, err := RegisterSession(port, 999999, "", "", "claude"); err != nil {
		t.Fatal(err)
	}
	if err := CleanupOrphanedSessions(port); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(LockPath(port)); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned lock removed, stat err=%v", err)
	}
}

func TestStopProxyKillsUnregisteredCLIProxy(t *testing.T) {
	withRoot(t)
	port := 8323
	var terminatedPID int
	withFakeAdapter(t, fakeAdapter{
		processName: func(p int) (int, string, bool) { return 4242, "cliproxy.exe", true },
		terminate: func(pid int, graceful bool) error {
			terminatedPID = pid
			if !graceful {
				t.Fatalf("expected graceful terminate, got graceful=%v", graceful)
			}
			return nil
		},
	})

	result, err := StopProxy(port)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Stopped || result.PID != 4242 {
		t.Fatalf("expected stopped with pid 4242, got %+v", result)
	}
	if terminatedPID != 4242 {
		t.Fatalf("expected Terminate called with pid 4242, got %d", terminatedPID)
	}
}

func TestStopProxyNamesForeignProgram(t *testing.T) {
	withRoot(t)
	port := 8324
	withFakeAdapter(t, fakeAdapter{
		processName: func(p int) (int, string, bool) { return 4243, "postgres", true },
	})

	_, err := StopProxy(port)
	if err == nil {
		t.Fatal("expected an error naming the foreign program")
	}
	if got := err.Error(); !strings.Contains(got, "postgres") || !strings.Contains(got, "8324") {
		t.Fatalf("expected error to name the program and port, got %q", got)
	}
}

func TestStopProxyUnidentifiedForeignListenerIsGeneric(t *testing.T) {
	withRoot(t)
	port := 8325
	withFakeAdapter(t, fakeAdapter{
		findListener: func(p int) bool { return true },
	})

	_, err := StopProxy(port)
	if err == nil {
		t.Fatal("expected an error for an unidentified foreign listener")
	}
}

func TestDefaultPortUsesUnsuffixedLockFile(t *testing.T) {
	withRoot(t)
	path := LockPath(DefaultPort)
	if got := "sessions.json"; path[len(path)-len(got):] != got {
		t.Fatalf("expected default port to use sessions.json, got %q", path)
	}
}
