package osproc

import (
	"net"
	"os"
	"testing"
)

func TestIsAliveSelf(t *testing.T) {
	if !Default.IsAlive(os.Getpid()) {
		t.Fatal("expected current process to be reported alive")
	}
}

func TestFindListenerDetectsBoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("cannot bind a loopback port in this environment")
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	if !Default.FindListener(port) {
		t.Fatalf("expected FindListener to report port %d in use", port)
	}
}

func TestFindListenerFalseWhenFree(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("cannot bind a loopback port in this environment")
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if Default.FindListener(port) {
		t.Fatalf("expected port %d to be reported free after close", port)
	}
}

func TestProcessNameFalseWhenFree(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("cannot bind a loopback port in this environment")
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if _, _, ok := Default.ProcessName(port); ok {
		t.Fatalf("expected no process to be identified on free port %d", port)
	}
}

func TestProcessNameOnBoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("cannot bind a loopback port in this environment")
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	// Depends on lsof/netstat being on PATH; skip rather than fail where
	// they aren't available.
	pid, name, ok := Default.ProcessName(port)
	if !ok {
		t.Skip("no port-inspection tool available in this environment")
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}
	if name == "" {
		t.Error("expected a non-empty process name")
	}
}
