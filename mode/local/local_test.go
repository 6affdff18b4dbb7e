package local

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/actiondriver/types"
)

func writeMainGo(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func mainAction(name, srcPath string) types.Action {
	return types.Action{
		Name:       name,
		SourcePath: srcPath,
		Runner:     types.RunnerSpec{Kind: types.RunnerKindMain},
	}
}

func TestBuildAndInstall_Success(t *testing.T) {
	srcDir := t.TempDir()
	src := writeMainGo(t, srcDir, "package main\nfunc main() {}\n")

	m := New(Config{WorkDir: t.TempDir()})
	outcome, err := m.BuildAndInstall(context.Background(), mainAction("ok", src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != nil {
		t.Fatalf("expected nil outcome on successful build, got %+v", outcome)
	}
}

func TestBuildAndInstall_CompileFailure(t *testing.T) {
	srcDir := t.TempDir()
	src := writeMainGo(t, srcDir, "package main\nfunc main() { this is not go }\n")

	m := New(Config{WorkDir: t.TempDir()})
	outcome, err := m.BuildAndInstall(context.Background(), mainAction("broken", src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome == nil || outcome.Result != types.ResultCompileFailed {
		t.Fatalf("expected COMPILE_FAILED outcome, got %+v", outcome)
	}
	if len(outcome.OutputLines) == 0 {
		t.Error("expected captured compiler output")
	}
}

func TestBuildAndInstall_UnsupportedRunner(t *testing.T) {
	m := New(Config{WorkDir: t.TempDir()})
	action := types.Action{Name: "skip", Runner: types.RunnerSpec{Kind: types.RunnerKindUnsupported}}

	outcome, err := m.BuildAndInstall(context.Background(), action)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome == nil || outcome.Result != types.ResultUnsupported {
		t.Fatalf("expected UNSUPPORTED outcome, got %+v", outcome)
	}
}

func TestCreateActionCommand_RequiresPriorBuild(t *testing.T) {
	m := New(Config{WorkDir: t.TempDir()})
	_, err := m.CreateActionCommand(context.Background(), mainAction("never-built", "x.go"), 9000)
	if err == nil {
		t.Fatal("expected error for action that was never built")
	}
}

func TestBuildRunCleanup_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	src := writeMainGo(t, srcDir, `package main

import (
	"net"
	"os"
)

func main() {
	conn, err := net.Dial("tcp", net.JoinHostPort(os.Getenv("ACTIONDRIVER_MONITOR_HOST"), os.Getenv("ACTIONDRIVER_MONITOR_PORT")))
	if err != nil {
		os.Exit(1)
	}
	conn.Close()
}
`)

	m := New(Config{WorkDir: t.TempDir()})
	action := mainAction("dials-out", src)

	if outcome, err := m.BuildAndInstall(context.Background(), action); err != nil || outcome != nil {
		t.Fatalf("build failed: outcome=%+v err=%v", outcome, err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	cmd, err := m.CreateActionCommand(context.Background(), action, port)
	if err != nil {
		t.Fatalf("create command: %v", err)
	}

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	results := cmd.ExecuteLater(context.Background())

	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for child to connect to monitor port")
	}

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("unexpected command error: %v", res.Err)
		}
		if res.Output.ExitCode != 0 {
			t.Errorf("expected exit 0, got %d", res.Output.ExitCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command result")
	}

	if err := m.Cleanup(context.Background(), action); err != nil {
		t.Errorf("cleanup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.config.WorkDir, sanitizeName(action.Name))); !os.IsNotExist(err) {
		t.Error("expected binary to be removed after cleanup")
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	srcDir := t.TempDir()
	src := writeMainGo(t, srcDir, "package main\nimport \"time\"\nfunc main() { time.Sleep(10 * time.Second) }\n")

	m := New(Config{WorkDir: t.TempDir()})
	action := mainAction("sleeper", src)
	if outcome, err := m.BuildAndInstall(context.Background(), action); err != nil || outcome != nil {
		t.Fatalf("build failed: outcome=%+v err=%v", outcome, err)
	}

	cmd, err := m.CreateActionCommand(context.Background(), action, 9999)
	if err != nil {
		t.Fatalf("create command: %v", err)
	}
	cmd.ExecuteLater(context.Background())
	time.Sleep(100 * time.Millisecond)

	if err := cmd.Destroy(); err != nil {
		t.Errorf("first destroy: %v", err)
	}
	if err := cmd.Destroy(); err != nil {
		t.Errorf("second destroy should be a no-op: %v", err)
	}
}
