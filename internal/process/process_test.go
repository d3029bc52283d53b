package process

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookTool(t *testing.T, name string) string {
	t.Helper()
	for _, dir := range []string{"/bin", "/usr/bin"} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	t.Skipf("%s not available", name)
	return ""
}

func TestSpawn_NotExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"missing", filepath.Join(dir, "missing")},
		{"directory", dir},
		{"no exec bit", plain},
		{"not in PATH", "surely-not-a-real-language-server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Spawn(tt.path, nil)
			if p != nil {
				t.Fatal("expected nil process")
			}
			if !errors.Is(err, ErrNotExecutable) {
				t.Fatalf("expected ErrNotExecutable, got %v", err)
			}
			var ne *NotExecutableError
			if !errors.As(err, &ne) {
				t.Fatalf("expected *NotExecutableError, got %T", err)
			}
		})
	}
}

func TestSpawn_RoundTrip(t *testing.T) {
	cat := lookTool(t, "cat")

	p, err := Spawn(cat, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() {
		p.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Wait(ctx)
	})

	if p.ID == "" {
		t.Error("expected an ID")
	}
	if p.Name != "cat" {
		t.Errorf("Name = %q, want cat", p.Name)
	}
	if p.State() != StateRunning {
		t.Errorf("State = %s, want running", p.State())
	}
	if p.PID() <= 0 {
		t.Errorf("PID = %d", p.PID())
	}

	if _, err := io.WriteString(p.Writer(), "ping\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 5)
	if _, err := io.ReadFull(p.Reader(), buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ping\n" {
		t.Errorf("echo = %q", buf)
	}
}

func TestProcess_CloseEndsServer(t *testing.T) {
	cat := lookTool(t, "cat")

	p, err := Spawn(cat, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if p.State() != StateExited {
		t.Errorf("State = %s, want exited", p.State())
	}
	if p.ExitCode() != 0 {
		t.Errorf("ExitCode = %d", p.ExitCode())
	}
}

func TestProcess_WaitKillsOnDeadline(t *testing.T) {
	sleep := lookTool(t, "sleep")

	p, err := Spawn(sleep, []string{"30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = p.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Wait did not kill promptly")
	}
	if p.State() != StateKilled {
		t.Errorf("State = %s, want killed", p.State())
	}
	if err := p.Kill(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Kill after exit = %v", err)
	}
}

func TestInitError(t *testing.T) {
	err := &InitError{Op: "start", Err: os.ErrPermission}
	if !errors.Is(err, ErrTransportInit) {
		t.Error("expected ErrTransportInit")
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("expected wrapped error")
	}
}

func TestSpawn_WorkingDirectory(t *testing.T) {
	sh := lookTool(t, "sh")
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p, err := Spawn(sh, []string{"-c", "pwd"}, WithDir(dir))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Close()

	out, err := io.ReadAll(p.Reader())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestSpawn_MissingWorkingDirectory(t *testing.T) {
	cat := lookTool(t, "cat")

	p, err := Spawn(cat, nil, WithDir(filepath.Join(t.TempDir(), "gone")))
	if p != nil {
		t.Fatal("expected nil process")
	}
	if !errors.Is(err, ErrTransportInit) {
		t.Fatalf("expected ErrTransportInit, got %v", err)
	}
}

func TestProcess_RuntimeStopsAtExit(t *testing.T) {
	sh := lookTool(t, "sh")

	p, err := Spawn(sh, []string{"-c", "exit 0"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	first := p.Runtime()
	if first <= 0 {
		t.Fatalf("Runtime = %v, want > 0", first)
	}
	time.Sleep(20 * time.Millisecond)
	if again := p.Runtime(); again != first {
		t.Errorf("Runtime kept growing after exit: %v then %v", first, again)
	}
}
