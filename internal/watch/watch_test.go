package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
}

func waitChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c, ok := <-w.Changes():
		if !ok {
			t.Fatal("changes channel closed")
		}
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestNew_Nonexistent(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.cpp"))
	if err != ErrPathNotExist {
		t.Errorf("New error = %v, want ErrPathNotExist", err)
	}
}

func TestNew_Directory(t *testing.T) {
	_, err := New(t.TempDir())
	if err != ErrNotRegular {
		t.Errorf("New error = %v, want ErrNotRegular", err)
	}
}

func TestWatcher_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cpp")
	writeFile(t, path, "int x;\n")

	w, err := New(path, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	writeFile(t, path, "int y;\n")

	c := waitChange(t, w)
	if c.Path != w.Path() {
		t.Errorf("Path = %q, want %q", c.Path, w.Path())
	}
	if !c.Op.Has(OpWrite) {
		t.Errorf("Op = %v, want WRITE", c.Op)
	}
}

func TestWatcher_Coalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cpp")
	writeFile(t, path, "")

	w, err := New(path, WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		writeFile(t, path, "int x;\n")
	}

	waitChange(t, w)
	select {
	case c := <-w.Changes():
		t.Errorf("unexpected second change %+v", c)
	case <-time.After(400 * time.Millisecond):
	}

	if s := w.Stats(); s.Changes != 1 || s.RawEvents < 1 {
		t.Errorf("Stats = %+v, want one change", s)
	}
}

func TestWatcher_RenameOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cpp")
	writeFile(t, path, "int x;\n")

	w, err := New(path, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	tmp := filepath.Join(dir, ".test.cpp.swp")
	writeFile(t, tmp, "int z;\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename error = %v", err)
	}

	c := waitChange(t, w)
	if !c.Op.Has(OpCreate) {
		t.Errorf("Op = %v, want CREATE", c.Op)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cpp")
	writeFile(t, path, "")

	w, err := New(path, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "other.cpp"), "int x;\n")

	select {
	case c := <-w.Changes():
		t.Errorf("unexpected change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cpp")
	writeFile(t, path, "")

	w, err := New(path)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}

	if _, ok := <-w.Changes(); ok {
		t.Error("changes channel should be closed")
	}
	if _, ok := <-w.Errors(); ok {
		t.Error("errors channel should be closed")
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpWrite, "WRITE"},
		{OpCreate, "CREATE"},
		{OpRemove, "REMOVE"},
		{0, "NONE"},
		{OpCreate | OpWrite, "MULTI"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
