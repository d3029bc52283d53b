package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

type sample struct {
	Server struct {
		Path string   `toml:"path" yaml:"path"`
		Args []string `toml:"args" yaml:"args"`
	} `toml:"server" yaml:"server"`
	Sync struct {
		MaxInFlight int `toml:"max_in_flight" yaml:"max_in_flight"`
	} `toml:"sync" yaml:"sync"`
}

func TestLoadFile_TOML(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/semtok.toml", `
[server]
path = "/opt/clangd"
args = ["-offset-encoding=utf-8", "--log=error"]
`)

	var s sample
	s.Sync.MaxInFlight = 8
	if err := LoadFile(memfs, "/semtok.toml", &s); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if s.Server.Path != "/opt/clangd" {
		t.Errorf("server.path = %q, want /opt/clangd", s.Server.Path)
	}
	if len(s.Server.Args) != 2 || s.Server.Args[1] != "--log=error" {
		t.Errorf("server.args = %v", s.Server.Args)
	}
	// Keys absent from the file keep the preset value.
	if s.Sync.MaxInFlight != 8 {
		t.Errorf("sync.max_in_flight = %d, want 8", s.Sync.MaxInFlight)
	}
}

func TestLoadFile_NonExistent(t *testing.T) {
	var s sample
	err := LoadFile(NewMemFS(), "/missing.toml", &s)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/semtok.ini", "path=x")

	var s sample
	if err := LoadFile(memfs, "/semtok.ini", &s); err == nil {
		t.Fatal("expected error for .ini file")
	}
}

func TestLoadFile_TOMLInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/invalid.toml", `
[server
path = "x"
`)

	var s sample
	err := LoadFile(memfs, "/invalid.toml", &s)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if parseErr.Path != "/invalid.toml" {
		t.Errorf("Path = %q, want '/invalid.toml'", parseErr.Path)
	}
	if parseErr.Line == 0 {
		t.Error("expected a line number")
	}
}

func TestLoadFile_TOMLUnknownKey(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/extra.toml", `
[server]
path = "x"
colour = "red"
`)

	var s sample
	err := LoadFile(memfs, "/extra.toml", &s)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if !strings.Contains(parseErr.Message, "colour") {
		t.Errorf("Message = %q, want it to name the key", parseErr.Message)
	}
	if parseErr.Line < 2 {
		t.Errorf("Line = %d, want the key's line", parseErr.Line)
	}
}

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		err  *ParseError
		want string
	}{
		{&ParseError{Path: "a.toml", Line: 3, Column: 7, Message: "bad"}, "parse error in a.toml at line 3, column 7: bad"},
		{&ParseError{Path: "a.yaml", Line: 3, Message: "bad"}, "parse error in a.yaml at line 3: bad"},
		{&ParseError{Path: "a.toml", Message: "bad"}, "parse error in a.toml: bad"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"semtok.toml", FormatTOML, true},
		{"semtok.TOML", FormatTOML, true},
		{"semtok.yaml", FormatYAML, true},
		{"semtok.yml", FormatYAML, true},
		{"semtok.json", 0, false},
		{"semtok", 0, false},
	}

	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if (err == nil) != tt.ok {
			t.Errorf("FormatFor(%q) error = %v, want ok=%v", tt.path, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("FormatFor(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
