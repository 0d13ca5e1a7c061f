package fsx

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBytes(path string, data []byte) (int64, error) {
	return WriteFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("temp file left behind: %q", e.Name())
		}
	}
}

func TestWriteFile_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fcpxml")

	n, err := writeBytes(path, []byte("hello"))
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if n != 5 {
		t.Errorf("bytes = %d, want 5", n)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("content = %q", string(b))
	}
	assertNoTemp(t, dir, "out.fcpxml")
}

func TestWriteFile_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fcpxml")
	if err := os.WriteFile(path, []byte("old content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := writeBytes(path, []byte("new")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "new" {
		t.Fatalf("content = %q, want new", string(b))
	}
}

func TestWriteFile_WriterFailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fcpxml")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("encode failed")
	_, err := WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteFile() error = %v, want %v", err, boom)
	}

	b, _ := os.ReadFile(path)
	if string(b) != "previous" {
		t.Fatalf("target modified on failure: %q", string(b))
	}
	assertNoTemp(t, dir, "out.fcpxml")
}

func TestWriteFile_WriterFailureNoTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fcpxml")

	_, err := WriteFile(path, func(io.Writer) error { return errors.New("nope") })
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("target should not exist, stat err = %v", statErr)
	}
}

func TestWriteFile_RenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	old := renameFunc
	renameFunc = func(string, string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	if _, err := writeBytes(path, []byte("hello")); err == nil {
		t.Fatal("expected rename failure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("target should not exist after rename failure")
	}
	assertNoTemp(t, dir, "a.txt")
}

func TestWriteFile_TargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.fcpxml")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := writeBytes(path, []byte("x"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("error = %T %v, want PathTypeConflictError", err, err)
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "a.fcpxml")
	if _, err := writeBytes(path, []byte("x")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
