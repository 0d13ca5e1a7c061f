//go:build unix

package fsx

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestRename_EXDEV(t *testing.T) {
	old := renameFunc
	renameFunc = func(src, dst string) error {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	dir := t.TempDir()
	_, err := writeBytes(filepath.Join(dir, "a.txt"), []byte("x"))
	if !IsCrossDevice(err) {
		t.Fatalf("error = %T %v, want CrossDeviceError", err, err)
	}
}
