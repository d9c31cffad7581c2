package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "config.txt")

	if osfs.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if err := osfs.WriteFile(path, []byte("protocol=demo\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !osfs.Exists(path) {
		t.Fatal("file should exist after write")
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "protocol=demo\n" {
		t.Errorf("got %q", data)
	}

	info, err := osfs.Stat(path)
	if err != nil || info.Size() != int64(len(data)) {
		t.Errorf("Stat() = %v, %v", info, err)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/etc/radmon/../radmon/config.yaml", []byte("user: alice"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !mfs.Exists("/etc/radmon/config.yaml") {
		t.Error("path should be cleaned on write")
	}

	data, err := mfs.ReadFile("/etc/radmon/config.yaml")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "user: alice" {
		t.Errorf("got %q", data)
	}

	data[0] = 'X'
	again, _ := mfs.ReadFile("/etc/radmon/config.yaml")
	if string(again) != "user: alice" {
		t.Error("ReadFile should return a copy")
	}

	info, err := mfs.Stat("/etc/radmon/config.yaml")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "config.yaml" || info.Size() != 11 || info.Mode() != 0600 || info.IsDir() {
		t.Errorf("unexpected file info %+v", info)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadFile("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error = %v, want fs.ErrNotExist", err)
	}
	if _, err := mfs.Stat("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat error = %v, want fs.ErrNotExist", err)
	}
	if mfs.Exists("missing") {
		t.Error("missing file reported as existing")
	}
}
