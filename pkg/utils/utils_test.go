package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "nested", "prog.bin")
	if err := WriteFile(path, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 2 || data[0] != 0x01 {
		t.Errorf("unexpected content %v", data)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	c := Fingerprint([]byte("world"))
	if a != b {
		t.Error("fingerprint is not deterministic")
	}
	if a == c {
		t.Error("different content produced the same fingerprint")
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16 hex digits", len(a))
	}
}
