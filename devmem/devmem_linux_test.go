//go:build linux

package devmem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMem_ReadWriteFile(t *testing.T) {
	// a regular file stands in for /dev/mem.
	path := filepath.Join(t.TempDir(), "mem")
	img := make([]byte, 0x200)
	img[0xFF] = 0x01
	img[0x100] = 0x80
	img[0x101] = 0xF0
	img[0x102] = 0xFA
	img[0x103] = 0x02
	if err := os.WriteFile(path, img, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	v, err := m.Read32(0x100)
	if err != nil || v != 50_000_000 {
		t.Fatalf("Read32(0x100)=%d err=%v", v, err)
	}
	v, err = m.Read32(0xFF)
	if err != nil || v != 0xFAF08001 {
		t.Fatalf("Read32(0xFF)=%#x err=%v", v, err)
	}

	if err := m.Write32(0x10, 0xCAFEBABE); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	if v, _ := m.Read32(0x10); v != 0xCAFEBABE {
		t.Fatalf("read back %#x", v)
	}

	if _, err := m.Read32(0x1FE); err == nil {
		t.Fatalf("expected short read error at end of file")
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope"), false); err == nil {
		t.Fatalf("expected error")
	}
}
