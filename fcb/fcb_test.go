package fcb

import (
	"testing"

	"github.com/tjfoster/gocpm/memory"
)

// TestNameType covers the basic drive/name/type round-trip.
func TestNameType(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	f.SetDrive(2)
	f.SetNameType("FOO.BAR")

	if f.Drive() != 2 {
		t.Fatalf("drive wrong, got %v", f.Drive())
	}
	if f.Name() != "FOO" {
		t.Fatalf("name wrong, got '%v'", f.Name())
	}
	if f.Type() != "BAR" {
		t.Fatalf("type wrong, got '%v'", f.Type())
	}
	if f.FileName() != "FOO.BAR" {
		t.Fatalf("filename wrong, got '%v'", f.FileName())
	}
}

// TestNameOnly covers a name with no extension.
func TestNameOnly(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)
	f.SetNameType("README")

	if f.Name() != "README" {
		t.Fatalf("name wrong, got '%v'", f.Name())
	}
	if f.Type() != "" {
		t.Fatalf("expected empty type, got '%v'", f.Type())
	}
	if f.FileName() != "README" {
		t.Fatalf("filename wrong, got '%v'", f.FileName())
	}
}

// TestCurrentRecordRoundTrip exercises the cr/ex/s2 encoding for a
// spread of valid values.
func TestCurrentRecordRoundTrip(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	cases := []uint32{0, 1, 127, 128, 4096, 4096 + 127, 0x10000}
	for _, want := range cases {
		if err := f.SetCurrentRecord(want); err != nil {
			t.Fatalf("unexpected error encoding %d: %v", want, err)
		}
		got := f.CurrentRecord()
		if got != want {
			t.Fatalf("round-trip mismatch: want %d got %d", want, got)
		}
	}
}

// TestCurrentRecordInvalidEncoding ensures the s2==16 invariant is
// enforced.
func TestCurrentRecordInvalidEncoding(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	// s2 == 16 with a nonzero cr/ex is invalid per the spec invariant.
	f.SetS2(16)
	f.SetCr(1)
	f.SetEx(0)

	// Constructing this state directly (not via SetCurrentRecord) is
	// legal here; what must fail is asking SetCurrentRecord to
	// produce it.
	rec := uint32(1) | (0 << 7) | (16 << 12)
	if err := f.SetCurrentRecord(rec); err == nil {
		t.Fatalf("expected error encoding invalid s2==16 combination")
	}
}

// TestRandomRecordRoundTrip covers the random-record field and its
// overflow flag.
func TestRandomRecordRoundTrip(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	f.SetRandomRecord(3)
	if f.RandomRecord() != 3 {
		t.Fatalf("expected 3, got %d", f.RandomRecord())
	}

	f.SetRandomRecord(0x10000)
	if f.RandomRecord() != 0 {
		t.Fatalf("expected low word to wrap to 0, got %d", f.RandomRecord())
	}
}

// TestFDRoundTrip covers the embedded file descriptor signature trick.
func TestFDRoundTrip(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	fd, err := f.FD()
	if err != nil {
		t.Fatalf("unexpected error on fresh FCB: %v", err)
	}
	if fd != 0 {
		t.Fatalf("expected fd=0 on fresh FCB, got %d", fd)
	}

	f.SetFD(42)
	fd, err = f.FD()
	if err != nil {
		t.Fatalf("unexpected error after SetFD: %v", err)
	}
	if fd != 42 {
		t.Fatalf("expected fd=42, got %d", fd)
	}

	f.ClearFD()
	fd, err = f.FD()
	if err != nil {
		t.Fatalf("unexpected error after ClearFD: %v", err)
	}
	if fd != 0 {
		t.Fatalf("expected fd=0 after ClearFD, got %d", fd)
	}
}

// TestFDInvalidSignature confirms a corrupted signature is fatal.
func TestFDInvalidSignature(t *testing.T) {
	mem := new(memory.Memory)
	f := New(mem, 0x0200)

	// Poke garbage directly into the fd words - not a valid
	// signature relationship.
	mem.Set(0x0200+16, 0x01)
	mem.Set(0x0200+17, 0x00)
	mem.Set(0x0200+18, 0x01)
	mem.Set(0x0200+19, 0x00)

	if _, err := f.FD(); err == nil {
		t.Fatalf("expected error for invalid fd signature")
	}
}

// TestBlankOut covers the boot-time command-line FCB initialization.
func TestBlankOut(t *testing.T) {
	mem := new(memory.Memory)
	BlankOut(mem, 0x005C)

	if mem.Get(0x005C) != 0x00 {
		t.Fatalf("expected drive=0")
	}
	for i := uint16(1); i < 12; i++ {
		if mem.Get(0x005C+i) != 0x20 {
			t.Fatalf("expected space at offset %d", i)
		}
	}
}
