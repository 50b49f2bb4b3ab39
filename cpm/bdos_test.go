package cpm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tjfoster/gocpm/fcb"
)

func newTestCPM(t *testing.T, dir string) *CPM {
	t.Helper()
	c, err := New(os.DevNull, WithDrive(0, dir), WithOutputDriver("null"))
	if err != nil {
		t.Fatalf("failed to construct CPM: %s", err)
	}
	return c
}

func setFCBName(c *CPM, addr uint16, name string) *fcb.FCB {
	f := fcb.New(c.Memory, addr)
	f.SetNameType(name)
	c.CPU.States.DE.SetU16(addr)
	return f
}

func TestBdosMakeWriteCloseOpenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newTestCPM(t, dir)

	const fcbAddr = 0x5C
	setFCBName(c, fcbAddr, "A.DAT")

	if err := bdosMakeFile(c); err != nil {
		t.Fatalf("MAKE: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("MAKE: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}

	c.dma = 0x0080
	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = byte(i)
	}
	c.Memory.SetRange(c.dma, payload...)

	if err := bdosWriteSeq(c); err != nil {
		t.Fatalf("WRITE SEQ: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("WRITE SEQ: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}

	if err := bdosCloseFile(c); err != nil {
		t.Fatalf("CLOSE: unexpected error: %s", err)
	}

	setFCBName(c, fcbAddr, "A.DAT")
	if err := bdosOpenFile(c); err != nil {
		t.Fatalf("OPEN: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("OPEN: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}

	c.Memory.FillRange(c.dma, 128, 0x00)
	if err := bdosReadSeq(c); err != nil {
		t.Fatalf("READ SEQ: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("READ SEQ: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}
	if got := c.Memory.GetRange(c.dma, 128); string(got) != string(payload) {
		t.Fatalf("READ SEQ returned unexpected bytes")
	}

	// Second READ SEQ should be at EOF.
	if err := bdosReadSeq(c); err != nil {
		t.Fatalf("READ SEQ at EOF: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x01 {
		t.Fatalf("READ SEQ at EOF: got A=0x%02X, wanted 0x01", c.CPU.States.AF.Hi)
	}
}

func TestBdosRenameRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newTestCPM(t, dir)

	const fcbAddr = 0x5C
	setFCBName(c, fcbAddr, "OLD.TXT")
	if err := bdosMakeFile(c); err != nil {
		t.Fatalf("MAKE: unexpected error: %s", err)
	}
	if err := bdosCloseFile(c); err != nil {
		t.Fatalf("CLOSE: unexpected error: %s", err)
	}

	setFCBName(c, fcbAddr, "OLD.TXT")
	dst := fcb.New(c.Memory, fcbAddr+16)
	dst.SetNameType("NEW.TXT")

	if err := bdosRenameFile(c); err != nil {
		t.Fatalf("RENAME: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("RENAME: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}

	setFCBName(c, fcbAddr, "OLD.TXT")
	if err := bdosOpenFile(c); err != nil {
		t.Fatalf("OPEN old: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0xFF {
		t.Fatalf("OPEN old: got A=0x%02X, wanted 0xFF", c.CPU.States.AF.Hi)
	}

	setFCBName(c, fcbAddr, "NEW.TXT")
	if err := bdosOpenFile(c); err != nil {
		t.Fatalf("OPEN new: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("OPEN new: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}
}

func TestBdosDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"BETA.TXT", "ALPHA.DAT"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to seed fixture: %s", err)
		}
	}
	c := newTestCPM(t, dir)

	const fcbAddr = 0x5C
	setFCBName(c, fcbAddr, "????????.???")
	c.dma = 0x0080

	if err := bdosSearchFirst(c); err != nil {
		t.Fatalf("SEARCH FIRST: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("SEARCH FIRST: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}
	if got := string(c.Memory.GetRange(c.dma+1, 11)); got != "ALPHA   DAT" {
		t.Fatalf("got %q, wanted %q", got, "ALPHA   DAT")
	}

	if err := bdosSearchNext(c); err != nil {
		t.Fatalf("SEARCH NEXT: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("SEARCH NEXT: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}
	if got := string(c.Memory.GetRange(c.dma+1, 11)); got != "BETA    TXT" {
		t.Fatalf("got %q, wanted %q", got, "BETA    TXT")
	}

	if err := bdosSearchNext(c); err != nil {
		t.Fatalf("SEARCH NEXT (exhausted): unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0xFF {
		t.Fatalf("SEARCH NEXT (exhausted): got A=0x%02X, wanted 0xFF", c.CPU.States.AF.Hi)
	}
}

func TestBdosWriteRandomBeyondEOF(t *testing.T) {
	dir := t.TempDir()
	c := newTestCPM(t, dir)

	const fcbAddr = 0x5C
	setFCBName(c, fcbAddr, "B.DAT")
	if err := bdosMakeFile(c); err != nil {
		t.Fatalf("MAKE: unexpected error: %s", err)
	}

	f := fcb.New(c.Memory, fcbAddr)
	f.SetRandomRecord(3)

	c.dma = 0x0080
	c.Memory.FillRange(c.dma, 128, 0xAA)

	if err := bdosWriteRandom(c); err != nil {
		t.Fatalf("WRITE RND: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0x00 {
		t.Fatalf("WRITE RND: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}

	if err := bdosCloseFile(c); err != nil {
		t.Fatalf("CLOSE: unexpected error: %s", err)
	}

	info, err := os.Stat(filepath.Join(dir, "B.DAT"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if info.Size() != 512 {
		t.Fatalf("got size %d, wanted 512", info.Size())
	}

	raw, err := os.ReadFile(filepath.Join(dir, "B.DAT"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for i := 0; i < 384; i++ {
		if raw[i] != 0x00 {
			t.Fatalf("byte %d: got 0x%02X, wanted 0x00 (hole)", i, raw[i])
		}
	}
	for i := 384; i < 512; i++ {
		if raw[i] != 0xAA {
			t.Fatalf("byte %d: got 0x%02X, wanted 0xAA", i, raw[i])
		}
	}
}

func TestBdosSelectNonexistentDrive(t *testing.T) {
	dir := t.TempDir()
	c := newTestCPM(t, dir)
	c.currentDrive = 0

	c.CPU.States.DE.Lo = 7
	if err := bdosSelectDisk(c); err != nil {
		t.Fatalf("SELDSK: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0xFF {
		t.Fatalf("SELDSK: got A=0x%02X, wanted 0xFF", c.CPU.States.AF.Hi)
	}
	if c.currentDrive != 0 {
		t.Fatalf("current drive changed to %d after a failed select", c.currentDrive)
	}

	if err := bdosGetDrive(c); err != nil {
		t.Fatalf("GETDRV: unexpected error: %s", err)
	}
	if c.CPU.States.AF.Hi != 0 {
		t.Fatalf("GETDRV: got A=0x%02X, wanted 0x00", c.CPU.States.AF.Hi)
	}
}

func TestBdosSetDMA(t *testing.T) {
	dir := t.TempDir()
	c := newTestCPM(t, dir)

	c.CPU.States.DE.SetU16(0x2000)
	if err := bdosSetDMA(c); err != nil {
		t.Fatalf("SETDMA: unexpected error: %s", err)
	}
	if c.dma != 0x2000 {
		t.Fatalf("got dma=0x%04X, wanted 0x2000", c.dma)
	}
}
