// Package fcb implements a zero-copy view over the 36-byte File
// Control Block structure that CP/M uses to describe an open (or
// about-to-be-opened) file.
//
// Unlike a value-type holding a copy of the bytes, everything here
// reads and writes straight through to the guest memory bus, so that
// field updates made by BDOS handlers are visible to the running
// guest program immediately, and vice-versa.
package fcb

import (
	"strings"

	"github.com/tjfoster/gocpm/memory"
)

// SIZE is the number of bytes occupied by an FCB.
const SIZE = 36

// fdSignature is XORed with the low word of an embedded host file
// descriptor to produce the high word; it lets the host recognise its
// own cross-binding rather than garbage left over from a previous use
// of the same memory.
const fdSignature = 0xBEEF

// Offsets of the fields within the 36-byte structure.
const (
	offDrive  = 0
	offName   = 1
	offType   = 9
	offEx     = 12
	offS1     = 13
	offS2     = 14
	offRC     = 15
	offFD1    = 16 // embedded host fd, low word
	offFD2    = 18 // embedded host fd, high word (signature)
	offCr     = 32
	offRandom = 33
)

// FCB is a view onto a 36-byte window of guest memory.
type FCB struct {
	mem  *memory.Memory
	addr uint16
}

// New returns a view over the FCB at the given address.
func New(mem *memory.Memory, addr uint16) *FCB {
	return &FCB{mem: mem, addr: addr}
}

// Address returns the guest address this view is backed by.
func (f *FCB) Address() uint16 {
	return f.addr
}

func (f *FCB) get(off uint16) uint8 {
	return f.mem.Get(f.addr + off)
}

func (f *FCB) set(off uint16, v uint8) {
	f.mem.Set(f.addr+off, v)
}

// Drive returns the raw drive byte: 0=current, 1=A, 2=B, ...
func (f *FCB) Drive() uint8 {
	return f.get(offDrive)
}

// SetDrive sets the raw drive byte.
func (f *FCB) SetDrive(d uint8) {
	f.set(offDrive, d)
}

// rawField returns the space-trimmed, high-bit-masked string stored
// in the 'width' bytes starting at 'off'.
func (f *FCB) rawField(off uint16, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		c := f.get(off+uint16(i)) & 0x7F
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), " ")
}

// Name returns the 8-character filename component, space-trimmed.
func (f *FCB) Name() string {
	return f.rawField(offName, 8)
}

// Type returns the 3-character extension component, space-trimmed.
func (f *FCB) Type() string {
	return f.rawField(offType, 3)
}

// FileName returns "NAME.TYP" (no dot when TYP is empty), the
// conventional CP/M host-filename rendering of this FCB.
func (f *FCB) FileName() string {
	name := f.Name()
	typ := f.Type()
	if name == "" {
		return ""
	}
	if typ == "" {
		return name
	}
	return name + "." + typ
}

// SetNameType writes the name/type fields from a "NAME.TYP" or "NAME"
// string, space-padding to width and upper-casing as CP/M requires.
func (f *FCB) SetNameType(fileName string) {
	fileName = strings.ToUpper(fileName)

	name := fileName
	typ := ""
	if idx := strings.IndexByte(fileName, '.'); idx >= 0 {
		name = fileName[:idx]
		typ = fileName[idx+1:]
	}

	for i := 0; i < 8; i++ {
		c := uint8(' ')
		if i < len(name) {
			c = name[i]
		}
		f.set(offName+uint16(i), c)
	}
	for i := 0; i < 3; i++ {
		c := uint8(' ')
		if i < len(typ) {
			c = typ[i]
		}
		f.set(offType+uint16(i), c)
	}
}

// Ex returns the low extent byte.
func (f *FCB) Ex() uint8 { return f.get(offEx) }

// SetEx sets the low extent byte.
func (f *FCB) SetEx(v uint8) { f.set(offEx, v) }

// S1 returns the reserved byte.
func (f *FCB) S1() uint8 { return f.get(offS1) }

// SetS1 sets the reserved byte.
func (f *FCB) SetS1(v uint8) { f.set(offS1, v) }

// S2 returns the high extent byte.
func (f *FCB) S2() uint8 { return f.get(offS2) }

// SetS2 sets the high extent byte.
func (f *FCB) SetS2(v uint8) { f.set(offS2, v) }

// RC returns the record-count-in-extent byte.
func (f *FCB) RC() uint8 { return f.get(offRC) }

// SetRC sets the record-count-in-extent byte.
func (f *FCB) SetRC(v uint8) { f.set(offRC, v) }

// IncRC increments the record-count-in-extent byte.
func (f *FCB) IncRC() { f.set(offRC, f.get(offRC)+1) }

// Cr returns the current-record-within-extent byte.
func (f *FCB) Cr() uint8 { return f.get(offCr) }

// SetCr sets the current-record-within-extent byte directly, without
// the encoding validation that SetCurrentRecord performs.
func (f *FCB) SetCr(v uint8) { f.set(offCr, v) }

// CurrentRecord decodes the logical sequential record number from
// cr/ex/s2, per the invariant:
//
//	currentRecord = cr | (ex<<7) | (s2<<12)
func (f *FCB) CurrentRecord() uint32 {
	cr := uint32(f.Cr())
	ex := uint32(f.Ex())
	s2 := uint32(f.S2())
	return cr | (ex << 7) | (s2 << 12)
}

// SetCurrentRecord encodes a logical sequential record number back
// into cr/ex/s2, enforcing the FCB's encoding invariant. Returns a
// *FatalError if the value can't be represented.
func (f *FCB) SetCurrentRecord(rec uint32) error {
	cr := uint8(rec & 0x7F)
	ex := uint8((rec >> 7) & 0x1F)
	s2 := rec >> 12

	if s2 > 16 {
		return &FatalError{Msg: "current-record encoding overflow: s2 > 16"}
	}
	if s2 == 16 && (cr != 0 || ex != 0) {
		return &FatalError{Msg: "current-record encoding invalid: s2==16 requires cr==0 && ex==0"}
	}

	f.SetCr(cr)
	f.SetEx(ex)
	f.SetS2(uint8(s2))
	return nil
}

// RandomRecord decodes the 16-bit random-record number from the two
// little-endian bytes at offset 33; byte 35 is the overflow flag and
// is not consulted here, since our supported software set never
// exceeds a 16-bit record number.
func (f *FCB) RandomRecord() uint32 {
	r0 := uint32(f.get(offRandom))
	r1 := uint32(f.get(offRandom + 1))
	return r0 | (r1 << 8)
}

// SetRandomRecord writes the 16-bit random record number, setting the
// overflow byte iff the value doesn't fit in 16 bits.
func (f *FCB) SetRandomRecord(v uint32) {
	f.set(offRandom, uint8(v&0xFF))
	f.set(offRandom+1, uint8((v>>8)&0xFF))
	if v > 0xFFFF {
		f.set(offRandom+2, 0x01)
	} else {
		f.set(offRandom+2, 0x00)
	}
}

// FD recovers the host file descriptor embedded at offset 16,
// validating the ^0xBEEF signature. Returns (0, nil) for a
// fresh/unopened FCB. Returns a *FatalError for any other invalid bit
// pattern.
func (f *FCB) FD() (int, error) {
	n1 := uint16(f.get(offFD1)) | uint16(f.get(offFD1+1))<<8
	n2 := uint16(f.get(offFD2)) | uint16(f.get(offFD2+1))<<8

	if n1 == 0 && n2 == 0 {
		return 0, nil
	}
	if n1^fdSignature != n2 {
		return 0, &FatalError{Msg: "invalid embedded file descriptor signature"}
	}
	return int(n1), nil
}

// SetFD embeds a host file descriptor, stamping it with the ^0xBEEF
// signature so FD can recover it reliably later.
func (f *FCB) SetFD(fd int) {
	n1 := uint16(fd)
	n2 := n1 ^ fdSignature
	f.set(offFD1, uint8(n1&0xFF))
	f.set(offFD1+1, uint8(n1>>8))
	f.set(offFD2, uint8(n2&0xFF))
	f.set(offFD2+1, uint8(n2>>8))
}

// ClearFD wipes the embedded file descriptor back to the "unopened"
// all-zero state.
func (f *FCB) ClearFD() {
	f.set(offFD1, 0)
	f.set(offFD1+1, 0)
	f.set(offFD2, 0)
	f.set(offFD2+1, 0)
}

// Clear resets extent/record-count/current-record state, as CP/M does
// on OPEN, leaving the name/type/drive and embedded fd untouched.
func (f *FCB) Clear() {
	f.SetEx(0)
	f.SetS1(0)
	f.SetS2(0)
	f.SetRC(0)
	f.SetCr(0)
}

// BlankOut writes a blank command-line FCB (drive=0, 11 spaces) at the
// given address, as the boot trampoline does for the two default FCBs
// at 0x005C and 0x006C.
func BlankOut(mem *memory.Memory, addr uint16) {
	mem.Set(addr, 0x00)
	mem.FillRange(addr+1, 11, 0x20)
}

// FatalError marks a programming error in the shim rather than a
// guest-visible BDOS failure: invalid FCB encodings, a bad embedded-fd
// signature, and similar invariant violations.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Msg
}
