package cpm

import (
	"strings"

	"github.com/tjfoster/gocpm/fcb"
	"github.com/tjfoster/gocpm/memory"
)

// InstallBootTrampoline writes the fixed jump table a CP/M guest
// expects to find in low/high memory before it is started: the warm
// boot vector at 0x0000, the BDOS entry vector at 0x0005, and the
// single-instruction (RET) trampolines at the BDOS and CBIOS
// addresses that the scheduler's breakpoints stop on.
func InstallBootTrampoline(mem *memory.Memory) {
	// JP CbiosAddress+3 (warm boot entry)
	mem.SetRange(0x0000, 0xC3, byte(CbiosAddress+3), byte((CbiosAddress+3)>>8))

	// JP BdosAddress
	mem.SetRange(0x0005, 0xC3, byte(BdosAddress), byte(BdosAddress>>8))

	// BDOS trampoline: a single RET, so that a CALL 5 returns
	// immediately once the scheduler has serviced the breakpoint.
	mem.Set(BdosAddress, 0xC9)

	// CBIOS jump table: 17 entries, 3 bytes apart, each a RET.
	for i := 0; i < CbiosEntries; i++ {
		mem.Set(uint16(CbiosAddress+3*i), 0xC9)
	}
}

// BlankFCB writes drive=0 and eleven spaces (name and type) at addr,
// the boot-time state of the two default command-line FCBs.
func BlankFCB(mem *memory.Memory, addr uint16) {
	fcb.BlankOut(mem, addr)
}

// setupFCBFromArg populates the FCB at addr from a CP/M-style
// "NAME.TYPE" command-line argument, uppercasing and right-padding both
// fields with spaces as CP/M's CCP would.
func setupFCBFromArg(mem *memory.Memory, addr uint16, arg string) {
	f := fcb.New(mem, addr)
	f.SetDrive(0)
	f.SetNameType(strings.ToUpper(arg))
}
