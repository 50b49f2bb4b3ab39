package cpm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/koron-go/z80"
)

// run installs the breakpoints the scheduler traps on and runs the
// CPU from one breakpoint to the next until the guest halts, jumps to
// the warm-boot vector, or a fatal error occurs. It does not count
// instructions or stop after a fixed batch of them.
func (c *CPM) run() error {
	c.CPU.BreakPoints = map[uint16]struct{}{
		0x0000:      {},
		BdosAddress: {},
	}
	for i := 0; i < CbiosEntries; i++ {
		c.CPU.BreakPoints[uint16(CbiosAddress+3*i)] = struct{}{}
	}

	for {
		err := c.CPU.Run(context.Background())

		switch {
		case err == nil:
			// Real HALT instruction.
			return ErrHalt
		case errors.Is(err, z80.ErrBreakPoint):
			if cont, stop := c.handleBreak(); stop {
				return cont
			}
		default:
			return err
		}
	}
}

// handleBreak inspects the PC the CPU stopped at and dispatches to
// BDOS, CBIOS, or treats it as a clean exit. It returns (err, true)
// when the scheduler loop should stop, or (nil, false) to keep
// stepping.
func (c *CPM) handleBreak() (error, bool) {
	pc := c.CPU.States.PC

	switch {
	case pc == 0x0000:
		return ErrHalt, true

	case pc == BdosAddress:
		if err := c.DispatchBDOS(); err != nil {
			return err, true
		}
		c.returnFromCall()
		return nil, false

	case pc >= CbiosAddress:
		if err := c.DispatchCBIOS(pc); err != nil {
			return err, true
		}
		c.returnFromCall()
		return nil, false

	case pc < LoadAddress:
		c.Logger.Warn("unhandled program counter", slog.Int("pc", int(pc)))
		return nil, false

	default:
		return nil, false
	}
}

// returnFromCall simulates the RET that would otherwise execute at the
// trampoline: the breakpoint stops the CPU with PC still pointed at
// the trampoline byte, unexecuted, so the call's return address is
// popped by hand and PC set there directly. Without this the next
// c.CPU.Run would immediately re-trap on the same breakpoint.
func (c *CPM) returnFromCall() {
	c.CPU.PC = c.Memory.GetU16(c.CPU.SP)
	c.CPU.SP += 2
}
