package cpm

import "log/slog"

// cbiosNames is the fixed 17-entry CBIOS jump-table ordering.
var cbiosNames = [CbiosEntries]string{
	"BOOT", "WBOOT", "CONST", "CONIN", "CONOUT", "LIST", "PUNCH", "READER",
	"HOME", "SELDSK", "SETTRK", "SETSEC", "SETDMA", "READ", "WRITE",
	"LISTST", "SECTRAN",
}

// newCBIOSTable builds the 17-entry dispatch table, keyed by jump-table
// index. Only the console entries are live; everything else logs
// "unhandled" and returns, per the CBIOS dispatcher.
func newCBIOSTable() map[int]Syscall {
	t := map[int]Syscall{
		2: {"CONST", biosConsoleStatus},
		3: {"CONIN", biosConsoleInput},
		4: {"CONOUT", biosConsoleOutput},
	}
	for i, name := range cbiosNames {
		if _, ok := t[i]; !ok {
			t[i] = Syscall{name, biosUnhandled(name)}
		}
	}
	return t
}

// DispatchCBIOS is invoked by the scheduler when PC >= CbiosAddress. It
// derives the jump-table index from the offset, fatal if the offset
// isn't a multiple of the 3-byte entry width, and runs the
// corresponding handler.
func (c *CPM) DispatchCBIOS(pc uint16) error {
	offset := int(pc - CbiosAddress)
	if offset%3 != 0 {
		return fatalf("CBIOS PC not aligned to a 3-byte jump-table entry", nil)
	}

	idx := offset / 3
	call, ok := c.CBIOS[idx]
	if !ok {
		c.Logger.Warn("unhandled CBIOS entry", slog.Int("offset", offset))
		return nil
	}

	return call.Handler(c)
}

func biosConsoleStatus(c *CPM) error {
	if c.Console.Status() {
		c.CPU.States.AF.Hi = 0xFF
	} else {
		c.CPU.States.AF.Hi = 0x00
	}
	return nil
}

func biosConsoleInput(c *CPM) error {
	b, err := c.Console.Read()
	if err != nil {
		return err
	}
	c.CPU.States.AF.Hi = b
	return nil
}

func biosConsoleOutput(c *CPM) error {
	c.Output.PutCharacter(c.CPU.States.BC.Lo)
	return nil
}

// biosUnhandled returns a handler that logs the named CBIOS entry as
// unimplemented and leaves registers untouched, so guest programs that
// merely probe disk-geometry entry points keep running.
func biosUnhandled(name string) Handler {
	return func(c *CPM) error {
		c.Logger.Warn("unhandled CBIOS call", slog.String("entry", name))
		return nil
	}
}
