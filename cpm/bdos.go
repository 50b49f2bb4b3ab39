package cpm

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/tjfoster/gocpm/consolein"
	"github.com/tjfoster/gocpm/fcb"
)

// emulatorIdentity is what BDOS 31, sub-function 0, reports to a guest
// that asks whether it's running under this emulator.
const emulatorIdentity = "gocpm"

// CP/M's fixed BDOS version word for 2.2, returned by BDOS 12.
const bdosVersion = 0x0022

// newBDOSTable builds the function-code dispatch table, per the BDOS
// function table: C selects the entry, everything else is logged and
// left untouched.
func newBDOSTable() map[uint8]Syscall {
	return map[uint8]Syscall{
		1:  {"CONIN", bdosConsoleInput},
		2:  {"CONOUT", bdosConsoleOutput},
		5:  {"LIST", bdosList},
		6:  {"DIRECT IO", bdosDirectIO},
		9:  {"PRINT STRING", bdosPrintString},
		10: {"READ CONSOLE BUFFER", bdosReadConsoleBuffer},
		11: {"CONST", bdosConsoleStatus},
		12: {"GET BDOS VERSION", bdosVersionNumber},
		13: {"RESET DISK", bdosResetDisk},
		14: {"SELDSK", bdosSelectDisk},
		15: {"OPEN", bdosOpenFile},
		16: {"CLOSE", bdosCloseFile},
		17: {"SEARCH FIRST", bdosSearchFirst},
		18: {"SEARCH NEXT", bdosSearchNext},
		19: {"DELETE", bdosDeleteFile},
		20: {"READ SEQ", bdosReadSeq},
		21: {"WRITE SEQ", bdosWriteSeq},
		22: {"MAKE", bdosMakeFile},
		23: {"RENAME", bdosRenameFile},
		25: {"GETDRV", bdosGetDrive},
		26: {"SETDMA", bdosSetDMA},
		33: {"READ RND", bdosReadRandom},
		34: {"WRITE RND", bdosWriteRandom},
		35: {"COMPUTE SIZE", bdosComputeSize},
		31: {"BIOS EXTENSION", bdosBiosExtension},
	}
}

// bdosBiosExtension is an out-of-band escape hatch, never a real CP/M
// function code: HL selects a sub-function. HL==0 writes the emulator
// identity string into the DMA area. HL==1 returns the host terminal
// size as HL = rows<<8 | cols.
func bdosBiosExtension(c *CPM) error {
	switch c.CPU.States.HL.U16() {
	case 0:
		addr := c.dma
		for i := 0; i < len(emulatorIdentity); i++ {
			c.Memory.Set(addr+uint16(i), emulatorIdentity[i])
		}
		c.Memory.Set(addr+uint16(len(emulatorIdentity)), 0x00)
	case 1:
		cols, rows, err := consolein.TerminalSize()
		if err != nil {
			cols, rows = 80, 24
		}
		c.CPU.States.HL.SetU16(uint16(rows)<<8 | uint16(cols&0xFF))
	default:
		c.Logger.Warn("unhandled BIOS extension sub-function",
			slog.Int("function", int(c.CPU.States.HL.U16())))
	}
	return nil
}

// DispatchBDOS is invoked by the scheduler when PC == BdosAddress. It
// reads the function code from register C, looks it up, and either
// runs the handler or logs an unhandled call and leaves registers
// untouched.
func (c *CPM) DispatchBDOS() error {
	fn := c.CPU.States.BC.Lo

	call, ok := c.BDOS[fn]
	if !ok {
		c.Logger.Warn("unhandled BDOS call", slog.Int("function", int(fn)))
		return nil
	}

	return call.Handler(c)
}

// setResult writes the canonical BDOS return-value convention: A holds
// the result, mirrored into L, with H and B cleared.
func setResult(c *CPM, res uint8) {
	c.CPU.States.AF.Hi = res
	c.CPU.States.HL.Lo = res
	c.CPU.States.HL.Hi = 0
	c.CPU.States.BC.Hi = 0
}

// currentFCB returns the FCB view passed in DE, the convention every
// file-oriented BDOS call uses.
func (c *CPM) currentFCB() *fcb.FCB {
	return fcb.New(c.Memory, c.CPU.States.DE.U16())
}

func bdosConsoleInput(c *CPM) error {
	b, err := c.Console.Read()
	if err != nil {
		return err
	}
	c.Output.PutCharacter(b)
	setResult(c, b)
	return nil
}

func bdosConsoleOutput(c *CPM) error {
	c.Output.PutCharacter(c.CPU.States.DE.Lo)
	return nil
}

func bdosList(c *CPM) error {
	_, err := c.Printer.Write([]byte{c.CPU.States.DE.Lo})
	return err
}

func bdosDirectIO(c *CPM) error {
	e := c.CPU.States.DE.Lo
	if e == 0xFF {
		b, ok := c.Console.PollByte()
		if !ok {
			setResult(c, 0)
			return nil
		}
		setResult(c, b)
		return nil
	}
	c.Output.PutCharacter(e)
	return nil
}

// bdosPrintString writes the $-terminated string addressed by DE to
// stdout, the BDOS 9 companion to WRITE STRING.
func bdosPrintString(c *CPM) error {
	addr := c.CPU.States.DE.U16()
	for {
		ch := c.Memory.Get(addr)
		if ch == '$' {
			break
		}
		c.Output.PutCharacter(ch)
		addr++
	}
	return nil
}

// bdosReadConsoleBuffer reads a line into the buffer addressed by DE:
// byte 0 is the caller-supplied max length, byte 1 is filled in with
// the actual length read, and the characters follow starting at byte
// 2. Reading stops at CR or when the buffer fills.
func bdosReadConsoleBuffer(c *CPM) error {
	addr := c.CPU.States.DE.U16()
	max := c.Memory.Get(addr)

	var n uint8
	for n < max {
		b, err := c.Console.Read()
		if err != nil {
			return err
		}
		c.Output.PutCharacter(b)
		if b == 0x0D {
			break
		}
		c.Memory.Set(addr+2+uint16(n), b)
		n++
	}
	c.Memory.Set(addr+1, n)
	return nil
}

func bdosConsoleStatus(c *CPM) error {
	if c.Console.Status() {
		setResult(c, 1)
	} else {
		setResult(c, 0)
	}
	return nil
}

func bdosVersionNumber(c *CPM) error {
	c.CPU.States.HL.SetU16(bdosVersion)
	return nil
}

func bdosResetDisk(c *CPM) error {
	return nil
}

func bdosSelectDisk(c *CPM) error {
	drive := c.CPU.States.DE.Lo
	if _, ok := c.Drives.dirs[drive]; !ok {
		setResult(c, 0xFF)
		return nil
	}
	c.currentDrive = drive
	setResult(c, 0)
	return nil
}

func bdosOpenFile(c *CPM) error {
	f := c.currentFCB()
	f.Clear()

	dir, err := c.Drives.Resolve(f.Drive(), c.currentDrive)
	if err != nil {
		return err
	}

	path := dir + "/" + f.FileName()
	fh, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		f.ClearFD()
		setResult(c, 0xFF)
		return nil
	}

	f.SetFD(int(fh.Fd()))
	c.openFiles[int(fh.Fd())] = fh
	setResult(c, 0)
	return nil
}

func bdosCloseFile(c *CPM) error {
	f := c.currentFCB()
	fd, err := f.FD()
	if err != nil {
		return err
	}
	if fd == 0 {
		return fatalf("close of unopened FCB", nil)
	}

	fh, ok := c.openFiles[fd]
	if !ok {
		return fatalf("close of fd with no backing handle", nil)
	}
	delete(c.openFiles, fd)
	f.ClearFD()

	if err := fh.Close(); err != nil {
		c.Logger.Warn("close failed", slog.String("error", err.Error()))
	}
	setResult(c, 0)
	return nil
}

func bdosSearchFirst(c *CPM) error {
	f := c.currentFCB()
	dir, err := c.Drives.Resolve(f.Drive(), c.currentDrive)
	if err != nil {
		return err
	}
	if err := c.Dir.SearchFirst(dir); err != nil {
		setResult(c, 0xFF)
		return nil
	}
	setResult(c, c.Dir.Next(c.Memory, c.dma))
	return nil
}

func bdosSearchNext(c *CPM) error {
	setResult(c, c.Dir.Next(c.Memory, c.dma))
	return nil
}

func bdosDeleteFile(c *CPM) error {
	f := c.currentFCB()
	dir, err := c.Drives.Resolve(f.Drive(), c.currentDrive)
	if err != nil {
		return err
	}

	path := dir + "/" + f.FileName()
	if err := os.Remove(path); err != nil {
		setResult(c, 0xFF)
		return nil
	}
	setResult(c, 0)
	return nil
}

func bdosReadSeq(c *CPM) error {
	return c.readRecord(c.currentFCB(), true)
}

func bdosWriteSeq(c *CPM) error {
	return c.writeRecord(c.currentFCB(), true)
}

func bdosReadRandom(c *CPM) error {
	return c.readRecord(c.currentFCB(), false)
}

func bdosWriteRandom(c *CPM) error {
	return c.writeRecord(c.currentFCB(), false)
}

// readRecord reads one 128-byte record into the DMA buffer. When
// sequential is true the record index comes from CurrentRecord and is
// incremented on a non-empty read; otherwise it comes from
// RandomRecord and CurrentRecord is synced to match it first.
func (c *CPM) readRecord(f *fcb.FCB, sequential bool) error {
	if !sequential {
		if err := f.SetCurrentRecord(f.RandomRecord()); err != nil {
			return err
		}
	}

	fd, err := f.FD()
	if err != nil {
		return err
	}
	fh, ok := c.openFiles[fd]
	if !ok {
		return fatalf("read from unopened FCB", nil)
	}

	record := f.CurrentRecord()
	buf := make([]byte, 128)
	n, err := fh.ReadAt(buf, int64(record)*128)
	if err != nil && !errors.Is(err, io.EOF) {
		c.Logger.Warn("read failed", slog.String("error", err.Error()))
	}

	if n == 0 {
		setResult(c, 0x01)
		return nil
	}

	for i := n; i < 128; i++ {
		buf[i] = 0x1A
	}
	c.Memory.SetRange(c.dma, buf...)

	if sequential {
		if err := f.SetCurrentRecord(record + 1); err != nil {
			return err
		}
	}
	setResult(c, 0)
	return nil
}

// writeRecord writes one 128-byte record from the DMA buffer.
func (c *CPM) writeRecord(f *fcb.FCB, sequential bool) error {
	if !sequential {
		if err := f.SetCurrentRecord(f.RandomRecord()); err != nil {
			return err
		}
	}

	fd, err := f.FD()
	if err != nil {
		return err
	}
	fh, ok := c.openFiles[fd]
	if !ok {
		return fatalf("write to unopened FCB", nil)
	}

	record := f.CurrentRecord()
	buf := c.Memory.GetRange(c.dma, 128)
	n, err := fh.WriteAt(buf, int64(record)*128)
	if err != nil {
		if sequential {
			return err
		}
		setResult(c, 0x05)
		return nil
	}
	if n < 128 {
		if sequential {
			return fatalf("short write on sequential write", nil)
		}
		setResult(c, 0x05)
		return nil
	}

	if sequential {
		if err := f.SetCurrentRecord(record + 1); err != nil {
			return err
		}
	}
	setResult(c, 0)
	return nil
}

func bdosMakeFile(c *CPM) error {
	f := c.currentFCB()
	dir, err := c.Drives.Resolve(f.Drive(), c.currentDrive)
	if err != nil {
		return err
	}

	path := dir + "/" + f.FileName()
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		setResult(c, 0xFF)
		return nil
	}

	f.SetFD(int(fh.Fd()))
	c.openFiles[int(fh.Fd())] = fh
	setResult(c, 0)
	return nil
}

func bdosRenameFile(c *CPM) error {
	src := c.currentFCB()
	dst := fcb.New(c.Memory, c.CPU.States.DE.U16()+16)

	dir, err := c.Drives.Resolve(src.Drive(), c.currentDrive)
	if err != nil {
		return err
	}

	oldPath := dir + "/" + src.FileName()
	newPath := dir + "/" + dst.FileName()

	if err := os.Rename(oldPath, newPath); err != nil {
		setResult(c, 0xFF)
		return nil
	}
	setResult(c, 0)
	return nil
}

func bdosGetDrive(c *CPM) error {
	setResult(c, c.currentDrive)
	return nil
}

func bdosSetDMA(c *CPM) error {
	c.dma = c.CPU.States.DE.U16()
	return nil
}

func bdosComputeSize(c *CPM) error {
	f := c.currentFCB()
	dir, err := c.Drives.Resolve(f.Drive(), c.currentDrive)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir + "/" + f.FileName())
	if err != nil {
		setResult(c, 0xFF)
		return nil
	}

	records := uint32(info.Size() / 128)
	if info.Size()%128 != 0 {
		records++
	}
	c.Logger.Debug("computed file size",
		slog.String("name", f.FileName()),
		slog.String("size", humanize.Bytes(uint64(info.Size()))),
		slog.Int("records", int(records)))
	f.SetRandomRecord(records)
	setResult(c, 0)
	return nil
}
