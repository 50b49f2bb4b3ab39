// Package cpm is the main package of the emulator: it implements the
// CP/M 2.2 personality - BDOS/CBIOS dispatch, the FCB-to-host-file
// mapping, the directory iterator, and the scheduling loop that
// interleaves CPU stepping with (possibly suspending) console I/O -
// on top of an external Z80 CPU collaborator.
package cpm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/koron-go/z80"
	"github.com/tjfoster/gocpm/consoleout"
	"github.com/tjfoster/gocpm/memory"
)

// Fixed addresses, per the boot/trampoline layout.
const (
	// LoadAddress is where the guest program image is copied.
	LoadAddress = 0x0100

	// BdosAddress is where the BDOS trampoline (a single RET) lives;
	// 0x0005 contains a JP to this address.
	BdosAddress = 0xFE00

	// CbiosAddress is the base of the 17-entry, 3-byte-per-entry
	// CBIOS jump table.
	CbiosAddress = 0xFF00

	// CbiosEntries is the number of CBIOS jump-table slots.
	CbiosEntries = 17

	// DefaultDMAAddress is the default DMA buffer used by block I/O
	// before the guest calls SETDMA.
	DefaultDMAAddress = 0x0080

	// fcb1Address and fcb2Address are the command-line FCBs.
	fcb1Address = 0x005C
	fcb2Address = 0x006C

	// cliBufferAddress holds the Pascal-string command tail.
	cliBufferAddress = 0x0080
)

// Handler implements one BDOS or CBIOS function.
type Handler func(cpm *CPM) error

// Syscall names and describes a single dispatchable function, in the
// teacher's enumerated-dispatch idiom: a named variant per supported
// function plus a catch-all for everything else.
type Syscall struct {
	Desc    string
	Handler Handler
}

// CPM holds all of the emulator's process-wide state: guest memory,
// drive map, console channel, and dispatch tables. It's passed by
// reference to the scheduler and to every BDOS/CBIOS handler.
type CPM struct {
	// Memory is the 64KiB guest address space.
	Memory *memory.Memory

	// CPU is the Z80 CPU collaborator, stepping against Memory.
	CPU z80.CPU

	// Console is the keyboard input channel.
	Console *Console

	// Output is the stdout sink.
	Output *consoleout.ConsoleOut

	// Printer is the printer sink (LIST / CBIOS LIST).
	Printer Sink

	// Drives maps drive index to host directory.
	Drives *DriveMap

	// Dir is the in-progress SEARCH FIRST/NEXT state.
	Dir *DirIter

	// BDOS and CBIOS are the dispatch tables, keyed by function code
	// and by CBIOS jump-table index respectively.
	BDOS  map[uint8]Syscall
	CBIOS map[int]Syscall

	// currentDrive is 0=A, 1=B, ... 15=P.
	currentDrive uint8

	// userNumber is 0-15.
	userNumber uint8

	// dma is the address block I/O reads/writes through.
	dma uint16

	// openFiles maps an embedded host file descriptor back to its
	// *os.File, since the FCB only stores the small integer.
	openFiles map[int]*os.File

	// filename is the guest binary to execute.
	filename string

	// Logger is the structured logger; never nil.
	Logger *slog.Logger
}

// Option configures a CPM at construction time.
type Option func(*CPM) error

// WithDrive registers a drive mapping.
func WithDrive(index uint8, dir string) Option {
	return func(c *CPM) error {
		c.Drives.Set(index, dir)
		return nil
	}
}

// WithOutputDriver selects the named stdout driver (e.g. "ansi",
// "null").
func WithOutputDriver(name string) Option {
	return func(c *CPM) error {
		out, err := consoleout.New(name)
		if err != nil {
			return fmt.Errorf("failed to create output driver %q: %w", name, err)
		}
		c.Output = out
		return nil
	}
}

// WithPrinterPath directs the printer sink (BDOS LIST / CBIOS LIST) at
// a host file, appending on every write.
func WithPrinterPath(path string) Option {
	return func(c *CPM) error {
		c.Printer = NewFileSink(path)
		return nil
	}
}

// WithLogger overrides the default (discard) logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *CPM) error {
		c.Logger = l
		return nil
	}
}

// New constructs a CPM ready to load and run filename.
func New(filename string, opts ...Option) (*CPM, error) {
	c := &CPM{
		Memory:   new(memory.Memory),
		Console:  NewConsole(),
		Printer:  NullSink(),
		Drives:    NewDriveMap(),
		Dir:       NewDirIter(),
		dma:       DefaultDMAAddress,
		openFiles: make(map[int]*os.File),
		filename: filename,
		Logger:   slog.New(slog.NewTextHandler(discardWriter{}, nil)),
	}

	out, err := consoleout.New("ansi")
	if err != nil {
		return nil, fmt.Errorf("failed to create default output driver: %w", err)
	}
	c.Output = out

	c.BDOS = newBDOSTable()
	c.CBIOS = newCBIOSTable()

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Execute loads the configured binary, installs the boot trampoline,
// copies the command-line arguments into place, and runs the guest to
// completion.
func (c *CPM) Execute(args []string) error {
	if err := c.Memory.LoadFile(c.filename); err != nil {
		return fmt.Errorf("failed to load %s: %w", c.filename, err)
	}

	InstallBootTrampoline(c.Memory)
	c.setupCommandLine(args)

	c.CPU = z80.CPU{
		States: z80.States{SPR: z80.SPR{PC: LoadAddress}},
		Memory: c.Memory,
	}

	return c.run()
}

// setupCommandLine copies the CLI arguments into the Pascal-string
// buffer at 0x0080 and the two default FCBs at 0x005C/0x006C, per the
// boot-time layout.
func (c *CPM) setupCommandLine(args []string) {
	BlankFCB(c.Memory, fcb1Address)
	BlankFCB(c.Memory, fcb2Address)

	cli := strings.TrimSpace(strings.ToUpper(strings.Join(args, " ")))

	if len(args) > 0 {
		setupFCBFromArg(c.Memory, fcb1Address, args[0])
	}
	if len(args) > 1 {
		setupFCBFromArg(c.Memory, fcb2Address, args[1])
	}

	c.Memory.Set(cliBufferAddress, uint8(len(cli)))
	for i := 0; i < len(cli); i++ {
		c.Memory.Set(cliBufferAddress+1+uint16(i), cli[i])
	}
}

// CurrentDrive returns the active drive index.
func (c *CPM) CurrentDrive() uint8 { return c.currentDrive }

// DMA returns the active DMA buffer address.
func (c *CPM) DMA() uint16 { return c.dma }

// Close flushes and releases every host resource the guest may have
// left open: files opened via BDOS OPEN/MAKE that were never CLOSEd,
// and the printer sink. Errors from each are aggregated rather than
// stopping at the first, since a Ctrl-C shutdown should release as
// much as it can.
func (c *CPM) Close() error {
	var result *multierror.Error

	for fd, fh := range c.openFiles {
		if err := fh.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing fd %d: %w", fd, err))
		}
	}
	c.openFiles = make(map[int]*os.File)

	if err := c.Printer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing printer sink: %w", err))
	}

	return result.ErrorOrNil()
}

// discardWriter is a default io.Writer sink for the logger when the
// caller doesn't configure one.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
