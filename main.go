// Command gocpm runs a CP/M 2.2 binary against a host directory,
// emulating just enough of BDOS/CBIOS to let unmodified 8080/Z80 COM
// files execute against the host filesystem and terminal.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/jedib0t/go-pretty/v6/table"
	flags "github.com/jessevdk/go-flags"

	"github.com/tjfoster/gocpm/consolein"
	"github.com/tjfoster/gocpm/cpm"
	"github.com/tjfoster/gocpm/fcb"
	"github.com/tjfoster/gocpm/version"
)

// options holds the command-line flags, parsed with go-flags.
type options struct {
	Drive        string `short:"d" long:"drive" description:"Host directory to mount as drive A:" required:"true"`
	Input        string `long:"input" description:"Keyboard driver: stty or term" default:"stty"`
	Output       string `long:"output" description:"Console output driver" default:"ansi"`
	LogPath      string `long:"log" description:"Path to write structured logs; empty discards them"`
	PrinterPath  string `long:"printer" description:"Path to append BDOS LIST output; empty discards it"`
	ListSyscalls bool   `long:"list-syscalls" description:"Print the supported BDOS/CBIOS function table and exit"`
	ListDrivers  bool   `long:"list-drivers" description:"Print the available console output drivers and exit"`
	Version      bool   `short:"v" long:"version" description:"Print the version banner and exit"`

	Args struct {
		Program string   `positional-arg-name:"PROGRAM.COM"`
		Rest    []string `positional-arg-name:"ARGS"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "gocpm"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Print(version.GetVersionBanner())
		return
	}

	if opts.ListDrivers {
		printDrivers()
		return
	}

	if opts.ListSyscalls {
		printSyscalls()
		return
	}

	if opts.Args.Program == "" {
		fmt.Fprintln(os.Stderr, "gocpm: a PROGRAM.COM argument is required")
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		handleExit(err)
	}
}

// run constructs the emulator from opts, starts the keyboard producer,
// and executes the guest to completion or Ctrl-C.
func run(opts options) error {
	logger, logClose, err := newLogger(opts.LogPath)
	if err != nil {
		return err
	}
	defer logClose()

	cfgOpts := []cpm.Option{
		cpm.WithDrive(0, opts.Drive),
		cpm.WithOutputDriver(opts.Output),
		cpm.WithLogger(logger),
	}
	if opts.PrinterPath != "" {
		cfgOpts = append(cfgOpts, cpm.WithPrinterPath(opts.PrinterPath))
	}

	machine, err := cpm.New(opts.Args.Program, cfgOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := machine.Close(); cerr != nil {
			logger.Warn("cleanup failed", slog.String("error", cerr.Error()))
		}
	}()

	interrupted := make(chan struct{})
	keyboard := newKeyboard(opts.Input, func() { close(interrupted) })

	go func() {
		if err := keyboard.Run(machine.Console); err != nil {
			logger.Warn("keyboard driver exited", slog.String("error", err.Error()))
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- machine.Execute(opts.Args.Rest)
	}()

	select {
	case err := <-done:
		return err
	case <-interrupted:
		return cpm.ErrHalt
	}
}

// keyboardRunner is the shared shape of the two keyboard collaborators.
type keyboardRunner interface {
	Run(sink consolein.Sink) error
}

// newKeyboard selects the keyboard collaborator named by driver,
// defaulting to the raw-stdin reader when the name is unrecognised.
func newKeyboard(driver string, onInterrupt func()) keyboardRunner {
	if driver == "term" {
		return consolein.NewTermbox(onInterrupt)
	}
	return consolein.New(onInterrupt)
}

// newLogger opens path (if non-empty) and returns a structured logger
// writing to it, plus a close func; an empty path discards all log
// output.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(discard{}, nil)), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger := slog.New(slog.NewTextHandler(f, nil))
	return logger, func() { _ = f.Close() }, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// handleExit maps a terminal error from Execute onto an exit code and
// message, per the error-kind taxonomy: guest-clean-exit sentinels
// succeed quietly, fatal shim errors are reported loudly.
func handleExit(err error) {
	if errors.Is(err, cpm.ErrHalt) || errors.Is(err, cpm.ErrBoot) {
		os.Exit(0)
	}

	var fatal *cpm.FatalError
	var fcbFatal *fcb.FatalError
	var merr *multierror.Error

	switch {
	case errors.As(err, &fatal):
		fmt.Fprintln(os.Stderr, fatal.Error())
	case errors.As(err, &fcbFatal):
		fmt.Fprintln(os.Stderr, fcbFatal.Error())
	case errors.As(err, &merr):
		fmt.Fprintln(os.Stderr, merr.Error())
	default:
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}

// printDrivers renders the available console output drivers as a
// go-pretty table.
func printDrivers() {
	machine, err := cpm.New(os.DevNull)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	names := machine.Output.GetDrivers()
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Console Output Drivers")
	t.AppendHeader(table.Row{"Name"})
	for _, n := range names {
		t.AppendRow(table.Row{n})
	}
	t.Render()
}

// printSyscalls renders the BDOS/CBIOS function table as a go-pretty
// table.
func printSyscalls() {
	machine, err := cpm.New(os.DevNull)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BDOS Functions")
	t.AppendHeader(table.Row{"Code", "Name"})

	codes := make([]int, 0, len(machine.BDOS))
	for c := range machine.BDOS {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)
	for _, c := range codes {
		t.AppendRow(table.Row{c, machine.BDOS[uint8(c)].Desc})
	}
	t.Render()

	c2 := table.NewWriter()
	c2.SetOutputMirror(os.Stdout)
	c2.SetTitle("CBIOS Entries")
	c2.AppendHeader(table.Row{"Index", "Name"})
	for i := 0; i < cpm.CbiosEntries; i++ {
		c2.AppendRow(table.Row{i, machine.CBIOS[i].Desc})
	}
	c2.Render()
}
