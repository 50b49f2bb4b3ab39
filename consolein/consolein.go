// Package consolein implements the keyboard collaborator: a producer
// that reads raw bytes from the host terminal and posts them, one at a
// time, to a sink. It never blocks the guest directly - the BDOS/CBIOS
// handlers that want a key block on the sink's own channel instead, so
// this package's only job is keeping that channel fed.
package consolein

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/term"
)

// Sink receives keystrokes as they are read from the terminal. It is
// satisfied by *cpm.Console.
type Sink interface {
	Push(byte)
}

// Keyboard reads raw bytes from stdin and feeds them to a Sink.
type Keyboard struct {
	// onInterrupt, if set, is invoked instead of forwarding the byte
	// when Ctrl-C (0x03) is read.
	onInterrupt func()
}

// New returns a keyboard collaborator; onInterrupt is called when
// Ctrl-C is read instead of delivering it to the guest.
func New(onInterrupt func()) *Keyboard {
	return &Keyboard{onInterrupt: onInterrupt}
}

// Run disables terminal echo, switches stdin to raw mode, and loops
// reading one byte at a time, pushing each into sink, until stdin
// closes or an error occurs. It is meant to run in its own goroutine
// for the lifetime of the emulator.
func (k *Keyboard) Run(sink Sink) error {
	disableEcho()
	defer enableEcho()

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error making raw terminal: %s", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	buf := make([]byte, 1)
	for {
		// Poll rather than block outright, so this goroutine can be
		// torn down by closing stdin without wedging the process.
		if !canSelect() {
			continue
		}

		_, err := os.Stdin.Read(buf)
		if err != nil {
			return err
		}

		if buf[0] == 0x03 && k.onInterrupt != nil {
			k.onInterrupt()
			continue
		}

		sink.Push(buf[0])
	}
}

// TerminalSize returns the host terminal's columns and rows, for the
// terminal-size sub-function of the BDOS 31 BIOS extension.
func TerminalSize() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

func disableEcho() {
	_ = exec.Command("stty", "-F", "/dev/tty", "-echo").Run()
}

func enableEcho() {
	_ = exec.Command("stty", "-F", "/dev/tty", "echo").Run()
}
