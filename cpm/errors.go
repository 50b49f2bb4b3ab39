package cpm

import "errors"

var (
	// ErrHalt is returned when the guest cleanly terminates, either by
	// jumping to the warm-boot vector at 0x0000 or by executing a
	// genuine Z80 HALT instruction.
	//
	// It should be expected and handled by callers.
	ErrHalt = errors.New("HALT")

	// ErrBoot signals a cold/warm boot. No handler in this package
	// returns it (the CBIOS BOOT and WBOOT entries only log); main
	// treats it as a clean exit, like ErrHalt.
	ErrBoot = errors.New("BOOT")

	// ErrTimeout names a run stopped for exceeding an instruction
	// budget. The scheduler imposes no budget and never returns it.
	ErrTimeout = errors.New("TIMEOUT")
)

// FatalError marks a programming error in the shim, as opposed to a
// guest-visible BDOS error code. A misaligned CBIOS jump, a missing
// drive mapping, a nested console read, and reading from or closing
// an unopened FCB are reported this way; invalid FCB encodings and a
// corrupted embedded file descriptor are reported as fcb.FatalError.
// main reports either kind and exits non-zero rather than silently
// limping on.
type FatalError struct {
	Msg string
	Err error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return "fatal: " + e.Msg + ": " + e.Err.Error()
	}
	return "fatal: " + e.Msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalf(msg string, err error) error {
	return &FatalError{Msg: msg, Err: err}
}
