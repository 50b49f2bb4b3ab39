package consolein

import (
	"github.com/nsf/termbox-go"
)

// TermboxKeyboard is an alternate keyboard collaborator for
// environments where raw single-byte stdin reads mishandle
// escape-sequence-heavy input (arrow keys, function keys): termbox
// decodes those into discrete events instead of leaving them to be
// split byte-by-byte.
type TermboxKeyboard struct {
	onInterrupt func()
}

// NewTermbox returns a termbox-backed keyboard collaborator.
func NewTermbox(onInterrupt func()) *TermboxKeyboard {
	return &TermboxKeyboard{onInterrupt: onInterrupt}
}

// Run initializes termbox in input-only mode and loops decoding key
// events, pushing each resulting byte to sink, until termbox.Close is
// called or a fatal event error occurs.
func (k *TermboxKeyboard) Run(sink Sink) error {
	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventKey:
			if ev.Key == termbox.KeyCtrlC {
				if k.onInterrupt != nil {
					k.onInterrupt()
				}
				continue
			}
			if ev.Ch != 0 {
				// Runes outside single-byte ASCII are delivered as
				// their UTF-8 bytes, one byte at a time, the same way
				// the raw-mode driver delivers multi-byte sequences.
				if ev.Ch < 128 {
					sink.Push(byte(ev.Ch))
				} else {
					for _, b := range []byte(string(ev.Ch)) {
						sink.Push(b)
					}
				}
				continue
			}
			if b, ok := specialKeyByte(ev.Key); ok {
				sink.Push(b)
			}
		case termbox.EventError:
			return ev.Err
		}
	}
}

// specialKeyByte maps the handful of control keys our supported
// software set cares about onto their CP/M byte equivalents.
func specialKeyByte(key termbox.Key) (byte, bool) {
	switch key {
	case termbox.KeyEnter:
		return 0x0D, true
	case termbox.KeyBackspace, termbox.KeyBackspace2:
		return 0x08, true
	case termbox.KeyTab:
		return 0x09, true
	case termbox.KeyEsc:
		return 0x1B, true
	case termbox.KeySpace:
		return 0x20, true
	default:
		return 0, false
	}
}
