package consoleout

import (
	"io"
	"os"
)

// LoggingOutputDriver records every character written to it instead of
// displaying it, for use by integration tests that need to assert on
// guest output.
type LoggingOutputDriver struct {
	writer  io.Writer
	history string
}

// GetName returns the name of this driver.
func (ol *LoggingOutputDriver) GetName() string {
	return "logger"
}

// PutCharacter appends the character to the recorded history.
func (ol *LoggingOutputDriver) PutCharacter(c uint8) {
	ol.history += string(c)
}

// SetWriter will update the writer.
func (ol *LoggingOutputDriver) SetWriter(w io.Writer) {
	ol.writer = w
}

// GetOutput returns the characters recorded so far.
//
// This is part of the ConsoleRecorder interface.
func (ol *LoggingOutputDriver) GetOutput() string {
	return ol.history
}

// Reset clears the recorded history.
//
// This is part of the ConsoleRecorder interface.
func (ol *LoggingOutputDriver) Reset() {
	ol.history = ""
}

func init() {
	Register("logger", func() ConsoleOutput {
		return &LoggingOutputDriver{writer: os.Stdout}
	})
}
