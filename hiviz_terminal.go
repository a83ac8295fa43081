//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package hiviz

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	// terminalBackendID is the internal id of the terminal backend.
	terminalBackendID = "log-backend,terminal"
)

var (
	// processStdout is the process' stdout, translating ANSI codes where the
	// console doesn't understand them.
	processStdout = colorable.NewColorableStdout()
	// processStderr is the process' stderr, translating ANSI codes where the
	// console doesn't understand them.
	processStderr = colorable.NewColorableStderr()
	// stdoutIsTerminal is true if the process' stdout is a terminal.
	stdoutIsTerminal = isTerminal(os.Stdout.Fd())
	// stderrIsTerminal is true if the process' stderr is a terminal.
	stderrIsTerminal = isTerminal(os.Stderr.Fd())
)

// fdWriter is implemented by writers backed by a file descriptor.
type fdWriter interface {
	Fd() uintptr
}

// isTerminal reports whether fd refers to a terminal.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalBackend is an implementation for logging colored messages to the
// process' stdout and stderr.
type TerminalBackend struct {
	// backendID is the internal id of this backend.
	backendID string
}

// NewTerminalBackend returns a Backend implementation that will log out to
// the terminal. Entries at or above the configured stderr level go to
// stderr, the remaining ones to stdout.
func NewTerminalBackend() *TerminalBackend {
	return &TerminalBackend{backendID: terminalBackendID}
}

// ID returns the terminal backend implementation's ID.
func (tb *TerminalBackend) ID() string {
	return tb.backendID
}

// Log prints the entry's raw message wrapped with its color.
func (tb *TerminalBackend) Log(entry *LogEntry) error {
	opts := entry.opts
	if !opts.Terminal || entry.Level < opts.TerminalLevel {
		return nil
	}

	writer, tty := opts.stdout(), stdoutIsTerminal
	custom := opts.Stdout != nil
	if entry.Level >= opts.StderrLevel {
		writer, tty = opts.stderr(), stderrIsTerminal
		custom = opts.Stderr != nil
	}

	if custom {
		tty = false
		if fw, ok := writer.(fdWriter); ok {
			tty = isTerminal(fw.Fd())
		}
	}

	message := entry.Message
	if useColor(opts.ColorMode, tty) {
		message = colorize(entry.Color, message)
	}

	return writeLine(writer, message)
}

// Flush is a no-op, terminal writes are not buffered.
func (tb *TerminalBackend) Flush() error {
	return nil
}

// useColor reports whether output should be colored under mode.
func useColor(mode ColorMode, tty bool) bool {
	switch mode {
	case ColorNever:
		return false
	case ColorAuto:
		return tty
	default:
		return true
	}
}

// writeLine writes message and a new line to writer.
func writeLine(writer io.Writer, message string) error {
	line := message + "\n"
	n, err := io.WriteString(writer, line)
	if err != nil {
		return fmt.Errorf("failed to write log to terminal: %w", err)
	}

	if n != len(line) {
		return fmt.Errorf("failed to write the message, wrote %d bytes out of %d bytes", n, len(line))
	}

	return nil
}
