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
)

const (
	// debugBackendID is the internal id of the debug backend.
	debugBackendID = "log-backend,debug"
)

// DebugBackend mirrors every entry to the debug channel (stderr) when the
// Debug option is set.
type DebugBackend struct {
	// backendID is the internal id of this backend.
	backendID string
}

// NewDebugBackend returns a Backend implementation writing "LEVEL: message"
// lines to the debug channel.
func NewDebugBackend() *DebugBackend {
	return &DebugBackend{backendID: debugBackendID}
}

// ID returns the debug backend implementation's ID.
func (db *DebugBackend) ID() string {
	return db.backendID
}

// Log writes the entry to the debug channel.
func (db *DebugBackend) Log(entry *LogEntry) error {
	opts := entry.opts
	if !opts.Debug {
		return nil
	}
	return writeLine(opts.stderr(), fmt.Sprintf("%s: %s", entry.Level, entry.Message))
}

// Flush is a no-op, the debug channel is not buffered.
func (db *DebugBackend) Flush() error {
	return nil
}

// report writes an internal diagnostic to the debug channel. Write failures
// are dropped, there is nowhere left to report them.
func report(writer io.Writer, format string, args ...any) {
	fmt.Fprintf(writer, "DEBUG: hiviz: "+format+"\n", args...)
}
