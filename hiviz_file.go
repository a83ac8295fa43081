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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// fileBackendID is the internal id of the file backend.
	fileBackendID = "log-backend,file"
)

// fileMetrics collects file backend counters.
type fileMetrics struct {
	// mu protects metric updates.
	mu sync.Mutex
	// writes is the number of successful log entry writes.
	writes int64
	// rotations is the number of attempted rotations.
	rotations int64
	// errors is the number of failed log entry writes or rotations.
	errors int64
}

// FileBackend is an implementation for logging to a rotating file. The file
// path, rotation policy and output format are taken from each entry's
// configuration.
type FileBackend struct {
	// backendID is the internal id of this file backend.
	backendID string
	// metrics is the file backend counters.
	metrics *fileMetrics
}

// NewFileBackend returns a Backend implementation that will log out to the
// configured log file.
func NewFileBackend() *FileBackend {
	return &FileBackend{
		backendID: fileBackendID,
		metrics:   new(fileMetrics),
	}
}

// ID returns the file backend implementation's ID.
func (fb *FileBackend) ID() string {
	return fb.backendID
}

// Log writes the entry to the log file, rotating the file first if needed.
// A failed rotation doesn't prevent the write, both failures are returned.
func (fb *FileBackend) Log(entry *LogEntry) error {
	opts := entry.opts
	if !opts.File || entry.Level < opts.FileLevel {
		return nil
	}

	var errs []error

	rotated, err := maybeRotate(opts.rotation())
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to rotate log file %s: %w", opts.LogFile, err))
	}
	fb.recordRotation(rotated, err)

	err = fb.write(entry)
	if err != nil {
		errs = append(errs, err)
	}
	fb.recordWrite(err)

	return errors.Join(errs...)
}

// write appends the rendered entry to the log file.
func (fb *FileBackend) write(entry *LogEntry) error {
	path := entry.opts.LogFile

	data, err := entry.render()
	if err != nil {
		return fmt.Errorf("failed to format log message: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	logFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", path, err)
	}
	defer logFile.Close()

	n, err := logFile.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write log to file: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("failed to write the message, wrote %d bytes out of %d bytes", n, len(data))
	}

	return nil
}

// recordRotation records a rotation attempt.
func (fb *FileBackend) recordRotation(rotated bool, err error) {
	fb.metrics.mu.Lock()
	defer fb.metrics.mu.Unlock()
	if rotated {
		fb.metrics.rotations++
	}
	if err != nil {
		fb.metrics.errors++
	}
}

// recordWrite records the result of a write.
func (fb *FileBackend) recordWrite(err error) {
	fb.metrics.mu.Lock()
	defer fb.metrics.mu.Unlock()
	if err == nil {
		fb.metrics.writes++
	} else {
		fb.metrics.errors++
	}
}

// Flush is a no-op implementation for file backend as we are opening the file
// for every log operation.
func (fb *FileBackend) Flush() error {
	return nil
}
