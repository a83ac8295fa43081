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
	"encoding/json"
	"os"
	"path"
	"strings"
	"testing"
)

func newFileTestEntry(t *testing.T, logFile string, options ...Option) *LogEntry {
	t.Helper()
	opts, err := defaultOptions().apply(append([]Option{WithFile(true), WithLogFile(logFile)}, options...)...)
	if err != nil {
		t.Fatalf("apply() failed: %v", err)
	}
	entry := newTestEntry()
	entry.opts = opts
	return entry
}

func TestFileInvalidFormat(t *testing.T) {
	logFile := path.Join(t.TempDir(), "hiviztest.log")
	be := NewFileBackend()

	entry := newFileTestEntry(t, logFile)
	entry.opts.Formats = FormatMap{WarningLevel: "{message"}

	if err := be.Log(entry); err == nil {
		t.Fatalf("Log() expected error, got nil")
	}
}

func TestFileSuccess(t *testing.T) {
	tests := []struct {
		desc    string
		options []Option
		want    string
	}{
		{
			desc: "plain",
			want: "[WARNING] disk almost full\n",
		},
		{
			desc:    "custom_format",
			options: []Option{WithFormat(WarningLevel, "{level}: {message}")},
			want:    "WARNING: disk almost full\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			logFile := path.Join(t.TempDir(), "hiviztest.log")
			be := NewFileBackend()

			if be.ID() == "" {
				t.Fatal("NewFileBackend() failed: ID() returned empty string")
			}

			if err := be.Log(newFileTestEntry(t, logFile, tc.options...)); err != nil {
				t.Fatalf("Log() failed: %v", err)
			}

			fileContent, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("os.ReadFile(%q) failed: %v", logFile, err)
			}

			if !strings.HasSuffix(string(fileContent), tc.want) {
				t.Fatalf("Log() got: %s, want suffix: %s", string(fileContent), tc.want)
			}

			if be.metrics.writes != 1 {
				t.Errorf("metrics.writes = %d, want: 1", be.metrics.writes)
			}
		})
	}
}

func TestFileJSONRecords(t *testing.T) {
	logFile := path.Join(t.TempDir(), "hiviztest.log")
	be := NewFileBackend()

	for i := 0; i < 3; i++ {
		if err := be.Log(newFileTestEntry(t, logFile, WithJSON(true))); err != nil {
			t.Fatalf("Log() failed: %v", err)
		}
	}

	fileContent, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("os.ReadFile(%q) failed: %v", logFile, err)
	}

	lines := strings.Split(strings.TrimSuffix(string(fileContent), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("log file has %d lines, want: 3", len(lines))
	}
	for i, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Errorf("line %d = %q, want a JSON record", i, line)
		}
	}
}

func TestFileDisabled(t *testing.T) {
	logFile := path.Join(t.TempDir(), "hiviztest.log")
	be := NewFileBackend()

	tests := []struct {
		desc    string
		options []Option
	}{
		{"file_disabled", []Option{WithFile(false)}},
		{"below_file_level", []Option{WithFileLevel(ErrorLevel)}},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			if err := be.Log(newFileTestEntry(t, logFile, tc.options...)); err != nil {
				t.Fatalf("Log() failed: %v", err)
			}
			if exists(logFile) {
				t.Errorf("log file %q should not exist", logFile)
			}
		})
	}
}

func TestFileRotationMetrics(t *testing.T) {
	logFile := path.Join(t.TempDir(), "hiviztest.log")
	be := NewFileBackend()

	for i := 0; i < 3; i++ {
		if err := be.Log(newFileTestEntry(t, logFile, WithMaxBytes(1))); err != nil {
			t.Fatalf("Log() failed: %v", err)
		}
	}

	if be.metrics.rotations != 2 {
		t.Errorf("metrics.rotations = %d, want: 2", be.metrics.rotations)
	}
	if !exists(backupName(logFile, 2)) {
		t.Errorf("backup %q should exist", backupName(logFile, 2))
	}
}
