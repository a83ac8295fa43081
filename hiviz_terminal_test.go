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
	"bytes"
	"errors"
	"testing"
)

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestTerminalBackend(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	be := NewTerminalBackend()

	if be.ID() == "" {
		t.Fatal("NewTerminalBackend() failed: ID() returned empty string")
	}

	entry := newTestEntry()
	entry.opts.Terminal = true
	entry.opts.Stdout, entry.opts.Stderr = stdout, stderr

	if err := be.Log(entry); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}

	if got := stdout.String(); got != "" {
		t.Errorf("stdout = %q, want empty", got)
	}
	// The raw message is written, embedded codes included.
	if got, want := stderr.String(), Red.Code()+entry.Message+Reset+"\n"; got != want {
		t.Errorf("stderr = %q, want: %q", got, want)
	}
}

func TestTerminalBackendWriteErrors(t *testing.T) {
	tests := []struct {
		desc   string
		writer interface{ Write([]byte) (int, error) }
	}{
		{"short_write", shortWriter{}},
		{"broken", brokenWriter{}},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			entry := newTestEntry()
			entry.opts.Terminal = true
			entry.opts.Stderr = tc.writer

			if err := NewTerminalBackend().Log(entry); err == nil {
				t.Errorf("Log() = nil, want error")
			}
		})
	}
}

func TestUseColor(t *testing.T) {
	tests := []struct {
		mode ColorMode
		tty  bool
		want bool
	}{
		{ColorAlways, false, true},
		{ColorAlways, true, true},
		{ColorNever, true, false},
		{ColorAuto, true, true},
		{ColorAuto, false, false},
	}

	for _, tc := range tests {
		if got := useColor(tc.mode, tc.tty); got != tc.want {
			t.Errorf("useColor(%s, %t) = %t, want: %t", tc.mode, tc.tty, got, tc.want)
		}
	}
}
