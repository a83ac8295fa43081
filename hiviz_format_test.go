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
	"errors"
	"net/url"
	"testing"
	"time"
)

func newTestEntry() *LogEntry {
	return &LogEntry{
		Level:    WarningLevel,
		Color:    Red,
		Message:  "\x1b[1mdisk\x1b[0m almost full",
		Fields:   Fields{"user": "bob", "attempt": 3},
		File:     "main.go",
		Line:     42,
		Function: "main.run",
		When:     time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC),
		PID:      1234,
		Thread:   5678,
		opts:     defaultOptions(),
	}
}

func TestEntryFormat(t *testing.T) {
	tests := []struct {
		desc   string
		format string
		want   string
	}{
		{
			desc:   "default",
			format: fallbackFormat,
			want:   "2025-01-02 03:04:05.678 [WARNING] disk almost full",
		},
		{
			desc:   "source",
			format: "{file}:{line} {function} {message}",
			want:   "main.go:42 main.run disk almost full",
		},
		{
			desc:   "process",
			format: "[{pid}:{thread}] {color} {message}",
			want:   "[1234:5678] red disk almost full",
		},
		{
			desc:   "unknown_tag",
			format: "{level} {unknown}",
			want:   "WARNING {unknown}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := newTestEntry().Format(tc.format)
			if err != nil {
				t.Fatalf("Format(%q) failed: %v", tc.format, err)
			}
			if got != tc.want {
				t.Errorf("Format(%q) = %q, want: %q", tc.format, got, tc.want)
			}
		})
	}
}

func TestEntryFormatInvalid(t *testing.T) {
	if _, err := newTestEntry().Format("{message"); err == nil {
		t.Errorf("Format(%q) = nil error, want error", "{message")
	}
}

func TestEntryJSON(t *testing.T) {
	data, err := newTestEntry().JSON()
	if err != nil {
		t.Fatalf("JSON() failed: %v", err)
	}

	if data[len(data)-1] != '\n' {
		t.Errorf("JSON() = %q, want a trailing new line", data)
	}

	var record struct {
		Timestamp string         `json:"timestamp"`
		Level     string         `json:"level"`
		Message   string         `json:"message"`
		Color     string         `json:"color"`
		PID       int            `json:"pid"`
		Thread    int            `json:"thread"`
		File      string         `json:"file"`
		Line      int            `json:"line"`
		Context   map[string]any `json:"context"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", data, err)
	}

	if record.Timestamp != "2025-01-02 03:04:05.678" {
		t.Errorf("record.Timestamp = %q, want: %q", record.Timestamp, "2025-01-02 03:04:05.678")
	}
	if record.Level != "WARNING" {
		t.Errorf("record.Level = %q, want: WARNING", record.Level)
	}
	if record.Message != "disk almost full" {
		t.Errorf("record.Message = %q, want: %q", record.Message, "disk almost full")
	}
	if record.Color != Red.Code() {
		t.Errorf("record.Color = %q, want: %q", record.Color, Red.Code())
	}
	if record.PID != 1234 || record.Thread != 5678 {
		t.Errorf("record pid, thread = %d, %d, want: 1234, 5678", record.PID, record.Thread)
	}
	if record.File != "main.go" || record.Line != 42 {
		t.Errorf("record file, line = %s, %d, want: main.go, 42", record.File, record.Line)
	}
	if record.Context["user"] != "bob" || record.Context["attempt"] != float64(3) {
		t.Errorf("record.Context = %v, want: map[attempt:3 user:bob]", record.Context)
	}
}

func TestEntryJSONEmptyContext(t *testing.T) {
	entry := newTestEntry()
	entry.Fields = nil

	data, err := entry.JSON()
	if err != nil {
		t.Fatalf("JSON() failed: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", data, err)
	}

	context, ok := record["context"].(map[string]any)
	if !ok || len(context) != 0 {
		t.Errorf("record[context] = %v, want an empty object", record["context"])
	}
}

func TestEntryRender(t *testing.T) {
	entry := newTestEntry()

	line, err := entry.render()
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}
	if got, want := string(line), "2025-01-02 03:04:05.678 [WARNING] disk almost full\n"; got != want {
		t.Errorf("render() = %q, want: %q", got, want)
	}

	entry.opts.JSON = true
	line, err = entry.render()
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}
	if !json.Valid(line) {
		t.Errorf("render() = %q, want a JSON record", line)
	}
}

func TestEntryTimestampUTC(t *testing.T) {
	entry := newTestEntry()
	entry.When = time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))

	if got, want := entry.Timestamp(), "2025-01-01 10:00:00.000"; got != want {
		t.Errorf("Timestamp() = %q, want: %q", got, want)
	}
}

type testStringer struct{}

func (testStringer) String() string {
	return "stringer"
}

type panickingStringer struct{}

func (panickingStringer) String() string {
	panic("oops")
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		desc string
		args []any
		want string
	}{
		{"empty", nil, ""},
		{"strings", []any{"a", "b"}, "a b"},
		{"numbers", []any{1, 2.5, true}, "1 2.5 true"},
		{"slice", []any{[]string{"x", "y"}}, "x y"},
		{"array", []any{[2]int{3, 4}}, "3 4"},
		{"nested", []any{[]any{1, []any{2, []int{3}}}}, "1 2 3"},
		{"map_sorted", []any{map[string]int{"b": 2, "a": 1}}, "a=1 b=2"},
		{"map_nested_slice", []any{map[string][]int{"k": {1, 2}}}, "k=1 2"},
		{"error", []any{errors.New("boom")}, "boom"},
		{"stringer", []any{testStringer{}}, "stringer"},
		{"bytes", []any{[]byte("raw")}, "raw"},
		{"nil", []any{nil}, "<nil>"},
		{"nil_stringer", []any{(*time.Time)(nil)}, "<nil>"},
		{"nil_error", []any{(*url.Error)(nil)}, "<nil>"},
		{"nil_pointer", []any{"request", (*url.URL)(nil)}, "request <nil>"},
		{"panicking_stringer", []any{panickingStringer{}}, "%!v(PANIC=String method: oops)"},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			if got := flatten(tc.args...); got != tc.want {
				t.Errorf("flatten(%v) = %q, want: %q", tc.args, got, tc.want)
			}
		})
	}
}
