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
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasttemplate"
)

// TimestampFormat is the layout of rendered timestamps, always in UTC.
const TimestampFormat = "2006-01-02 15:04:05.000"

// errEncoderDisabled is returned when the JSON encoder produced no output,
// i.e. zerolog was globally disabled by the host application.
var errEncoderDisabled = errors.New("json encoder produced no output")

// Fields is the structured context attached to a log entry.
type Fields map[string]any

// LogEntry describes a log record. An entry is never modified once queued.
type LogEntry struct {
	// Level is the log level of the log record/entry.
	Level Level
	// Color is the resolved color of the entry.
	Color Color
	// Message is the formatted final log message, it may contain ANSI codes.
	Message string
	// Fields is the entry's structured context.
	Fields Fields
	// File is the file name of the log caller.
	File string
	// Line is the file's line of the log caller.
	Line int
	// Function is the function name of the log caller.
	Function string
	// When is the time when this log record/entry was created.
	When time.Time
	// PID is the id of the emitting process.
	PID int
	// Thread is the OS thread id of the emitting goroutine at the time of the
	// call, 0 where unsupported.
	Thread int

	// opts is the logger configuration captured when the entry was created.
	opts Options
}

// Options returns the logger configuration the entry is delivered with.
func (en *LogEntry) Options() Options {
	return en.opts
}

// Timestamp returns When formatted with TimestampFormat.
func (en *LogEntry) Timestamp() string {
	return en.When.UTC().Format(TimestampFormat)
}

// PlainMessage returns Message without ANSI escape sequences.
func (en *LogEntry) PlainMessage() string {
	return StripANSI(en.Message)
}

// Format renders the entry with a plain-line format, see Options.Formats.
// Unknown placeholders are kept as is.
func (en *LogEntry) Format(format string) (string, error) {
	tmpl, err := fasttemplate.NewTemplate(format, "{", "}")
	if err != nil {
		return "", fmt.Errorf("failed to parse format: %w", err)
	}

	return tmpl.ExecuteStringStd(map[string]any{
		"timestamp": en.Timestamp(),
		"level":     en.Level.String(),
		"message":   en.PlainMessage(),
		"color":     en.Color.String(),
		"file":      en.File,
		"line":      strconv.Itoa(en.Line),
		"function":  en.Function,
		"pid":       strconv.Itoa(en.PID),
		"thread":    strconv.Itoa(en.Thread),
	}), nil
}

// JSON renders the entry as a single line JSON record terminated by a new
// line.
func (en *LogEntry) JSON() ([]byte, error) {
	buf := new(bytes.Buffer)

	context := zerolog.Dict()
	if len(en.Fields) > 0 {
		context = context.Fields(map[string]any(en.Fields))
	}

	zl := zerolog.New(buf)
	zl.Log().
		Str("timestamp", en.Timestamp()).
		Str("level", en.Level.String()).
		Str("color", en.Color.Code()).
		Int("pid", en.PID).
		Int("thread", en.Thread).
		Str("file", en.File).
		Int("line", en.Line).
		Dict("context", context).
		Msg(en.PlainMessage())

	if buf.Len() == 0 {
		return nil, errEncoderDisabled
	}
	return buf.Bytes(), nil
}

// render returns the log file representation of the entry, new line
// included.
func (en *LogEntry) render() ([]byte, error) {
	if en.opts.JSON {
		return en.JSON()
	}

	line, err := en.Format(en.opts.Format(en.Level))
	if err != nil {
		return nil, err
	}
	return []byte(line + "\n"), nil
}

// flatten renders args as a single space separated string. Slices and arrays
// are flattened recursively and maps are rendered as key=value pairs sorted
// by key.
func flatten(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, flattenValue(arg))
	}
	return strings.Join(parts, " ")
}

// flattenValue renders a single argument, see flatten.
func flattenValue(arg any) string {
	if arg == nil {
		return "<nil>"
	}

	rv := reflect.ValueOf(arg)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "<nil>"
	}

	switch val := arg.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case error, fmt.Stringer:
		// fmt recovers from panicking Error and String methods.
		return fmt.Sprint(val)
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, flattenValue(rv.Index(i).Interface()))
		}
		return strings.Join(parts, " ")
	case reflect.Map:
		parts := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			parts = append(parts, fmt.Sprintf("%v=%s", iter.Key().Interface(), flattenValue(iter.Value().Interface())))
		}
		sort.Strings(parts)
		return strings.Join(parts, " ")
	}

	return fmt.Sprint(arg)
}
