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
	"strings"
)

// Level is the severity of a log entry. Levels are totally ordered, a higher
// value is more severe.
type Level int

const (
	// DebugLevel is the log level definition for Debug severity.
	DebugLevel Level = 10
	// InfoLevel is the log level definition for Info severity.
	InfoLevel Level = 20
	// WarningLevel is the log level definition for Warning severity.
	WarningLevel Level = 30
	// ErrorLevel is the log level definition for Error severity.
	ErrorLevel Level = 40
	// CriticalLevel is the log level definition for Critical severity.
	CriticalLevel Level = 50
)

var (
	// allLevels is the list of all supported log levels, least severe first.
	allLevels = []Level{DebugLevel, InfoLevel, WarningLevel, ErrorLevel, CriticalLevel}

	// levelNames maps the accepted (upper cased) spellings to their level.
	levelNames = map[string]Level{
		"DEBUG":    DebugLevel,
		"INFO":     InfoLevel,
		"WARN":     WarningLevel,
		"WARNING":  WarningLevel,
		"ERROR":    ErrorLevel,
		"CRITICAL": CriticalLevel,
	}
)

// String returns the string representation of a log level.
func (level Level) String() string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	case CriticalLevel:
		return "CRITICAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(level))
}

// valid reports whether level is one of the predefined levels.
func (level Level) valid() bool {
	for _, lvl := range allLevels {
		if lvl == level {
			return true
		}
	}
	return false
}

// index returns the position of level in allLevels, or -1.
func (level Level) index() int {
	for i, lvl := range allLevels {
		if lvl == level {
			return i
		}
	}
	return -1
}

// Levels returns all supported levels, least severe first.
func Levels() []Level {
	res := make([]Level, len(allLevels))
	copy(res, allLevels)
	return res
}

// ValidLevels returns a string representation of all the valid log levels.
func ValidLevels() string {
	var levels []string
	for _, lvl := range allLevels {
		levels = append(levels, fmt.Sprintf("%s(%d)", lvl, int(lvl)))
	}
	return strings.Join(levels, ", ")
}

// ResolveLevel maps v to a log level. v may be a Level, any integer type
// holding the exact numeric value of a level, or a level name (case
// insensitive, WARN is accepted as an alias of WARNING).
//
// ResolveLevel never fails: nil or anything it doesn't recognize resolves to
// def.
func ResolveLevel(v any, def Level) Level {
	var n int64
	switch val := v.(type) {
	case nil:
		return def
	case Level:
		if val.valid() {
			return val
		}
		return def
	case string:
		if lvl, found := levelNames[strings.ToUpper(strings.TrimSpace(val))]; found {
			return lvl
		}
		return def
	case fmt.Stringer:
		return ResolveLevel(val.String(), def)
	case int:
		n = int64(val)
	case int8:
		n = int64(val)
	case int16:
		n = int64(val)
	case int32:
		n = int64(val)
	case int64:
		n = val
	case uint:
		n = int64(val)
	case uint8:
		n = int64(val)
	case uint16:
		n = int64(val)
	case uint32:
		n = int64(val)
	case uint64:
		if val > uint64(CriticalLevel) {
			return def
		}
		n = int64(val)
	default:
		return def
	}

	if lvl := Level(n); int64(lvl) == n && lvl.valid() {
		return lvl
	}
	return def
}
