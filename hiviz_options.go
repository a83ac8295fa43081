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
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultMaxBytes is the default size threshold triggering a log file
	// rotation.
	DefaultMaxBytes = 2_000_000
	// DefaultBackupCount is the default number of rotated files kept.
	DefaultBackupCount = 3
	// DefaultLogFile is the default log file path.
	DefaultLogFile = "debug.log"

	// fallbackFormat is used when no plain-line format was configured for a
	// level.
	fallbackFormat = "{timestamp} [{level}] {message}"
)

// Environment variables consulted when a logger is created.
const (
	EnvDebug         = "DEBUG"
	EnvLog           = "LOG"
	EnvLogFile       = "LOG_FILE"
	EnvTerminalLevel = "LOG_TERMINAL_LEVEL"
	EnvFileLevel     = "LOG_FILE_LEVEL"
	EnvStderrLevel   = "LOG_STDERR_LEVEL"
	EnvNoColor       = "NO_COLOR"
)

// ColorMode controls when terminal output is wrapped with color codes.
type ColorMode int

const (
	// ColorAlways always wraps terminal output with color codes.
	ColorAlways ColorMode = iota
	// ColorAuto only colors output written to a terminal.
	ColorAuto
	// ColorNever never colors terminal output.
	ColorNever
)

// String returns the color mode name.
func (m ColorMode) String() string {
	switch m {
	case ColorAuto:
		return "auto"
	case ColorNever:
		return "never"
	default:
		return "always"
	}
}

// ParseColorMode parses "always", "auto" or "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "":
		return ColorAlways, nil
	case "auto":
		return ColorAuto, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAlways, fmt.Errorf("invalid color mode %q, must be one of: always, auto, never", s)
}

// FormatMap wraps the level <-> plain-line format map type.
type FormatMap map[Level]string

// Options is the full logger configuration. A copy of it is captured for
// every emitted entry, so an entry is always delivered with one consistent
// configuration.
type Options struct {
	// Level is the level used when Log is called with an unrecognized level.
	Level Level
	// Color is the active color for entries emitted with CurrentColor.
	Color Color
	// Terminal enables the terminal sink.
	Terminal bool
	// File enables the file sink.
	File bool
	// Debug enables mirroring every entry to the debug channel (stderr).
	Debug bool
	// TerminalLevel is the minimum level written to the terminal.
	TerminalLevel Level
	// FileLevel is the minimum level written to the log file.
	FileLevel Level
	// StderrLevel is the minimum level routed to stderr instead of stdout.
	StderrLevel Level
	// LogFile is the log file path.
	LogFile string
	// JSON selects newline-delimited JSON records for the log file.
	JSON bool
	// MaxBytes is the size triggering a rotation, <= 0 disables rotation.
	MaxBytes int64
	// BackupCount is the number of rotated files kept, 0 truncates the file
	// instead of keeping backups.
	BackupCount int
	// ColorMode controls terminal coloring.
	ColorMode ColorMode
	// Formats maps plain-line formats per level. Formats use {tag}
	// placeholders: timestamp, level, message, color, file, line, function,
	// pid and thread.
	Formats FormatMap
	// Stdout is the terminal's standard output, nil means the process stdout.
	Stdout io.Writer
	// Stderr is the terminal's standard error and the debug channel, nil
	// means the process stderr.
	Stderr io.Writer
}

// Option changes one or more configuration values.
type Option func(*Options) error

// defaultOptions returns the built-in configuration.
func defaultOptions() Options {
	return Options{
		Level:         InfoLevel,
		Color:         Blue,
		Terminal:      true,
		TerminalLevel: InfoLevel,
		FileLevel:     DebugLevel,
		StderrLevel:   WarningLevel,
		LogFile:       DefaultLogFile,
		MaxBytes:      DefaultMaxBytes,
		BackupCount:   DefaultBackupCount,
		ColorMode:     ColorAlways,
	}
}

// envOptions returns the options derived from the environment. Malformed
// values are ignored.
func envOptions(lookup func(string) (string, bool)) []Option {
	var opts []Option

	boolEnv := func(name string, fc func(bool) Option) {
		if val, found := lookup(name); found {
			if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
				opts = append(opts, fc(b))
			}
		}
	}

	boolEnv(EnvDebug, WithDebug)
	boolEnv(EnvLog, WithFile)

	if val, found := lookup(EnvLogFile); found && val != "" {
		opts = append(opts, WithLogFile(val))
	}

	levelEnv := func(name string, fc func(any) Option) {
		if val, found := lookup(name); found && val != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				opts = append(opts, fc(n))
			} else {
				opts = append(opts, fc(val))
			}
		}
	}

	levelEnv(EnvTerminalLevel, WithTerminalLevel)
	levelEnv(EnvFileLevel, WithFileLevel)
	levelEnv(EnvStderrLevel, WithStderrLevel)

	if val, found := lookup(EnvNoColor); found && val != "" {
		opts = append(opts, WithColorMode(ColorNever))
	}

	return opts
}

// apply returns a copy of opts with all options applied. opts is never
// modified, if any option fails the error is returned.
func (opts Options) apply(options ...Option) (Options, error) {
	res := opts
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt(&res); err != nil {
			return opts, err
		}
	}
	return res, nil
}

// Format returns the plain-line format configured to a given level. If no
// format is found for the requested level the closest format is used, i.e:
//
//   - if Error is found in the mapping, Warning is not defined, and level is
//     Warning the format of Error will be returned.
//
// If no format could be found fallbackFormat is returned.
func (opts Options) Format(level Level) string {
	if format, found := opts.Formats[level]; found {
		return format
	}

	idx := level.index()
	if idx < 0 {
		return fallbackFormat
	}

	for i := idx; i < len(allLevels); i++ {
		if format, found := opts.Formats[allLevels[i]]; found {
			return format
		}
	}

	for i := idx; i >= 0; i-- {
		if format, found := opts.Formats[allLevels[i]]; found {
			return format
		}
	}

	return fallbackFormat
}

// stdout returns the configured standard output writer.
func (opts Options) stdout() io.Writer {
	if opts.Stdout != nil {
		return opts.Stdout
	}
	return processStdout
}

// stderr returns the configured standard error writer.
func (opts Options) stderr() io.Writer {
	if opts.Stderr != nil {
		return opts.Stderr
	}
	return processStderr
}

// rotation returns the rotation descriptor of the configured log file.
func (opts Options) rotation() rotation {
	return rotation{path: opts.LogFile, maxBytes: opts.MaxBytes, backupCount: opts.BackupCount}
}

// WithLevel sets the level used for entries logged with an unrecognized
// level. level accepts anything ResolveLevel does, unrecognized values keep
// the current setting.
func WithLevel(level any) Option {
	return func(opts *Options) error {
		opts.Level = ResolveLevel(level, opts.Level)
		return nil
	}
}

// WithTerminalLevel sets the minimum level written to the terminal.
func WithTerminalLevel(level any) Option {
	return func(opts *Options) error {
		opts.TerminalLevel = ResolveLevel(level, opts.TerminalLevel)
		return nil
	}
}

// WithFileLevel sets the minimum level written to the log file.
func WithFileLevel(level any) Option {
	return func(opts *Options) error {
		opts.FileLevel = ResolveLevel(level, opts.FileLevel)
		return nil
	}
}

// WithStderrLevel sets the minimum level routed to stderr.
func WithStderrLevel(level any) Option {
	return func(opts *Options) error {
		opts.StderrLevel = ResolveLevel(level, opts.StderrLevel)
		return nil
	}
}

// WithColor sets the active color.
func WithColor(color Color) Option {
	return func(opts *Options) error {
		if color < Black || color > White {
			return &InvalidColorError{Name: color.String(), Allowed: ColorNames()}
		}
		opts.Color = color
		return nil
	}
}

// WithColorName sets the active color by name, see ResolveColor.
func WithColorName(name string) Option {
	return func(opts *Options) error {
		color, err := ResolveColor(name)
		if err != nil {
			return err
		}
		opts.Color = color
		return nil
	}
}

// WithTerminal enables or disables the terminal sink.
func WithTerminal(enabled bool) Option {
	return func(opts *Options) error {
		opts.Terminal = enabled
		return nil
	}
}

// WithFile enables or disables the file sink.
func WithFile(enabled bool) Option {
	return func(opts *Options) error {
		opts.File = enabled
		return nil
	}
}

// WithDebug enables or disables the debug channel mirror.
func WithDebug(enabled bool) Option {
	return func(opts *Options) error {
		opts.Debug = enabled
		return nil
	}
}

// WithLogFile sets the log file path.
func WithLogFile(path string) Option {
	return func(opts *Options) error {
		if path == "" {
			return fmt.Errorf("log file path must not be empty")
		}
		opts.LogFile = path
		return nil
	}
}

// WithJSON toggles JSON records in the log file.
func WithJSON(enabled bool) Option {
	return func(opts *Options) error {
		opts.JSON = enabled
		return nil
	}
}

// WithMaxBytes sets the log file rotation threshold, <= 0 disables rotation.
func WithMaxBytes(n int64) Option {
	return func(opts *Options) error {
		opts.MaxBytes = n
		return nil
	}
}

// WithBackupCount sets the number of rotated log files kept.
func WithBackupCount(n int) Option {
	return func(opts *Options) error {
		if n < 0 {
			return fmt.Errorf("invalid backup count %d, must be >= 0", n)
		}
		opts.BackupCount = n
		return nil
	}
}

// WithColorMode sets the terminal color mode.
func WithColorMode(mode ColorMode) Option {
	return func(opts *Options) error {
		if mode < ColorAlways || mode > ColorNever {
			return fmt.Errorf("invalid color mode %d", int(mode))
		}
		opts.ColorMode = mode
		return nil
	}
}

// WithFormat sets the plain-line format of the specified level. See
// Options.Formats for the supported placeholders.
func WithFormat(level Level, format string) Option {
	return func(opts *Options) error {
		if !level.valid() {
			return fmt.Errorf("invalid log level %d, must be one of: %s", int(level), ValidLevels())
		}
		if _, err := fasttemplate.NewTemplate(format, "{", "}"); err != nil {
			return fmt.Errorf("invalid format %q: %w", format, err)
		}
		// Formats is shared by every snapshot holding it, never modify it in
		// place.
		formats := make(FormatMap, len(opts.Formats)+1)
		for k, v := range opts.Formats {
			formats[k] = v
		}
		formats[level] = format
		opts.Formats = formats
		return nil
	}
}

// WithOutput replaces the terminal writers. A nil writer selects the process
// stream.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(opts *Options) error {
		opts.Stdout = stdout
		opts.Stderr = stderr
		return nil
	}
}

// lookupEnv is the environment lookup used by New, tests may override it.
var lookupEnv = os.LookupEnv
