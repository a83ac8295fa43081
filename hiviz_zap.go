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
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// errSyncFailed is returned by the zap core's Sync when pending entries
// couldn't be delivered in time.
var errSyncFailed = errors.New("hiviz: logger stopped or flush timed out")

// zapCore is a zapcore.Core delivering zap entries through a Logger.
type zapCore struct {
	zapcore.LevelEnabler
	// lg is the logger entries are delivered through.
	lg *Logger
	// fields are the fields bound with With.
	fields []zapcore.Field
}

// NewZapCore returns a zapcore.Core writing zap entries to lg, so libraries
// logging with zap end up in lg's sinks:
//
//	zl := zap.New(hiviz.NewZapCore(lg, zapcore.InfoLevel), zap.AddCaller())
//
// A nil enab enables every level. Fields become the entry's Fields and the
// zap caller, when recorded, its source location.
func NewZapCore(lg *Logger, enab zapcore.LevelEnabler) zapcore.Core {
	if enab == nil {
		enab = zapcore.DebugLevel
	}
	return &zapCore{LevelEnabler: enab, lg: lg}
}

// With returns a core with fields bound to every entry.
func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

// Check adds the core to ce if ent's level is enabled.
func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write enqueues ent. Entries above the error level are flushed before
// returning, zap may terminate the process right after.
func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	ctx := Fields(enc.Fields)
	if ent.LoggerName != "" {
		ctx["logger"] = ent.LoggerName
	}

	entry := c.lg.newEntry(fromZapLevel(ent.Level), CurrentColor, ctx, ent.Message)
	if !ent.Time.IsZero() {
		entry.When = ent.Time
	}
	if ent.Caller.Defined {
		entry.File = filepath.Base(ent.Caller.File)
		entry.Line = ent.Caller.Line
		entry.Function = ent.Caller.Function
	}
	c.lg.enqueue(entry)

	if ent.Level > zapcore.ErrorLevel {
		return c.Sync()
	}
	return nil
}

// Sync waits for every entry written so far to be delivered.
func (c *zapCore) Sync() error {
	if !c.lg.Flush(exitTimeout) {
		return errSyncFailed
	}
	return nil
}

// fromZapLevel maps a zap level to a log level.
func fromZapLevel(level zapcore.Level) Level {
	switch {
	case level <= zapcore.DebugLevel:
		return DebugLevel
	case level == zapcore.InfoLevel:
		return InfoLevel
	case level == zapcore.WarnLevel:
		return WarningLevel
	case level == zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return CriticalLevel
	}
}
