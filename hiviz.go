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
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
)

// Backend defines the interface of a backend implementation.
type Backend interface {
	// ID returns the backend's implementation ID.
	ID() string
	// Log is the entry point with the Backend implementation, the worker
	// will use Log() to forward the logging entry to the backend. The entry's
	// Options tell which sinks are enabled and at which levels.
	Log(entry *LogEntry) error
	// Flush flushes the backend's backing log storage.
	Flush() error
}

// Logger is a leveled, colored logger delivering entries asynchronously to
// its backends. It's safe for concurrent use.
type Logger struct {
	// mu protects opts and stack.
	mu sync.Mutex
	// opts is the active configuration.
	opts Options
	// stack is the override stack, the last element is the most recent one.
	stack []Options

	// queue is the event queue between producers and the worker.
	queue *eventQueue
	// worker consumes queue.
	worker *worker

	// backendsMutex protects backends.
	backendsMutex sync.Mutex
	// backends is the ordered list of registered backends.
	backends []Backend

	// exitFunc is the exit function called on behalf Fatal, Fatalf and Exit.
	exitFunc func(code int)
}

var (
	// defaultLogger is the logger used by the package level functions.
	defaultLogger atomic.Pointer[Logger]
	// defaultMutex serializes the lazy creation of defaultLogger.
	defaultMutex sync.Mutex

	// exitTimeout is how long Fatal and Exit wait for pending entries.
	exitTimeout = 5 * time.Second
)

// New creates a logger and starts its worker. The configuration is built
// from the defaults, then the environment (see the Env constants), then
// options.
func New(options ...Option) (*Logger, error) {
	opts, err := defaultOptions().apply(envOptions(lookupEnv)...)
	if err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	opts, err = opts.apply(options...)
	if err != nil {
		return nil, err
	}

	lg := newLogger(opts, os.Exit)
	lg.Start()
	return lg, nil
}

// newLogger allocates a logger with the built-in backends, its worker is not
// started.
func newLogger(opts Options, exitFunc func(code int)) *Logger {
	lg := &Logger{
		opts:     opts,
		queue:    newEventQueue(),
		exitFunc: exitFunc,
		backends: []Backend{NewFileBackend(), NewTerminalBackend(), NewDebugBackend()},
	}
	lg.worker = newWorker(lg.queue, lg.registeredBackends, func() io.Writer {
		return lg.Options().stderr()
	})
	return lg
}

// Default returns the logger used by the package level functions, creating
// it from the environment on first use.
func Default() *Logger {
	if lg := defaultLogger.Load(); lg != nil {
		return lg
	}

	defaultMutex.Lock()
	defer defaultMutex.Unlock()

	if lg := defaultLogger.Load(); lg != nil {
		return lg
	}

	lg, err := New()
	if err != nil {
		report(processStderr, "failed to configure default logger, using defaults: %v", err)
		lg = newLogger(defaultOptions(), os.Exit)
		lg.Start()
	}
	defaultLogger.Store(lg)
	return lg
}

// SetDefault replaces the default logger and returns the previous one. A nil
// lg makes the next Default call create a new logger. The previous logger
// is not stopped.
func SetDefault(lg *Logger) *Logger {
	return defaultLogger.Swap(lg)
}

// Options returns the active configuration.
func (lg *Logger) Options() Options {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return lg.opts
}

// Configure applies options to the active configuration without pushing it
// to the override stack. On error the configuration is left untouched.
func (lg *Logger) Configure(options ...Option) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	opts, err := lg.opts.apply(options...)
	if err != nil {
		return err
	}
	lg.opts = opts
	return nil
}

// SetOptions pushes the active configuration to the override stack and
// applies options. On error neither the configuration nor the stack change.
func (lg *Logger) SetOptions(options ...Option) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	opts, err := lg.opts.apply(options...)
	if err != nil {
		return err
	}
	lg.stack = append(lg.stack, lg.opts)
	lg.opts = opts
	return nil
}

// ResetOptions restores the configuration saved by the most recent
// SetOptions. With an empty stack it's a no-op.
func (lg *Logger) ResetOptions() {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if len(lg.stack) == 0 {
		return
	}
	last := len(lg.stack) - 1
	lg.opts = lg.stack[last]
	lg.stack[last] = Options{}
	lg.stack = lg.stack[:last]
}

// WithOptions runs fn with options applied, the previous configuration is
// restored when fn returns or panics. fn's error is returned unchanged.
func (lg *Logger) WithOptions(fn func() error, options ...Option) error {
	if err := lg.SetOptions(options...); err != nil {
		return err
	}
	defer lg.ResetOptions()
	return fn()
}

// RegisterBackend inserts/registers a backend implementation. A backend with
// the same ID is replaced. This function is thread safe and can be called
// from any goroutine in the program.
func (lg *Logger) RegisterBackend(backend Backend) {
	lg.backendsMutex.Lock()
	defer lg.backendsMutex.Unlock()

	for i, curr := range lg.backends {
		if curr.ID() == backend.ID() {
			lg.backends[i] = backend
			return
		}
	}
	lg.backends = append(lg.backends, backend)
}

// UnregisterBackend removes/unregisters a backend implementation, built-in
// backends included.
func (lg *Logger) UnregisterBackend(backend Backend) {
	lg.backendsMutex.Lock()
	defer lg.backendsMutex.Unlock()

	for i, curr := range lg.backends {
		if curr.ID() == backend.ID() {
			lg.backends = append(lg.backends[:i:i], lg.backends[i+1:]...)
			return
		}
	}
}

// RegisteredBackendIDs returns the list of registered backend IDs in
// dispatch order.
func (lg *Logger) RegisteredBackendIDs() []string {
	lg.backendsMutex.Lock()
	defer lg.backendsMutex.Unlock()

	var backendIDs []string
	for _, curr := range lg.backends {
		backendIDs = append(backendIDs, curr.ID())
	}
	return backendIDs
}

// registeredBackends returns a copy of the registered backends.
func (lg *Logger) registeredBackends() []Backend {
	lg.backendsMutex.Lock()
	defer lg.backendsMutex.Unlock()

	res := make([]Backend, len(lg.backends))
	copy(res, lg.backends)
	return res
}

// SetQueuePollInterval sets how long the worker waits on an empty queue
// before checking for state changes. Non positive values are ignored.
func (lg *Logger) SetQueuePollInterval(interval time.Duration) {
	lg.worker.setInterval(interval)
}

// QueuePollInterval returns the worker's queue poll interval.
func (lg *Logger) QueuePollInterval() time.Duration {
	return lg.worker.interval()
}

// Start starts the worker, it's a no-op if it's already running. Entries
// emitted while the worker was stopped are delivered once it starts.
func (lg *Logger) Start() {
	lg.worker.start()
}

// Stop stops the worker. With drain every entry emitted before the call is
// delivered and the backends are flushed, otherwise the worker exits after
// the entry it's currently delivering and pending entries stay queued. It
// returns false if the worker didn't exit within timeout.
func (lg *Logger) Stop(drain bool, timeout time.Duration) bool {
	return lg.worker.stop(drain, timeout)
}

// Flush waits up to timeout for every entry emitted before the call to be
// delivered and the backends flushed. It returns false if the worker isn't
// running or the timeout expired.
func (lg *Logger) Flush(timeout time.Duration) bool {
	return lg.worker.flush(timeout)
}

// Shutdown drains the queue, stops the worker and flushes the backends,
// waiting up to timeout for the pending entries. Entries left queued by a
// previous stop are delivered too.
func (lg *Logger) Shutdown(timeout time.Duration) {
	if lg.worker.currentState() == stateStopped && lg.queue.len() > 0 {
		lg.Start()
	}
	if !lg.Stop(true, timeout) {
		report(lg.Options().stderr(), "timed out after %v with %d pending events", timeout, lg.queue.len())
		return
	}
	lg.worker.flushBackends()
}

// Pending returns the number of queued events not yet handled by the worker.
func (lg *Logger) Pending() int {
	return lg.queue.len()
}

// callSite is the source location an entry is attributed to.
type callSite struct {
	file     string
	line     int
	function string
}

// callerAt returns the call site skip frames above callerAt's caller, the
// zero value if it can't be determined.
func callerAt(skip int) callSite {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return callSite{}
	}

	site := callSite{file: filepath.Base(file), line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.function = fn.Name()
	}
	return site
}

// emit builds an entry with the active configuration and enqueues it. skip
// is the number of frames between emit's caller and the public call site.
func (lg *Logger) emit(skip int, level any, color Color, fields Fields, msg string) {
	lg.emitAt(callerAt(skip+1), level, color, fields, msg)
}

// emitAt is emit with an already known call site.
func (lg *Logger) emitAt(site callSite, level any, color Color, fields Fields, msg string) {
	entry := lg.newEntry(level, color, fields, msg)
	entry.File = site.file
	entry.Line = site.line
	entry.Function = site.function
	lg.enqueue(entry)
}

// newEntry sets up the log entry for each logging call, the active
// configuration is captured with it.
func (lg *Logger) newEntry(level any, color Color, fields Fields, msg string) *LogEntry {
	opts := lg.Options()

	if color < Black || color > White {
		color = opts.Color
	}

	return &LogEntry{
		Level:   ResolveLevel(level, opts.Level),
		Color:   color,
		Message: msg,
		Fields:  copyFields(fields),
		When:    xclock.Now(),
		PID:     os.Getpid(),
		Thread:  currentThreadID(),
		opts:    opts,
	}
}

// enqueue hands entry over to the worker.
func (lg *Logger) enqueue(entry *LogEntry) {
	lg.queue.enqueue(queueItem{kind: itemEntry, entry: entry})
}

// copyFields returns a shallow copy of fields, nil if empty.
func copyFields(fields Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	res := make(Fields, len(fields))
	for k, v := range fields {
		res[k] = v
	}
	return res
}

// Log emits an entry. level accepts anything ResolveLevel does, unrecognized
// levels fall back to the configured Level. CurrentColor selects the active
// color. args are flattened: slices and arrays are joined with spaces and
// maps are rendered as sorted key=value pairs.
func (lg *Logger) Log(level any, color Color, fields Fields, args ...any) {
	lg.emit(1, level, color, fields, flatten(args...))
}

// Debug logs to the DEBUG log. Arguments are handled as in Log.
func (lg *Logger) Debug(args ...any) {
	lg.emit(1, DebugLevel, CurrentColor, nil, flatten(args...))
}

// Debugf logs to the DEBUG log. Arguments are handled in the manner of
// fmt.Printf.
func (lg *Logger) Debugf(format string, args ...any) {
	lg.emit(1, DebugLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Info logs to the INFO log. Arguments are handled as in Log.
func (lg *Logger) Info(args ...any) {
	lg.emit(1, InfoLevel, CurrentColor, nil, flatten(args...))
}

// Infof logs to the INFO log. Arguments are handled in the manner of
// fmt.Printf.
func (lg *Logger) Infof(format string, args ...any) {
	lg.emit(1, InfoLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Warn logs to the WARNING log. Arguments are handled as in Log.
func (lg *Logger) Warn(args ...any) {
	lg.emit(1, WarningLevel, CurrentColor, nil, flatten(args...))
}

// Warnf logs to the WARNING log. Arguments are handled in the manner of
// fmt.Printf.
func (lg *Logger) Warnf(format string, args ...any) {
	lg.emit(1, WarningLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Error logs to the ERROR log. Arguments are handled as in Log.
func (lg *Logger) Error(args ...any) {
	lg.emit(1, ErrorLevel, CurrentColor, nil, flatten(args...))
}

// Errorf logs to the ERROR log. Arguments are handled in the manner of
// fmt.Printf.
func (lg *Logger) Errorf(format string, args ...any) {
	lg.emit(1, ErrorLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Critical logs to the CRITICAL log. Arguments are handled as in Log.
func (lg *Logger) Critical(args ...any) {
	lg.emit(1, CriticalLevel, CurrentColor, nil, flatten(args...))
}

// Criticalf logs to the CRITICAL log. Arguments are handled in the manner of
// fmt.Printf.
func (lg *Logger) Criticalf(format string, args ...any) {
	lg.emit(1, CriticalLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Fatal logs to the CRITICAL log, shuts the logger down and exits the
// program with status 1.
func (lg *Logger) Fatal(args ...any) {
	lg.emit(1, CriticalLevel, CurrentColor, nil, flatten(args...))
	lg.Shutdown(exitTimeout)
	lg.exitFunc(1)
}

// Fatalf logs to the CRITICAL log, shuts the logger down and exits the
// program with status 1.
func (lg *Logger) Fatalf(format string, args ...any) {
	lg.emit(1, CriticalLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
	lg.Shutdown(exitTimeout)
	lg.exitFunc(1)
}

// Exit shuts the default logger down and exits the program with code.
func Exit(code int) {
	lg := Default()
	lg.Shutdown(exitTimeout)
	lg.exitFunc(code)
}

// Log emits an entry on the default logger, see Logger.Log.
func Log(level any, color Color, fields Fields, args ...any) {
	Default().emit(1, level, color, fields, flatten(args...))
}

// Debug logs to the DEBUG log of the default logger.
func Debug(args ...any) {
	Default().emit(1, DebugLevel, CurrentColor, nil, flatten(args...))
}

// Debugf logs to the DEBUG log of the default logger.
func Debugf(format string, args ...any) {
	Default().emit(1, DebugLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Info logs to the INFO log of the default logger.
func Info(args ...any) {
	Default().emit(1, InfoLevel, CurrentColor, nil, flatten(args...))
}

// Infof logs to the INFO log of the default logger.
func Infof(format string, args ...any) {
	Default().emit(1, InfoLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Warn logs to the WARNING log of the default logger.
func Warn(args ...any) {
	Default().emit(1, WarningLevel, CurrentColor, nil, flatten(args...))
}

// Warnf logs to the WARNING log of the default logger.
func Warnf(format string, args ...any) {
	Default().emit(1, WarningLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Error logs to the ERROR log of the default logger.
func Error(args ...any) {
	Default().emit(1, ErrorLevel, CurrentColor, nil, flatten(args...))
}

// Errorf logs to the ERROR log of the default logger.
func Errorf(format string, args ...any) {
	Default().emit(1, ErrorLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Critical logs to the CRITICAL log of the default logger.
func Critical(args ...any) {
	Default().emit(1, CriticalLevel, CurrentColor, nil, flatten(args...))
}

// Criticalf logs to the CRITICAL log of the default logger.
func Criticalf(format string, args ...any) {
	Default().emit(1, CriticalLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
}

// Fatal logs to the CRITICAL log of the default logger, shuts it down and
// exits the program with status 1.
func Fatal(args ...any) {
	lg := Default()
	lg.emit(1, CriticalLevel, CurrentColor, nil, flatten(args...))
	lg.Shutdown(exitTimeout)
	lg.exitFunc(1)
}

// Fatalf logs to the CRITICAL log of the default logger, shuts it down and
// exits the program with status 1.
func Fatalf(format string, args ...any) {
	lg := Default()
	lg.emit(1, CriticalLevel, CurrentColor, nil, fmt.Sprintf(format, args...))
	lg.Shutdown(exitTimeout)
	lg.exitFunc(1)
}

// CurrentOptions returns the default logger's active configuration.
func CurrentOptions() Options {
	return Default().Options()
}

// Configure applies options to the default logger, see Logger.Configure.
func Configure(options ...Option) error {
	return Default().Configure(options...)
}

// SetOptions pushes options on the default logger, see Logger.SetOptions.
func SetOptions(options ...Option) error {
	return Default().SetOptions(options...)
}

// ResetOptions pops the default logger's override stack.
func ResetOptions() {
	Default().ResetOptions()
}

// WithOptions runs fn with options applied to the default logger.
func WithOptions(fn func() error, options ...Option) error {
	return Default().WithOptions(fn, options...)
}

// RegisterBackend registers a backend on the default logger.
func RegisterBackend(backend Backend) {
	Default().RegisterBackend(backend)
}

// UnregisterBackend unregisters a backend from the default logger.
func UnregisterBackend(backend Backend) {
	Default().UnregisterBackend(backend)
}

// RegisteredBackendIDs returns the default logger's backend IDs.
func RegisteredBackendIDs() []string {
	return Default().RegisteredBackendIDs()
}

// SetQueuePollInterval sets the default logger's queue poll interval.
func SetQueuePollInterval(interval time.Duration) {
	Default().SetQueuePollInterval(interval)
}

// QueuePollInterval returns the default logger's queue poll interval.
func QueuePollInterval() time.Duration {
	return Default().QueuePollInterval()
}

// Start starts the default logger's worker.
func Start() {
	Default().Start()
}

// Stop stops the default logger's worker, see Logger.Stop.
func Stop(drain bool, timeout time.Duration) bool {
	return Default().Stop(drain, timeout)
}

// Flush flushes the default logger, see Logger.Flush.
func Flush(timeout time.Duration) bool {
	return Default().Flush(timeout)
}

// Shutdown shuts down the default logger, see Logger.Shutdown.
func Shutdown(timeout time.Duration) {
	Default().Shutdown(timeout)
}
