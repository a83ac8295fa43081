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
	"reflect"
	"runtime"

	"github.com/trickstertwo/xclock"
)

// Time runs fn and logs how long it took: "<label> took <ms>ms" at INFO if
// it succeeds, an ERROR entry if it fails or panics. fn's error is returned
// unchanged and a panic is propagated after being logged. Entries are
// attributed to Time's caller.
func (lg *Logger) Time(label string, fn func() error) error {
	return lg.time(callerAt(1), label, fn)
}

// time implements Time, entries are attributed to site.
func (lg *Logger) time(site callSite, label string, fn func() error) (err error) {
	start := xclock.Now()

	defer func() {
		elapsed := xclock.Now().Sub(start).Milliseconds()
		if r := recover(); r != nil {
			lg.emitAt(site, ErrorLevel, CurrentColor, Fields{"label": label, "panic": fmt.Sprint(r)},
				fmt.Sprintf("%s panicked after %dms: %v", label, elapsed, r))
			panic(r)
		}
		if err != nil {
			lg.emitAt(site, ErrorLevel, CurrentColor, Fields{"label": label, "error": err.Error()},
				fmt.Sprintf("%s failed after %dms: %v", label, elapsed, err))
			return
		}
		lg.emitAt(site, InfoLevel, CurrentColor, nil, fmt.Sprintf("%s took %dms", label, elapsed))
	}()

	return fn()
}

// Wrap returns a function running fn and logging its failures at level with
// the func and error fields. name identifies fn in the entries, if empty
// fn's symbol name is used. Errors are returned unchanged and panics are
// propagated after being logged. Entries are attributed to the caller of
// the returned function.
func (lg *Logger) Wrap(level any, name string, fn func() error) func() error {
	if name == "" {
		name = funcName(fn)
	}

	return func() error {
		return lg.call(callerAt(1), level, name, fn)
	}
}

// call runs a wrapped fn, entries are attributed to site.
func (lg *Logger) call(site callSite, level any, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			lg.emitAt(site, level, CurrentColor, Fields{"func": name, "error": fmt.Sprint(r)},
				fmt.Sprintf("%s panicked: %v", name, r))
			panic(r)
		}
		if err != nil {
			lg.emitAt(site, level, CurrentColor, Fields{"func": name, "error": err.Error()},
				fmt.Sprintf("%s failed: %v", name, err))
		}
	}()
	return fn()
}

// WrapFunc is the value returning form of Logger.Wrap. A nil lg uses the
// default logger.
func WrapFunc[T any](lg *Logger, level any, name string, fn func() (T, error)) func() (T, error) {
	if name == "" {
		name = funcName(fn)
	}

	return func() (res T, err error) {
		site := callerAt(1)
		logger := lg
		if logger == nil {
			logger = Default()
		}

		err = logger.call(site, level, name, func() error {
			var ferr error
			res, ferr = fn()
			return ferr
		})
		return res, err
	}
}

// Time runs fn on the default logger, see Logger.Time.
func Time(label string, fn func() error) error {
	return Default().time(callerAt(1), label, fn)
}

// Wrap wraps fn on the default logger, see Logger.Wrap.
func Wrap(level any, name string, fn func() error) func() error {
	return Default().Wrap(level, name, fn)
}

// funcName returns the symbol name of fn, or "unknown".
func funcName(fn any) string {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return "unknown"
	}
	if f := runtime.FuncForPC(val.Pointer()); f != nil {
		return f.Name()
	}
	return "unknown"
}
