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

// Package hiviz implements a leveled, colored logger for command line tools
// and services. Entries are delivered asynchronously by a single worker
// goroutine to a set of backends: the terminal (stdout, or stderr from a
// configurable level up), a size rotated log file (plain lines or JSON
// records) and the debug channel.
//
// # Initialization
//
// The package level functions use a default logger created on first use from
// the environment (see [EnvDebug], [EnvLog], [EnvLogFile] and friends):
//
//	func main() {
//		defer hiviz.Shutdown(time.Second)
//
//		hiviz.Info("starting", os.Args[1:])
//		hiviz.Log("warn", hiviz.Yellow, hiviz.Fields{"attempt": 3}, "retrying")
//		...
//	}
//
// Applications wanting their own instance use [New] with options, they may
// also install it as the default one with [SetDefault]:
//
//	lg, err := hiviz.New(
//		hiviz.WithFile(true),
//		hiviz.WithLogFile("/var/log/app.log"),
//		hiviz.WithTerminalLevel("warning"),
//	)
//
// A TOML file can provide the same settings, see [FileConfig] and
// [WithConfigFile].
//
// # Configuration overrides
//
// Every entry captures the configuration active when it's emitted, changing
// the configuration never affects entries already emitted. Temporary changes
// are pushed with [Logger.SetOptions] and popped with [Logger.ResetOptions],
// or scoped to a function with [Logger.WithOptions]:
//
//	lg.WithOptions(func() error {
//		lg.Info("only in the file")
//		return nil
//	}, hiviz.WithTerminal(false))
//
// # Backends
//
// The file, terminal and debug backends are always registered. Additional
// [Backend] implementations receive every entry, with its configuration, once
// registered with [Logger.RegisterBackend]. Failures of a backend are reported
// on the debug channel and never reach the code emitting entries.
//
// # Shutting down
//
// Go has no exit hooks, applications should call [Shutdown] (or
// [Logger.Shutdown]) before returning from main, or use [Exit] instead of
// os.Exit. [Logger.Stop] and [Logger.Start] control the worker directly.
package hiviz
