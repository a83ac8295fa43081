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
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestZapCore(t *testing.T) {
	tl := newTestLogger(t)
	cb := captured(tl)

	zl := zap.New(NewZapCore(tl, zapcore.InfoLevel), zap.AddCaller()).Named("db").With(zap.String("svc", "api"))

	zl.Debug("hidden")
	zl.Info("connected", zap.Int("conns", 3))
	zl.Warn("slow query")
	zl.Error("lost connection", zap.Bool("retry", true))
	if err := zl.Sync(); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	entries := cb.all()
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want: 3", len(entries))
	}

	tests := []struct {
		level   Level
		message string
	}{
		{InfoLevel, "connected"},
		{WarningLevel, "slow query"},
		{ErrorLevel, "lost connection"},
	}

	for i, tc := range tests {
		entry := entries[i]
		if entry.Level != tc.level || entry.Message != tc.message {
			t.Errorf("entries[%d] = {%s, %q}, want: {%s, %q}", i, entry.Level, entry.Message, tc.level, tc.message)
		}
		if entry.Fields["svc"] != "api" || entry.Fields["logger"] != "db" {
			t.Errorf("entries[%d].Fields = %v, want svc=api and logger=db", i, entry.Fields)
		}
		if entry.File != "hiviz_zap_test.go" {
			t.Errorf("entries[%d].File = %q, want: hiviz_zap_test.go", i, entry.File)
		}
	}

	if got := entries[0].Fields["conns"]; got != int64(3) {
		t.Errorf("entries[0].Fields[conns] = %v (%T), want: 3", got, got)
	}
	if got := entries[2].Fields["retry"]; got != true {
		t.Errorf("entries[2].Fields[retry] = %v, want: true", got)
	}
}

func TestZapCoreNilEnabler(t *testing.T) {
	tl := newTestLogger(t)
	cb := captured(tl)

	zl := zap.New(NewZapCore(tl, nil))
	zl.Debug("verbose")
	zl.DPanic("critical")
	if err := zl.Sync(); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	entries := cb.all()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want: 2", len(entries))
	}
	if entries[0].Level != DebugLevel {
		t.Errorf("entries[0].Level = %s, want: %s", entries[0].Level, DebugLevel)
	}
	if entries[1].Level != CriticalLevel {
		t.Errorf("entries[1].Level = %s, want: %s", entries[1].Level, CriticalLevel)
	}
}

func TestZapCoreSyncStopped(t *testing.T) {
	tl := newTestLogger(t)
	if !tl.Stop(true, testTimeout) {
		t.Fatalf("Stop(true, %v) = false, want: true", testTimeout)
	}

	if err := NewZapCore(tl, nil).Sync(); err != errSyncFailed {
		t.Errorf("Sync() = %v, want: %v", err, errSyncFailed)
	}
}

func TestFromZapLevel(t *testing.T) {
	tests := []struct {
		in   zapcore.Level
		want Level
	}{
		{zapcore.DebugLevel, DebugLevel},
		{zapcore.InfoLevel, InfoLevel},
		{zapcore.WarnLevel, WarningLevel},
		{zapcore.ErrorLevel, ErrorLevel},
		{zapcore.DPanicLevel, CriticalLevel},
		{zapcore.PanicLevel, CriticalLevel},
		{zapcore.FatalLevel, CriticalLevel},
	}

	for _, tc := range tests {
		t.Run(tc.in.String(), func(t *testing.T) {
			if got := fromZapLevel(tc.in); got != tc.want {
				t.Errorf("fromZapLevel(%s) = %s, want: %s", tc.in, got, tc.want)
			}
		})
	}
}
