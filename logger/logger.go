// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger wraps log/slog with the five severities the engine logs
// at (TRACE, DEBUG, INFO, WARNING, ERROR) plus an OFF level that silences
// everything, and an optional rotating file sink via lumberjack.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels below and above slog's four standard ones, matching the
// vocabulary the engine's callers configure logging with.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// ParseSeverity maps a severity name (case-sensitive, as config files spell
// it) to its slog.Level, defaulting to LevelInfo for an unrecognized value.
func ParseSeverity(s string) slog.Level {
	switch s {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

var (
	mu      sync.Mutex
	level   = new(slog.LevelVar)
	logger  = slog.New(newHandler(os.Stderr, level, "text"))
	rotator *lumberjack.Logger
)

func init() {
	level.Set(LevelInfo)
}

func newHandler(w io.Writer, lvl slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				l := a.Value.Any().(slog.Level)
				if name, ok := levelNames[l]; ok {
					a.Value = slog.StringValue(name)
				}
				a.Key = "severity"
			}
			return a
		},
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLevel adjusts the minimum severity logged. It is safe to call
// concurrently with logging calls.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// SetOutput rebuilds the default logger to write format ("text" or "json")
// to w, preserving the current level.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(newHandler(w, level, format))
}

// RotateConfig describes lumberjack's rotation policy for InitFile.
type RotateConfig struct {
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// InitFile points the default logger at a rotating file sink, replacing
// whatever output SetOutput last configured.
func InitFile(path, format string, rotate RotateConfig) error {
	mu.Lock()
	defer mu.Unlock()

	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotate.MaxSizeMB,
		MaxBackups: rotate.MaxBackups,
		Compress:   rotate.Compress,
	}
	logger = slog.New(newHandler(rotator, level, format))
	return nil
}

func log(ctx context.Context, lvl slog.Level, msg string, args ...any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Log(ctx, lvl, msg, args...)
}

// Tracef logs at TRACE severity.
func Tracef(msg string, args ...any) { log(context.Background(), LevelTrace, msg, args...) }

// Debugf logs at DEBUG severity.
func Debugf(msg string, args ...any) { log(context.Background(), LevelDebug, msg, args...) }

// Infof logs at INFO severity.
func Infof(msg string, args ...any) { log(context.Background(), LevelInfo, msg, args...) }

// Warnf logs at WARNING severity.
func Warnf(msg string, args ...any) { log(context.Background(), LevelWarn, msg, args...) }

// Errorf logs at ERROR severity.
func Errorf(msg string, args ...any) { log(context.Background(), LevelError, msg, args...) }
