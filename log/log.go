// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log exports logging primitives used throughout the login tree
// core. It mimics Go's standard log package so it can be used as a
// drop-in replacement, while adding leveling and a hook for external
// loggers (so, e.g., a mobile host app can capture log lines instead of
// writing to stderr).
package log

import (
	"fmt"
	goLog "log"
	"os"
	"sync"
)

// Logger is the interface for logging messages.
type Logger interface {
	// Printf writes a formatted message to the log.
	Printf(format string, v ...interface{})

	// Print writes a message to the log.
	Print(v ...interface{})

	// Println writes a line to the log.
	Println(v ...interface{})

	// Fatal writes a message to the log and aborts.
	Fatal(v ...interface{})

	// Fatalf writes a formatted message to the log and aborts.
	Fatalf(format string, v ...interface{})
}

// Level represents the level of logging.
type Level int

// Levels of logging, in increasing order of severity.
const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
	DisabledLevel
)

// ExternalLogger receives a copy of every logged line at or above the
// current level, in addition to whatever the default Logger does with
// it. Register adds one.
type ExternalLogger interface {
	Log(level Level, s string)
	Flush()
}

// Pre-allocated Loggers at each logging level.
var (
	Debug = &logger{level: DebugLevel}
	Info  = &logger{level: InfoLevel}
	Error = &logger{level: ErrorLevel}
)

var (
	mu    sync.Mutex
	state = globalState{
		level:         InfoLevel,
		defaultLogger: goLog.New(os.Stderr, "", goLog.Ldate|goLog.Ltime|goLog.LUTC|goLog.Lmicroseconds),
	}
)

type globalState struct {
	level         Level
	defaultLogger Logger
	external      []ExternalLogger
}

// globals returns the package's mutable state, for use by tests only.
func globals() *globalState { return &state }

type logger struct {
	level Level
}

var _ Logger = (*logger)(nil)

func (l *logger) enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return l.level >= state.level
}

func (l *logger) broadcast(s string) {
	mu.Lock()
	defer mu.Unlock()
	if state.defaultLogger != nil {
		state.defaultLogger.Print(s)
	}
	for _, ext := range state.external {
		ext.Log(l.level, s)
	}
}

// fatal prints s to the default logger (which, for the standard library
// logger, exits the process) and flushes external loggers first so they
// don't lose the final message.
func (l *logger) fatal(s string) {
	mu.Lock()
	defaultLogger := state.defaultLogger
	external := state.external
	mu.Unlock()
	for _, ext := range external {
		ext.Log(l.level, s)
		ext.Flush()
	}
	if defaultLogger != nil {
		defaultLogger.Fatal(s)
	}
}

// Printf writes a formatted message to the log.
func (l *logger) Printf(format string, v ...interface{}) {
	if !l.enabled() {
		return
	}
	l.broadcast(fmt.Sprintf(format, v...))
}

// Print writes a message to the log.
func (l *logger) Print(v ...interface{}) {
	if !l.enabled() {
		return
	}
	l.broadcast(fmt.Sprint(v...))
}

// Println writes a line to the log.
func (l *logger) Println(v ...interface{}) {
	if !l.enabled() {
		return
	}
	l.broadcast(fmt.Sprintln(v...))
}

// Fatal writes a message to the log and aborts, regardless of level.
func (l *logger) Fatal(v ...interface{}) {
	l.fatal(fmt.Sprint(v...))
}

// Fatalf writes a formatted message to the log and aborts, regardless of level.
func (l *logger) Fatalf(format string, v ...interface{}) {
	l.fatal(fmt.Sprintf(format, v...))
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case ErrorLevel:
		return "error"
	case DisabledLevel:
		return "disabled"
	}
	return "unknown"
}

func parseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "error":
		return ErrorLevel, nil
	case "disabled":
		return DisabledLevel, nil
	}
	return DisabledLevel, fmt.Errorf("invalid log level %q", s)
}

// SetLevel sets the current level of logging.
func SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	state.level = l
	mu.Unlock()
	return nil
}

// GetLevel returns the current logging level.
func GetLevel() string {
	mu.Lock()
	defer mu.Unlock()
	return state.level.String()
}

// At returns whether the named level will be logged currently.
func At(level string) bool {
	l, err := parseLevel(level)
	if err != nil {
		return false
	}
	mu.Lock()
	defer mu.Unlock()
	return state.level <= l
}

// SetOutput replaces the default Logger. Passing nil disables local
// logging while leaving any registered ExternalLoggers active.
func SetOutput(l Logger) {
	mu.Lock()
	state.defaultLogger = l
	mu.Unlock()
}

// Register adds an ExternalLogger that receives every logged line
// alongside the default output.
func Register(l ExternalLogger) {
	mu.Lock()
	state.external = append(state.external, l)
	mu.Unlock()
}

// Printf writes a formatted message to the log at info level.
func Printf(format string, v ...interface{}) { Info.Printf(format, v...) }

// Print writes a message to the log at info level.
func Print(v ...interface{}) { Info.Print(v...) }

// Println writes a line to the log at info level.
func Println(v ...interface{}) { Info.Println(v...) }

// Fatal writes a message to the log and aborts.
func Fatal(v ...interface{}) { Info.Fatal(v...) }

// Fatalf writes a formatted message to the log and aborts.
func Fatalf(format string, v ...interface{}) { Info.Fatalf(format, v...) }
